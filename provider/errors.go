package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/BaSui01/imageflow/types"
)

// maxErrorBody 限制读取的上游错误体大小
const maxErrorBody = 4 << 10

// missingCredentials 构造凭证缺失错误.
func missingCredentials(providerName, what string) *types.Error {
	return types.Errorf(types.ErrMissingCredentials, "%s provider requires %s", providerName, what).
		WithProvider(providerName)
}

// mapHTTPError 将上游非 2xx 响应映射为结构化错误.
func mapHTTPError(providerName string, resp *http.Response) *types.Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := fmt.Sprintf("%s error: status=%d body=%s", providerName, resp.StatusCode, string(body))

	var e *types.Error
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e = types.NewError(types.ErrRateLimited, msg).WithRetryable(true)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e = types.NewError(types.ErrUpstreamError, msg)
	case resp.StatusCode >= 500:
		e = types.NewError(types.ErrUpstreamError, msg).WithRetryable(true)
	default:
		e = types.NewError(types.ErrUpstreamError, msg)
	}
	return e.WithHTTPStatus(resp.StatusCode).WithProvider(providerName)
}

// mapTransportError 将网络层错误映射为结构化错误.
func mapTransportError(ctx context.Context, providerName string, err error) *types.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.NewError(types.ErrUpstreamTimeout, providerName+" request timed out").
			WithCause(err).WithRetryable(true).WithProvider(providerName)
	}
	return types.NewError(types.ErrUpstreamError, providerName+" request failed").
		WithCause(err).WithRetryable(true).WithProvider(providerName)
}

// invalidResponse 构造响应解析失败错误.
func invalidResponse(providerName string, err error) *types.Error {
	return types.NewError(types.ErrInvalidResponse, "failed to decode "+providerName+" response").
		WithCause(err).WithProvider(providerName)
}
