package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/imageflow/internal/tlsutil"
	"github.com/BaSui01/imageflow/types"
)

// OpenAIAdapter 使用 OpenAI Images API 执行图像生成.
type OpenAIAdapter struct {
	cfg    OpenAIConfig
	apiKey string
	client *http.Client
}

// NewOpenAIAdapter 创建 OpenAI 图像适配器；缺少 API Key 时立即失败.
// client 为空时按 cfg.Timeout 新建.
func NewOpenAIAdapter(cfg OpenAIConfig, creds Credentials, client *http.Client) (*OpenAIAdapter, error) {
	if creds.APIKey == "" {
		return nil, missingCredentials("openai", "an API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-image-1"
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 120 * time.Second
		}
		client = tlsutil.SecureHTTPClient(timeout)
	}

	return &OpenAIAdapter{
		cfg:    cfg,
		apiKey: creds.APIKey,
		client: client,
	}, nil
}

func (a *OpenAIAdapter) Name() string { return "openai" }

type openaiImageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

type openaiImageResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url,omitempty"`
		B64JSON       string `json:"b64_json,omitempty"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	} `json:"data"`
}

// Generate 从文本提示生成一张图像.
func (a *OpenAIAdapter) Generate(ctx context.Context, req *Request) (*Result, error) {
	model := req.ModelVariant()
	if model == "" {
		model = a.cfg.Model
	}
	size := req.Size
	if size == "" {
		size = a.cfg.Size
	}

	body := openaiImageRequest{
		Model:   model,
		Prompt:  req.Prompt,
		N:       1,
		Size:    size,
		Quality: req.Params["quality"],
		Style:   req.Params["style"],
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(a.cfg.BaseURL, "/")+"/v1/images/generations",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(ctx, a.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(a.Name(), resp)
	}

	var oResp openaiImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return nil, invalidResponse(a.Name(), err)
	}
	if len(oResp.Data) == 0 {
		return nil, types.NewError(types.ErrInvalidResponse, "openai returned no images").WithProvider(a.Name())
	}

	d := oResp.Data[0]
	imageURL := d.URL
	if imageURL == "" && d.B64JSON != "" {
		imageURL = "data:image/png;base64," + d.B64JSON
	}
	if imageURL == "" && d.RevisedPrompt == "" {
		return nil, types.NewError(types.ErrInvalidResponse, "openai returned an empty image entry").WithProvider(a.Name())
	}

	return &Result{
		Success:  true,
		ImageURL: imageURL,
		Text:     d.RevisedPrompt,
	}, nil
}
