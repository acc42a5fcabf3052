package rehost

import "context"

// UploadResult 是一次转存的结果；Success 为 true 时 URL 为新地址.
type UploadResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Uploader 将远程图像转存到稳定存储.
// 失败通过 UploadResult 表达，不会中断调用方的生成流程.
type Uploader interface {
	UploadFromURL(ctx context.Context, sourceURL string) UploadResult
}

// UploaderFunc 允许普通函数作为 Uploader 使用.
type UploaderFunc func(ctx context.Context, sourceURL string) UploadResult

func (f UploaderFunc) UploadFromURL(ctx context.Context, sourceURL string) UploadResult {
	return f(ctx, sourceURL)
}

// ErrDisabled 是 NopUploader 返回的失败原因.
const ErrDisabled = "re-hosting disabled"

// NopUploader 用于未配置图床的部署，总是报告失败，调用方保留原地址.
type NopUploader struct{}

func (NopUploader) UploadFromURL(context.Context, string) UploadResult {
	return failed(ErrDisabled)
}

func failed(msg string) UploadResult {
	return UploadResult{Success: false, Error: msg}
}
