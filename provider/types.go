package provider

import (
	"context"
	"encoding/json"
	"time"
)

// Request 是与服务商无关的单张图像生成请求.
type Request struct {
	Prompt  string            `json:"prompt"`
	Variant string            `json:"variant,omitempty"` // 服务商侧的具体模型名
	Size    string            `json:"size,omitempty"`    // 1024x1024 等
	Params  map[string]string `json:"params,omitempty"`
}

// Result 是一次生成尝试的标准化结果.
// Success 为 true 时即使 ImageURL 为空也视为可用（纯文本结果合法）；
// Success 为 false 时 Error 必须非空.
type Result struct {
	ID        string    `json:"id,omitempty"`
	Success   bool      `json:"success"`
	ImageURL  string    `json:"image_url,omitempty"`
	Text      string    `json:"text,omitempty"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ModelVariant 返回本次请求使用的模型名：Params["model"] 优先于 Variant.
func (r *Request) ModelVariant() string {
	if m := r.Params["model"]; m != "" {
		return m
	}
	return r.Variant
}

// Failed 将错误转换为失败结果.
func Failed(err error) *Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Result{Success: false, Error: msg}
}

// AppendMessage 在状态消息后追加说明.
func (r *Result) AppendMessage(note string) {
	if r.Message == "" {
		r.Message = note
		return
	}
	r.Message = r.Message + "; " + note
}

// Adapter 将通用生成请求翻译为服务商调用并归一化结果.
// 单次调用无状态；凭证按调用传入，适配器不跨请求缓存凭证.
type Adapter interface {
	// Name 返回服务商名称.
	Name() string

	// Generate 执行一次生成；网络错误、凭证无效、服务商拒绝时返回 error.
	Generate(ctx context.Context, req *Request) (*Result, error)
}

// Credentials 是调用方逐次提供的服务商凭证.
// 注意：不会被 dispatcher 持久化，日志与 JSON 输出均做掩码.
type Credentials struct {
	APIKey    string
	APISecret string
	ExtraKey  string
}

// IsZero 判断凭证是否完全为空.
func (c Credentials) IsZero() bool {
	return c.APIKey == "" && c.APISecret == "" && c.ExtraKey == ""
}

func (c Credentials) String() string {
	if c.IsZero() {
		return "Credentials{}"
	}
	return "Credentials{APIKey:***, APISecret:***, ExtraKey:***}"
}

func (c Credentials) MarshalJSON() ([]byte, error) {
	type masked struct {
		APIKey    string `json:"api_key,omitempty"`
		APISecret string `json:"api_secret,omitempty"`
		ExtraKey  string `json:"extra_key,omitempty"`
	}
	out := masked{}
	if c.APIKey != "" {
		out.APIKey = "***"
	}
	if c.APISecret != "" {
		out.APISecret = "***"
	}
	if c.ExtraKey != "" {
		out.ExtraKey = "***"
	}
	return json.Marshal(out)
}
