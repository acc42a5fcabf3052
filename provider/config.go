package provider

import "time"

// OpenAIConfig 配置 OpenAI 图像生成端点.
type OpenAIConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // gpt-image-1, dall-e-3
	Size    string        `json:"size,omitempty" yaml:"size,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DoubaoConfig 配置豆包（火山方舟）图像生成端点.
type DoubaoConfig struct {
	BaseURL   string        `json:"base_url" yaml:"base_url"`
	Model     string        `json:"model,omitempty" yaml:"model,omitempty"`
	Size      string        `json:"size,omitempty" yaml:"size,omitempty"`
	Watermark bool          `json:"watermark" yaml:"watermark"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultOpenAIConfig 返回默认 OpenAI 图像配置.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL: "https://api.openai.com",
		Model:   "gpt-image-1",
		Size:    "1024x1024",
		Timeout: 120 * time.Second,
	}
}

// DefaultDoubaoConfig 返回默认豆包图像配置.
func DefaultDoubaoConfig() DoubaoConfig {
	return DoubaoConfig{
		BaseURL: "https://ark.cn-beijing.volces.com",
		Model:   "doubao-seedream-3-0-t2i-250415",
		Size:    "1024x1024",
		Timeout: 120 * time.Second,
	}
}
