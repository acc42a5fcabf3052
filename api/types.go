package api

import (
	"time"
)

// =============================================================================
// 图像生成类型
// =============================================================================

// GenerateRequest 表示一次单模型生成请求。
// @Description 图像生成请求结构
type GenerateRequest struct {
	// 目录中的模型 ID
	Model string `json:"model" example:"gpt-image-1" binding:"required"`
	// 提示词
	Prompt string `json:"prompt" example:"a red fox in the snow" binding:"required"`
	// 生成数量，缺省为 1
	Count int `json:"count,omitempty" example:"2"`
	// 图片尺寸
	Size string `json:"size,omitempty" example:"1024x1024"`
	// 服务商特定参数，例如 quality、style、seed
	Params map[string]string `json:"params,omitempty"`
}

// MultiGenerateRequest 表示对多个模型并发生成的请求。
// @Description 多模型生成请求结构
type MultiGenerateRequest struct {
	// 模型 ID 列表，结果按此顺序返回
	Models []string `json:"models" binding:"required"`
	// 提示词
	Prompt string `json:"prompt" binding:"required"`
	// 每个模型的生成数量
	Count int `json:"count,omitempty"`
	// 图片尺寸
	Size string `json:"size,omitempty"`
	// 服务商特定参数
	Params map[string]string `json:"params,omitempty"`
}

// ImageResult 表示单个条目的标准化结果。
// @Description 单张图像结果
type ImageResult struct {
	ID        string    `json:"id"`
	Success   bool      `json:"success"`
	ImageURL  string    `json:"image_url,omitempty"`
	Text      string    `json:"text,omitempty"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationSummary 汇总一次调用的成功与失败数量。
type GenerationSummary struct {
	TotalRequested int `json:"total_requested"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
}

// GenerationResponse 聚合模式的响应。
// @Description 图像生成响应结构
type GenerationResponse struct {
	Model   string            `json:"model"`
	Group   string            `json:"group"`
	Results []ImageResult     `json:"results"`
	Summary GenerationSummary `json:"summary"`
}

// ModelOutcome 多模型生成中单个模型的结果。
type ModelOutcome struct {
	Model    string              `json:"model"`
	Response *GenerationResponse `json:"response,omitempty"`
	Error    *ErrorBody          `json:"error,omitempty"`
}

// MultiGenerationResponse 多模型生成响应。
type MultiGenerationResponse struct {
	Outcomes []ModelOutcome `json:"outcomes"`
}

// ErrorBody 嵌入在结果中的错误描述。
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// 流式事件
// =============================================================================

// ProgressEvent 对应 SSE `progress` 事件。
type ProgressEvent struct {
	Index  int         `json:"index"`
	Total  int         `json:"total"`
	Result ImageResult `json:"result"`
}

// =============================================================================
// 目录与诊断
// =============================================================================

// ModelInfo 目录中的模型。
// @Description 模型信息
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Group    string `json:"group"`
	// 当前服务是否实现了该模型所属的服务商
	Supported bool `json:"supported"`
}

// GroupStatus 单个服务商组的准入诊断。
// @Description 准入状态
type GroupStatus struct {
	Group         string     `json:"group"`
	Active        int        `json:"active"`
	MaxConcurrent int        `json:"max_concurrent"`
	CooldownMs    int64      `json:"cooldown_ms"`
	LastRequestAt *time.Time `json:"last_request_at,omitempty"`
}
