// Package api 定义 ImageFlow HTTP API 的请求与响应结构。
//
// # API Overview
//
// ImageFlow 暴露以下接口：
//   - POST /api/v1/images/generations          聚合模式生成
//   - POST /api/v1/images/generations/stream   SSE 流式生成
//   - POST /api/v1/images/generations/multi    多模型并发生成
//   - GET  /api/v1/models                      模型目录
//   - GET  /api/v1/admission                   各服务商组准入状态
//   - GET  /health, /healthz, /ready, /version 健康检查
//
// # Authentication
//
// 配置 auth.jwt_secret 后，调用方需携带 HS256 签名的 Bearer Token：
//
//	Authorization: Bearer <token>
//
// 服务商凭证通过请求头传入，未提供时使用服务端配置的默认凭证：
//
//	X-Provider-Key:       API Key
//	X-Provider-Secret:    API Secret（豆包）
//	X-Provider-Extra-Key: 推理接入点 ID（豆包）
//
// # Response Envelope
//
// 非流式接口均返回统一结构：
//
//	{"success": true, "data": {...}, "timestamp": "...", "request_id": "..."}
//	{"success": false, "error": {"code": "MODEL_UNAVAILABLE", "message": "..."}}
package api
