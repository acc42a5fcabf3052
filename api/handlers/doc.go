// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 ImageFlow HTTP API 的请求处理器实现。

# 核心类型

  - GenerationHandler   — 聚合、SSE 流式与多模型生成
  - CatalogHandler      — 模型目录与准入诊断
  - HealthHandler       — 服务健康检查（/health, /healthz, /ready, /version）
  - CredentialResolver  — 从请求头解析服务商凭证，缺省回落到服务端配置
  - Response            — 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter      — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码映射，例如 UNSUPPORTED_PROVIDER → 501
  - SSE 流式输出：每个条目一个 progress 事件，随后是 complete 或 error
*/
package handlers
