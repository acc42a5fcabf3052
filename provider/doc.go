// 版权所有 2026 ImageFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package provider 提供图像生成服务商适配器.

# 概述

每个适配器把与服务商无关的 Request 翻译为具体的 HTTP 调用，
并把响应归一化为 Result。适配器按调用构造，凭证不跨请求保留。

# 核心类型

  - Adapter: 适配器接口，Name 与 Generate 两个方法
  - Request / Result: 通用请求与标准化结果
  - Credentials: 调用方逐次提供的凭证，String 与 JSON 输出均掩码

# 已实现的服务商

  - OpenAIAdapter: /v1/images/generations，Bearer 认证，
    支持 url 与 b64_json 两种返回，revised_prompt 作为文本结果
  - DoubaoAdapter: 火山方舟 /api/v3/images/generations，
    Bearer APIKey 认证，要求同时提供 APISecret，ExtraKey 可指定推理接入点

# 错误映射

上游 429 映射为 RATE_LIMITED，401/403 映射为不可重试的 UPSTREAM_ERROR，
5xx 映射为可重试的 UPSTREAM_ERROR，超时映射为 UPSTREAM_TIMEOUT，
响应无法解析映射为 INVALID_RESPONSE。
*/
package provider
