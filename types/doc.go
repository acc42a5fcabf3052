// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 ImageFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 registry、provider、
dispatcher、api 等上层模块提供统一的错误码和 context 传播约定。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - 前置条件错误码   — AUTH_REQUIRED / MODEL_UNAVAILABLE / UNSUPPORTED_PROVIDER
  - 单条失败错误码   — MISSING_CREDENTIALS / UPSTREAM_* / INVALID_RESPONSE

# 主要能力

  - Context 传播：WithTraceID / WithUserID / WithRequestID
  - 错误工具链：AsError / IsErrorCode / IsRetryable / IsPrecondition
*/
package types
