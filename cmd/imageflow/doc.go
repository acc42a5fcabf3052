// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 ImageFlow 服务端程序入口。

# 概述

cmd/imageflow 是 ImageFlow 的可执行入口，提供 HTTP API 服务、
健康检查和版本查询等子命令。程序支持 YAML 配置文件与 IMAGEFLOW_
前缀环境变量、结构化日志（zap）、Prometheus 指标与 OpenTelemetry 追踪。

# 核心类型

  - Server      — 组装注册表、调度器、转存器与处理器，管理 HTTP 和 Metrics 双端口
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 中间件链

请求依次经过 Recovery、RequestID、SecurityHeaders、RequestLogger、
MetricsMiddleware、OTelTracing、CORS、JWTAuth（配置密钥时）与 RateLimiter。
JWTAuth 把 Token 的 sub 写入 context，调度器据此判断调用方是否已认证。
*/
package main
