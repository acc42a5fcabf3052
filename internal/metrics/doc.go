// 版权所有 2026 ImageFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP 接口、
图像生成条目、准入等待与图像转存四个维度。

# 概述

Collector 使用 promauto 自动注册到默认 Registry，所有指标按 namespace 隔离。
Collector 实现 dispatcher.Recorder，由调度器在每个条目的准入、调用与转存阶段回调。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 生成指标：按 group/model/status 统计条目数，记录服务商调用耗时。
  - 准入指标：等待耗时直方图，按 group 的在途请求数 Gauge。
  - 转存指标：按 group/outcome 统计转存成功与回退次数。
*/
package metrics
