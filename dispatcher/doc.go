// 版权所有 2026 ImageFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 dispatcher 实现图像生成的模型调度器与按 Provider Group 的准入控制。

# 概述

Dispatcher 把"用模型 M 生成 N 张图"的请求解析到所属的 Provider Group，
在准入账本允许后调用对应适配器，再把结果交给转存协作方，
最终以聚合或流式两种方式返回 N 个一一对应的标准化结果。

# 核心类型

  - Dispatcher：调度器，提供 Generate、GenerateStream、Stream 与 GenerateMulti
  - Ledger：准入账本，按 Group 记录在途请求数与最近派发时间，
    检查与占用在同一把锁下完成，等待者由释放通知或冷却计时唤醒
  - StreamCallbacks / StreamEvent：回调与通道两种流式协议
  - Authenticator：每个条目派发前的认证检查
  - Recorder：派发指标接收方，由 internal/metrics 实现

# 失败语义

  - 未认证、模型不可用、服务商未实现、请求无效：整个调用失败，不触碰账本
  - 凭证缺失、上游错误、超时：转为对应位置的失败结果，不影响其余条目
  - 转存失败：保留服务商原地址，在状态消息中注明

# 路由

Group 到适配器的映射是封闭的 switch：openai 与 doubao 已实现，
midjourney、stability、flux 返回 UNSUPPORTED_PROVIDER。
*/
package dispatcher
