// 版权所有 2026 ImageFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与多监听协同退出。

# 核心类型

  - Manager：封装 net/http.Server 与 net.Listener，提供
    Start/Shutdown/Errors 等生命周期方法。API 与 metrics
    各使用一个 Manager，通过 Config.Name 区分日志。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与
    优雅关闭超时。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在配置的超时内排空请求，可重复调用。
  - 协同退出：Wait 监听 SIGINT/SIGTERM、上下文取消与任一服务器
    异常，随后关闭全部 Manager。
*/
package server
