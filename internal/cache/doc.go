// 版权所有 2026 ImageFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的键值缓存，服务于图像转存结果的复用。

# 概述

Manager 封装 go-redis 客户端，负责连接初始化、后台健康检查与优雅关闭。
所有键自动加上配置的前缀，便于与其他服务共用同一个 Redis 实例。

# 核心类型

  - Manager：缓存管理器，提供 Get/Set/Delete/Ping 与 GetJSON/SetJSON。
  - Config：地址、密码、键前缀、默认 TTL、连接池与健康检查间隔。

# 错误语义

  - ErrCacheMiss：键不存在，使用 IsCacheMiss 判断。
  - ErrClosed：管理器已关闭后的任何调用。
*/
package cache
