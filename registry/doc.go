// Copyright (c) imageflow Authors.
// Licensed under the MIT License.

/*
Package registry 提供图像生成模型与服务商准入配置的静态目录。

# 概述

目录在进程启动时从 YAML 加载一次（默认使用内置 catalog.yaml），
之后只读。每个模型恰好属于一个 Group，每个 Group 携带
max_concurrent 与 cooldown_ms 两个准入参数。

# 核心类型

  - Registry    — 只读查找：ModelByID / ConfigByGroup / AllGroups / Models
  - Group       — 封闭的服务商枚举（openai、doubao、midjourney、stability、flux）
  - GroupConfig — 单个 Group 的并发上限与冷却时间
  - Model       — 模型描述（id、名称、类别、所属 Group、上游 variant、演示数据）
*/
package registry
