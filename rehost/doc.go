// Copyright 2026 ImageFlow Authors. All rights reserved.

/*
Package rehost 将服务商返回的临时图像地址转存为稳定地址。

# 核心类型

  - Uploader：转存接口，失败以 UploadResult 表达而不是 error
  - HTTPUploader：下载源图像后以 multipart 表单上传到图床，
    使用 X-API-Key 认证，data: 地址直接解码
  - CachedUploader：以源地址的 SHA-256 为键缓存转存结果
  - NopUploader：未启用转存时使用，总是报告失败

转存是尽力而为的：调用方在失败时保留原地址继续返回结果。
*/
package rehost
