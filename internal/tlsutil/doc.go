// Package tlsutil 为访问图像服务商和图床的出站 HTTP 客户端提供统一的 TLS 加固
// （TLS 1.2+，仅 AEAD 密码套件），并拒绝 https 到 http 的降级跳转。
package tlsutil
