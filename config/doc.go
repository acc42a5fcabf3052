// Package config 提供 ImageFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，
// 环境变量键由 env tag 拼接而成，例如 IMAGEFLOW_SERVER_HTTP_PORT。
package config
