package handlers

import (
	"net/http"
	"strings"

	"github.com/BaSui01/imageflow/dispatcher"
	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/registry"
)

// 凭证请求头
const (
	HeaderProviderKey      = "X-Provider-Key"
	HeaderProviderSecret   = "X-Provider-Secret"
	HeaderProviderExtraKey = "X-Provider-Extra-Key"
)

// CredentialResolver 从请求头解析服务商凭证，缺省回落到服务端配置的默认值.
//
// 单模型接口读取 X-Provider-Key / X-Provider-Secret / X-Provider-Extra-Key；
// 多模型接口只读取带组名的变体，例如 X-Provider-Key-Doubao，
// 避免把一个服务商的密钥发给另一个服务商.
type CredentialResolver struct {
	defaults map[registry.Group]provider.Credentials
}

// NewCredentialResolver 创建凭证解析器
func NewCredentialResolver(defaults map[registry.Group]provider.Credentials) *CredentialResolver {
	copied := make(map[registry.Group]provider.Credentials, len(defaults))
	for g, c := range defaults {
		copied[g] = c
	}
	return &CredentialResolver{defaults: copied}
}

// Resolve 返回单模型调用使用的凭证
func (c *CredentialResolver) Resolve(r *http.Request, group registry.Group) provider.Credentials {
	if creds := fromHeaders(r.Header, ""); !creds.IsZero() {
		return creds
	}
	return c.defaultFor(group)
}

// ResolveSet 返回多模型调用使用的凭证集合
func (c *CredentialResolver) ResolveSet(r *http.Request, groups []registry.Group) dispatcher.CredentialSet {
	set := make(dispatcher.CredentialSet, len(groups))
	for _, g := range groups {
		if creds := fromHeaders(r.Header, "-"+headerSuffix(g)); !creds.IsZero() {
			set[g] = creds
			continue
		}
		set[g] = c.defaultFor(g)
	}
	return set
}

func (c *CredentialResolver) defaultFor(group registry.Group) provider.Credentials {
	if c == nil {
		return provider.Credentials{}
	}
	return c.defaults[group]
}

func fromHeaders(h http.Header, suffix string) provider.Credentials {
	return provider.Credentials{
		APIKey:    strings.TrimSpace(h.Get(HeaderProviderKey + suffix)),
		APISecret: strings.TrimSpace(h.Get(HeaderProviderSecret + suffix)),
		ExtraKey:  strings.TrimSpace(h.Get(HeaderProviderExtraKey + suffix)),
	}
}

// headerSuffix 把组名转换为规范化的请求头片段，例如 openai -> Openai
func headerSuffix(g registry.Group) string {
	s := g.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
