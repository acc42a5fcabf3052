package dispatcher

import (
	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/registry"
	"github.com/BaSui01/imageflow/types"
)

// checkRoute 判断模型所属 Group 是否有已实现的适配器.
// 新增服务商需要在这里和 newAdapter 中同时加分支.
func checkRoute(m registry.Model) error {
	switch m.Group {
	case registry.GroupOpenAI, registry.GroupDoubao:
		return nil
	case registry.GroupMidjourney, registry.GroupStability, registry.GroupFlux:
		return types.Errorf(types.ErrUnsupportedProvider,
			"%s generation via %s is not supported yet", categoryOf(m), m.Group).WithProvider(m.Group.String())
	default:
		return types.Errorf(types.ErrUnsupportedProvider, "unknown provider group %q", m.Group)
	}
}

// newAdapter 按调用构造适配器，凭证不在 Dispatcher 中保留.
func (d *Dispatcher) newAdapter(group registry.Group, creds provider.Credentials) (provider.Adapter, error) {
	if d.factory != nil {
		return d.factory(group, creds)
	}

	switch group {
	case registry.GroupOpenAI:
		return provider.NewOpenAIAdapter(d.openaiCfg, creds, d.httpClient)
	case registry.GroupDoubao:
		return provider.NewDoubaoAdapter(d.doubaoCfg, creds, d.httpClient)
	default:
		return nil, types.Errorf(types.ErrUnsupportedProvider, "no adapter for provider group %q", group)
	}
}

func categoryOf(m registry.Model) string {
	if m.Category == "" {
		return "image"
	}
	return m.Category
}

// IsSupported 报告模型所属 Group 是否已有适配器实现.
func IsSupported(m registry.Model) bool {
	return checkRoute(m) == nil
}
