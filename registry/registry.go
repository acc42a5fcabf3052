package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/imageflow/types"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// =============================================================================
// 📚 Provider Registry
// =============================================================================

// Registry 提供模型与准入配置的只读查找，构造后不可变。
type Registry struct {
	models  map[string]Model
	order   []string
	configs map[Group]GroupConfig
	groups  []Group
}

// New 校验目录并构建 Registry。
func New(catalog Catalog) (*Registry, error) {
	r := &Registry{
		models:  make(map[string]Model, len(catalog.Models)),
		configs: make(map[Group]GroupConfig, len(catalog.Groups)),
	}

	var errs []string
	for _, g := range catalog.Groups {
		switch {
		case !g.Group.IsKnown():
			errs = append(errs, fmt.Sprintf("unknown group %q", g.Group))
			continue
		case g.MaxConcurrent <= 0:
			errs = append(errs, fmt.Sprintf("group %q: max_concurrent must be positive", g.Group))
			continue
		case g.CooldownMs < 0:
			errs = append(errs, fmt.Sprintf("group %q: cooldown_ms must not be negative", g.Group))
			continue
		}
		if _, dup := r.configs[g.Group]; dup {
			errs = append(errs, fmt.Sprintf("group %q declared twice", g.Group))
			continue
		}
		r.configs[g.Group] = GroupConfig{
			Group:         g.Group,
			DisplayName:   g.DisplayName,
			MaxConcurrent: g.MaxConcurrent,
			Cooldown:      time.Duration(g.CooldownMs) * time.Millisecond,
		}
		r.groups = append(r.groups, g.Group)
	}

	for _, m := range catalog.Models {
		if m.ID == "" {
			errs = append(errs, "model with empty id")
			continue
		}
		if _, dup := r.models[m.ID]; dup {
			errs = append(errs, fmt.Sprintf("model %q declared twice", m.ID))
			continue
		}
		if _, ok := r.configs[m.Group]; !ok {
			errs = append(errs, fmt.Sprintf("model %q: group %q has no configuration", m.ID, m.Group))
			continue
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		r.models[m.ID] = Model{
			ID:       m.ID,
			Name:     name,
			Category: m.Category,
			Group:    m.Group,
			Variant:  m.Variant,
			Demo:     m.Demo,
		}
		r.order = append(r.order, m.ID)
	}

	if len(errs) > 0 {
		return nil, types.NewError(types.ErrConfiguration, "invalid model catalog: "+strings.Join(errs, "; "))
	}

	sort.Slice(r.groups, func(i, j int) bool { return r.groups[i] < r.groups[j] })
	return r, nil
}

// Parse 从 YAML 数据解析目录并构建 Registry。
func Parse(data []byte) (*Registry, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	return New(catalog)
}

// LoadFile 从文件加载目录。
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}
	return Parse(data)
}

// Default 返回内置目录构建的 Registry。
func Default() (*Registry, error) {
	return Parse(defaultCatalog)
}

// MustDefault 同 Default，失败时 panic（内置目录错误属于构建缺陷）。
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(fmt.Sprintf("built-in model catalog is invalid: %v", err))
	}
	return r
}

// =============================================================================
// 🔍 查询
// =============================================================================

// ModelByID 按 id 查找模型。
func (r *Registry) ModelByID(id string) (Model, bool) {
	m, ok := r.models[id]
	return m, ok
}

// ConfigByGroup 返回 Group 的准入配置；未知 Group 属于静态配置缺陷。
func (r *Registry) ConfigByGroup(group Group) (GroupConfig, error) {
	cfg, ok := r.configs[group]
	if !ok {
		return GroupConfig{}, types.Errorf(types.ErrConfiguration, "no admission config for provider group %q", group)
	}
	return cfg, nil
}

// AllGroups 返回全部 Group（按名称排序）。
func (r *Registry) AllGroups() []Group {
	out := make([]Group, len(r.groups))
	copy(out, r.groups)
	return out
}

// Models 返回全部模型，保持目录声明顺序。
func (r *Registry) Models() []Model {
	out := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}
