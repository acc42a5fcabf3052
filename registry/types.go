package registry

import "time"

// Group 标识共享同一准入策略的模型家族。
type Group string

const (
	GroupOpenAI     Group = "openai"
	GroupDoubao     Group = "doubao"
	GroupMidjourney Group = "midjourney"
	GroupStability  Group = "stability"
	GroupFlux       Group = "flux"
)

// knownGroups 是封闭的 Group 集合，目录中出现其他取值视为配置错误。
var knownGroups = map[Group]struct{}{
	GroupOpenAI:     {},
	GroupDoubao:     {},
	GroupMidjourney: {},
	GroupStability:  {},
	GroupFlux:       {},
}

// IsKnown 判断 Group 是否属于封闭集合。
func (g Group) IsKnown() bool {
	_, ok := knownGroups[g]
	return ok
}

func (g Group) String() string { return string(g) }

// GroupConfig 是单个 Group 的准入控制参数。
type GroupConfig struct {
	Group         Group         `json:"group"`
	DisplayName   string        `json:"display_name,omitempty"`
	MaxConcurrent int           `json:"max_concurrent"`
	Cooldown      time.Duration `json:"cooldown"`
}

// DemoPayload 是模型的可选演示数据。
type DemoPayload struct {
	Prompt   string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
}

// Model 描述一个可寻址的生成模型。
type Model struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Category string       `json:"category"`
	Group    Group        `json:"group"`
	Variant  string       `json:"variant,omitempty"` // 发往上游的具体模型名
	Demo     *DemoPayload `json:"demo,omitempty"`
}

// Catalog 是目录文件的 YAML 结构。
type Catalog struct {
	Groups []GroupEntry `yaml:"groups"`
	Models []ModelEntry `yaml:"models"`
}

// GroupEntry 目录中的 Group 条目
type GroupEntry struct {
	Group         Group  `yaml:"group"`
	DisplayName   string `yaml:"display_name"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	CooldownMs    int64  `yaml:"cooldown_ms"`
}

// ModelEntry 目录中的模型条目
type ModelEntry struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Category string       `yaml:"category"`
	Group    Group        `yaml:"group"`
	Variant  string       `yaml:"variant"`
	Demo     *DemoPayload `yaml:"demo"`
}
