package handlers

import (
	"net/http"

	"github.com/BaSui01/imageflow/api"
	"github.com/BaSui01/imageflow/dispatcher"
	"github.com/BaSui01/imageflow/registry"
	"go.uber.org/zap"
)

// =============================================================================
// 📚 目录与准入诊断 Handler
// =============================================================================

// CatalogSource 提供模型目录与准入状态
type CatalogSource interface {
	Registry() *registry.Registry
	AdmissionStatus() []dispatcher.GroupStatus
}

// CatalogHandler 目录处理器
type CatalogHandler struct {
	source CatalogSource
	logger *zap.Logger
}

// NewCatalogHandler 创建目录处理器
func NewCatalogHandler(source CatalogSource, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{source: source, logger: logger}
}

// HandleModels 返回模型目录，可用 ?group= 过滤
// @Summary 模型列表
// @Tags 目录
// @Produce json
// @Param group query string false "服务商组"
// @Success 200 {array} api.ModelInfo "模型列表"
// @Router /api/v1/models [get]
func (h *CatalogHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	group := registry.Group(r.URL.Query().Get("group"))

	models := h.source.Registry().Models()
	out := make([]api.ModelInfo, 0, len(models))
	for _, m := range models {
		if group != "" && m.Group != group {
			continue
		}
		out = append(out, api.ModelInfo{
			ID:        m.ID,
			Name:      m.Name,
			Category:  m.Category,
			Group:     m.Group.String(),
			Supported: dispatcher.IsSupported(m),
		})
	}

	WriteSuccess(w, r, out)
}

// HandleAdmission 返回各组的在途请求数与最近一次派发时间
// @Summary 准入状态
// @Tags 目录
// @Produce json
// @Success 200 {array} api.GroupStatus "准入状态"
// @Router /api/v1/admission [get]
func (h *CatalogHandler) HandleAdmission(w http.ResponseWriter, r *http.Request) {
	snapshot := h.source.AdmissionStatus()
	out := make([]api.GroupStatus, len(snapshot))
	for i, s := range snapshot {
		out[i] = api.GroupStatus{
			Group:         s.Group.String(),
			Active:        s.Active,
			MaxConcurrent: s.MaxConcurrent,
			CooldownMs:    s.CooldownMs,
			LastRequestAt: s.LastRequestAt,
		}
	}
	WriteSuccess(w, r, out)
}
