package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/imageflow/api"
	"github.com/BaSui01/imageflow/dispatcher"
	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/registry"
	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🖼️ 图像生成接口 Handler
// =============================================================================

// ImageService 是 GenerationHandler 依赖的调度能力，由 *dispatcher.Dispatcher 实现
type ImageService interface {
	Generate(ctx context.Context, modelID string, params dispatcher.GenerateParams, creds provider.Credentials) (*dispatcher.GenerationResponse, error)
	GenerateStream(ctx context.Context, modelID string, params dispatcher.GenerateParams, cb dispatcher.StreamCallbacks, creds provider.Credentials)
	GenerateMulti(ctx context.Context, modelIDs []string, params dispatcher.GenerateParams, creds dispatcher.CredentialSet) ([]dispatcher.ModelOutcome, error)
	Registry() *registry.Registry
}

// maxCount 单次调用的生成数量上限
const maxCount = 10

// GenerationHandler 图像生成处理器
type GenerationHandler struct {
	service ImageService
	creds   *CredentialResolver
	logger  *zap.Logger
}

// NewGenerationHandler 创建图像生成处理器
func NewGenerationHandler(service ImageService, creds *CredentialResolver, logger *zap.Logger) *GenerationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationHandler{
		service: service,
		creds:   creds,
		logger:  logger.With(zap.String("component", "generation_handler")),
	}
}

// HandleGenerate 处理聚合模式生成请求
// @Summary 生成图像
// @Description 以聚合模式生成 N 张图像，结果顺序与条目顺序一致
// @Tags 图像
// @Accept json
// @Produce json
// @Param request body api.GenerateRequest true "生成请求"
// @Success 200 {object} api.GenerationResponse "生成结果"
// @Failure 400 {object} Response "无效请求"
// @Failure 401 {object} Response "未认证"
// @Failure 404 {object} Response "模型不可用"
// @Failure 501 {object} Response "服务商未实现"
// @Router /api/v1/images/generations [post]
func (h *GenerationHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	creds := h.creds.Resolve(r, h.groupOf(req.Model))
	resp, err := h.service.Generate(r.Context(), req.Model, toParams(req), creds)
	if err != nil {
		WriteErr(w, r, err, h.logger)
		return
	}

	h.logger.Info("image generation",
		zap.String("model", resp.ModelID),
		zap.String("group", resp.Group.String()),
		zap.Int("requested", resp.Summary.TotalRequested),
		zap.Int("successful", resp.Summary.Successful),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, r, toAPIResponse(resp))
}

// HandleStream 处理流式生成请求
// @Summary 流式生成图像
// @Description 每个条目完成后推送一个 progress 事件，最后推送 complete 或 error
// @Tags 图像
// @Accept json
// @Produce text/event-stream
// @Param request body api.GenerateRequest true "生成请求"
// @Success 200 {string} string "SSE 流"
// @Failure 400 {object} Response "无效请求"
// @Router /api/v1/images/generations/stream [post]
func (h *GenerationHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, types.NewError(types.ErrInternalError, "streaming not supported"), h.logger)
		return
	}

	// 流式响应持续到最后一个条目完成，解除服务器写超时
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Debug("failed to clear write deadline", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sse := &sseWriter{w: w, flusher: flusher, logger: h.logger}
	creds := h.creds.Resolve(r, h.groupOf(req.Model))

	h.service.GenerateStream(r.Context(), req.Model, toParams(req), dispatcher.StreamCallbacks{
		OnProgress: func(result provider.Result, index, total int) {
			sse.send("progress", api.ProgressEvent{Index: index, Total: total, Result: toAPIResult(result)})
		},
		OnComplete: func(resp *dispatcher.GenerationResponse) {
			sse.send("complete", toAPIResponse(resp))
		},
		OnError: func(err error) {
			sse.send("error", toErrorBody(err))
		},
	}, creds)
}

// HandleMulti 处理多模型生成请求
// @Summary 多模型生成
// @Description 对每个模型并发执行一次聚合生成，单个模型的前置错误不影响其他模型
// @Tags 图像
// @Accept json
// @Produce json
// @Param request body api.MultiGenerateRequest true "多模型生成请求"
// @Success 200 {object} api.MultiGenerationResponse "生成结果"
// @Failure 400 {object} Response "无效请求"
// @Failure 401 {object} Response "未认证"
// @Router /api/v1/images/generations/multi [post]
func (h *GenerationHandler) HandleMulti(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.MultiGenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateCount(req.Count); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	groups := make([]registry.Group, 0, len(req.Models))
	for _, id := range req.Models {
		if g := h.groupOf(id); g != "" {
			groups = append(groups, g)
		}
	}

	params := dispatcher.GenerateParams{Prompt: req.Prompt, Count: req.Count, Size: req.Size, Params: req.Params}
	outcomes, err := h.service.GenerateMulti(r.Context(), req.Models, params, h.creds.ResolveSet(r, groups))
	if err != nil {
		WriteErr(w, r, err, h.logger)
		return
	}

	out := api.MultiGenerationResponse{Outcomes: make([]api.ModelOutcome, len(outcomes))}
	for i, o := range outcomes {
		out.Outcomes[i] = api.ModelOutcome{Model: o.ModelID}
		if o.Error != nil {
			body := toErrorBody(o.Error)
			out.Outcomes[i].Error = &body
			continue
		}
		resp := toAPIResponse(o.Response)
		out.Outcomes[i].Response = &resp
	}

	WriteSuccess(w, r, out)
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func (h *GenerationHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*api.GenerateRequest, bool) {
	if !ValidateContentType(w, r, h.logger) {
		return nil, false
	}

	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return nil, false
	}

	req.Model = strings.TrimSpace(req.Model)
	if req.Model == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "model is required"), h.logger)
		return nil, false
	}
	if err := validateCount(req.Count); err != nil {
		WriteError(w, r, err, h.logger)
		return nil, false
	}
	return &req, true
}

func validateCount(count int) *types.Error {
	if count < 0 || count > maxCount {
		return types.Errorf(types.ErrInvalidRequest, "count must be between 0 and %d (0 means 1)", maxCount)
	}
	return nil
}

// groupOf 返回模型所属 Group；未知模型交给调度器报告 MODEL_UNAVAILABLE
func (h *GenerationHandler) groupOf(modelID string) registry.Group {
	if m, ok := h.service.Registry().ModelByID(modelID); ok {
		return m.Group
	}
	return ""
}

func toParams(req *api.GenerateRequest) dispatcher.GenerateParams {
	return dispatcher.GenerateParams{
		Prompt: req.Prompt,
		Count:  req.Count,
		Size:   req.Size,
		Params: req.Params,
	}
}

func toAPIResult(r provider.Result) api.ImageResult {
	return api.ImageResult{
		ID:        r.ID,
		Success:   r.Success,
		ImageURL:  r.ImageURL,
		Text:      r.Text,
		Error:     r.Error,
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
	}
}

func toAPIResponse(resp *dispatcher.GenerationResponse) api.GenerationResponse {
	out := api.GenerationResponse{
		Model:   resp.ModelID,
		Group:   resp.Group.String(),
		Results: make([]api.ImageResult, len(resp.Results)),
		Summary: api.GenerationSummary{
			TotalRequested: resp.Summary.TotalRequested,
			Successful:     resp.Summary.Successful,
			Failed:         resp.Summary.Failed,
		},
	}
	for i, r := range resp.Results {
		out.Results[i] = toAPIResult(r)
	}
	return out
}

func toErrorBody(err error) api.ErrorBody {
	var typed *types.Error
	if errors.As(err, &typed) {
		return api.ErrorBody{Code: string(typed.Code), Message: typed.Message}
	}
	return api.ErrorBody{Code: string(types.ErrInternalError), Message: err.Error()}
}

// sseWriter 写出 SSE 事件，写入失败后不再继续写
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *zap.Logger
	broken  bool
}

func (s *sseWriter) send(event string, payload any) {
	if s.broken {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode SSE payload", zap.String("event", event), zap.Error(err))
		return
	}

	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteString("\ndata: ")
	b.Write(data)
	b.WriteString("\n\n")

	if _, err := s.w.Write([]byte(b.String())); err != nil {
		s.broken = true
		s.logger.Debug("SSE client gone", zap.Error(err))
		return
	}
	s.flusher.Flush()
}
