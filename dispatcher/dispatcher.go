package dispatcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/registry"
	"github.com/BaSui01/imageflow/rehost"
	"github.com/BaSui01/imageflow/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/imageflow/dispatcher"

// GenerateParams 描述一次生成调用.
type GenerateParams struct {
	Prompt string            `json:"prompt"`
	Count  int               `json:"count,omitempty"` // <=0 视为 1，不设上限
	Size   string            `json:"size,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// Summary 是批次结果统计.
type Summary struct {
	TotalRequested int `json:"total_requested"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
}

// GenerationResponse 是聚合模式的返回值，Results 与请求顺序一一对应.
type GenerationResponse struct {
	ModelID string            `json:"model_id"`
	Group   registry.Group    `json:"group"`
	Results []provider.Result `json:"results"`
	Summary Summary           `json:"summary"`
}

// Dispatcher 把"用模型 M 生成 N 张图"转换为 N 个标准化结果.
// 同一调用内的条目严格串行；不同调用通过 Ledger 竞争同一 Group 的准入名额.
type Dispatcher struct {
	reg      *registry.Registry
	ledger   *Ledger
	uploader rehost.Uploader
	auth     Authenticator
	recorder Recorder
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time

	factory    AdapterFactory
	httpClient *http.Client
	openaiCfg  provider.OpenAIConfig
	doubaoCfg  provider.DoubaoConfig
}

// plan 是通过前置检查的调用上下文.
type plan struct {
	model  registry.Model
	config registry.GroupConfig
	params GenerateParams
	count  int
}

// New 创建 Dispatcher；未指定 Ledger 时按注册表新建一个独立账本.
func New(reg *registry.Registry, opts ...Option) (*Dispatcher, error) {
	if reg == nil {
		return nil, types.NewError(types.ErrConfiguration, "registry is required")
	}

	d := &Dispatcher{
		reg:       reg,
		uploader:  rehost.NopUploader{},
		auth:      ContextAuthenticator(),
		recorder:  nopRecorder{},
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
		openaiCfg: provider.DefaultOpenAIConfig(),
		doubaoCfg: provider.DefaultDoubaoConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(zap.String("component", "dispatcher"))

	if d.ledger == nil {
		l, err := NewLedgerFromRegistry(reg)
		if err != nil {
			return nil, err
		}
		l.SetClock(d.now)
		d.ledger = l
	}
	return d, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Generate 以聚合模式执行生成.
// 只有前置条件错误（未认证、模型不可用、服务商未实现、请求无效）会返回 error；
// 单个条目的失败记录在对应位置的结果中.
func (d *Dispatcher) Generate(ctx context.Context, modelID string, params GenerateParams, creds provider.Credentials) (*GenerationResponse, error) {
	return d.run(ctx, modelID, params, creds, nil)
}

// ActiveRequestCount 返回 group 当前在途请求数.
func (d *Dispatcher) ActiveRequestCount(group registry.Group) int {
	return d.ledger.Active(group)
}

// LastRequestTime 返回 group 最近一次派发开始的时间.
func (d *Dispatcher) LastRequestTime(group registry.Group) (time.Time, bool) {
	return d.ledger.LastStart(group)
}

// AdmissionStatus 返回所有 Group 的准入状态.
func (d *Dispatcher) AdmissionStatus() []GroupStatus {
	return d.ledger.Snapshot(d.reg.AllGroups()...)
}

// Registry 返回 Dispatcher 使用的注册表.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.reg
}

// prepare 执行不产生任何网络或账本副作用的前置检查.
func (d *Dispatcher) prepare(modelID string, params GenerateParams) (*plan, error) {
	model, ok := d.reg.ModelByID(modelID)
	if !ok {
		return nil, types.Errorf(types.ErrModelUnavailable, "model %q is not available", modelID)
	}
	cfg, err := d.reg.ConfigByGroup(model.Group)
	if err != nil {
		return nil, types.Errorf(types.ErrModelUnavailable, "model %q has no provider configuration", modelID).WithCause(err)
	}
	if err := checkRoute(model); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Prompt) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "prompt is required")
	}

	count := params.Count
	if count <= 0 {
		count = 1
	}
	return &plan{model: model, config: cfg, params: params, count: count}, nil
}

// run 是两种模式共用的批次循环；emit 在每个条目完成后、下一个条目开始前调用.
func (d *Dispatcher) run(ctx context.Context, modelID string, params GenerateParams, creds provider.Credentials,
	emit func(result provider.Result, index, total int)) (*GenerationResponse, error) {
	p, err := d.prepare(modelID, params)
	if err != nil {
		d.logger.Debug("generation rejected", zap.String("model", modelID), zap.Error(err))
		return nil, err
	}

	resp := &GenerationResponse{
		ModelID: p.model.ID,
		Group:   p.model.Group,
		Results: make([]provider.Result, 0, p.count),
	}

	for i := 0; i < p.count; i++ {
		if !d.auth.IsAuthenticated(ctx) {
			return nil, types.NewError(types.ErrAuthRequired, "authentication required")
		}

		res := d.generateItem(ctx, p, creds, i)
		resp.Results = append(resp.Results, *res)
		if emit != nil {
			emit(*res, i, p.count)
		}
	}

	resp.Summary = summarize(resp.Results)
	d.logger.Info("generation completed",
		zap.String("model", p.model.ID),
		zap.String("group", p.model.Group.String()),
		zap.Int("requested", resp.Summary.TotalRequested),
		zap.Int("successful", resp.Summary.Successful),
		zap.Int("failed", resp.Summary.Failed),
	)
	return resp, nil
}

// generateItem 执行单个条目：准入、调用、释放、转存、打时间戳.
// 总是返回非空结果.
func (d *Dispatcher) generateItem(ctx context.Context, p *plan, creds provider.Credentials, index int) *provider.Result {
	group := p.model.Group.String()
	ctx, span := d.tracer.Start(ctx, "dispatcher.generate_item", trace.WithAttributes(
		attribute.String("imageflow.model", p.model.ID),
		attribute.String("imageflow.group", group),
		attribute.Int("imageflow.index", index),
	))
	defer span.End()

	waitStart := time.Now()
	if err := d.ledger.Acquire(ctx, p.model.Group); err != nil {
		d.logger.Warn("admission wait aborted", zap.String("group", group), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission aborted")
		res := provider.Failed(fmt.Errorf("admission wait aborted: %w", err))
		return d.finish(res, p, 0)
	}
	d.recorder.ObserveAdmissionWait(group, time.Since(waitStart))
	d.recorder.SetInFlight(group, d.ledger.Active(p.model.Group))

	callStart := time.Now()
	res := d.invoke(ctx, p, creds)
	elapsed := time.Since(callStart)

	if res.Success && res.ImageURL != "" {
		d.rehost(ctx, p, res)
	}
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
	}
	return d.finish(res, p, elapsed)
}

// invoke 调用适配器；无论结果如何都归还准入名额，适配器 panic 转为失败结果.
func (d *Dispatcher) invoke(ctx context.Context, p *plan, creds provider.Credentials) (res *provider.Result) {
	defer func() {
		d.ledger.Release(p.model.Group)
		d.recorder.SetInFlight(p.model.Group.String(), d.ledger.Active(p.model.Group))
	}()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("adapter panicked", zap.String("model", p.model.ID), zap.Any("panic", r))
			res = provider.Failed(types.Errorf(types.ErrInternalError, "adapter panic: %v", r))
		}
	}()

	adapter, err := d.newAdapter(p.model.Group, creds)
	if err != nil {
		return provider.Failed(err)
	}

	out, err := adapter.Generate(ctx, &provider.Request{
		Prompt:  p.params.Prompt,
		Variant: p.model.Variant,
		Size:    p.params.Size,
		Params:  p.params.Params,
	})
	if err != nil {
		d.logger.Warn("provider call failed",
			zap.String("model", p.model.ID),
			zap.String("provider", adapter.Name()),
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err),
		)
		return provider.Failed(err)
	}
	if out == nil {
		return provider.Failed(types.NewError(types.ErrInvalidResponse, "adapter returned no result"))
	}
	if !out.Success && out.Error == "" {
		out.Error = "generation failed"
	}
	return out
}

// rehost 尽力转存；失败时保留原地址并在状态消息中注明.
func (d *Dispatcher) rehost(ctx context.Context, p *plan, res *provider.Result) {
	group := p.model.Group.String()
	up := d.upload(ctx, res.ImageURL)
	if up.Success && up.URL != "" {
		res.ImageURL = up.URL
		d.recorder.RecordRehost(group, "success")
		return
	}

	reason := up.Error
	if reason == "" {
		reason = "no url returned"
	}
	res.AppendMessage("re-hosting failed, kept provider URL: " + reason)
	d.recorder.RecordRehost(group, "fallback")
	d.logger.Warn("re-hosting failed, keeping provider url",
		zap.String("model", p.model.ID),
		zap.String("reason", reason),
	)
}

func (d *Dispatcher) upload(ctx context.Context, url string) (up rehost.UploadResult) {
	defer func() {
		if r := recover(); r != nil {
			up = rehost.UploadResult{Error: fmt.Sprintf("uploader panic: %v", r)}
		}
	}()
	return d.uploader.UploadFromURL(ctx, url)
}

func (d *Dispatcher) finish(res *provider.Result, p *plan, elapsed time.Duration) *provider.Result {
	res.ID = uuid.NewString()
	res.CreatedAt = d.now()
	d.recorder.ObserveItem(p.model.Group.String(), p.model.ID, res.Success, elapsed)
	return res
}

func summarize(results []provider.Result) Summary {
	s := Summary{TotalRequested: len(results)}
	for _, r := range results {
		if r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}
