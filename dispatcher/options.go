package dispatcher

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/registry"
	"github.com/BaSui01/imageflow/rehost"
	"github.com/BaSui01/imageflow/types"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Authenticator 判断调用方是否已认证，每个条目派发前检查一次.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

// AuthFunc 允许普通函数作为 Authenticator 使用.
type AuthFunc func(ctx context.Context) bool

func (f AuthFunc) IsAuthenticated(ctx context.Context) bool { return f(ctx) }

// ContextAuthenticator 以 ctx 中存在用户 ID 作为已认证的依据.
func ContextAuthenticator() Authenticator {
	return AuthFunc(func(ctx context.Context) bool {
		_, ok := types.UserID(ctx)
		return ok
	})
}

// AllowAll 认为所有调用方均已认证.
func AllowAll() Authenticator {
	return AuthFunc(func(context.Context) bool { return true })
}

// Recorder 接收派发过程中的指标.
type Recorder interface {
	ObserveAdmissionWait(group string, d time.Duration)
	ObserveItem(group, model string, success bool, d time.Duration)
	RecordRehost(group, outcome string)
	SetInFlight(group string, n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAdmissionWait(string, time.Duration)      {}
func (nopRecorder) ObserveItem(string, string, bool, time.Duration) {}
func (nopRecorder) RecordRehost(string, string)                     {}
func (nopRecorder) SetInFlight(string, int)                         {}

// MultiRecorder 把事件依次转发给多个 Recorder；nil 项被忽略.
func MultiRecorder(rs ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) ObserveAdmissionWait(group string, d time.Duration) {
	for _, r := range m {
		r.ObserveAdmissionWait(group, d)
	}
}

func (m multiRecorder) ObserveItem(group, model string, success bool, d time.Duration) {
	for _, r := range m {
		r.ObserveItem(group, model, success, d)
	}
}

func (m multiRecorder) RecordRehost(group, outcome string) {
	for _, r := range m {
		r.RecordRehost(group, outcome)
	}
}

func (m multiRecorder) SetInFlight(group string, n int) {
	for _, r := range m {
		r.SetInFlight(group, n)
	}
}

// AdapterFactory 为已实现的 Group 构造适配器.
// 只替换构造过程，路由仍由 Dispatcher 的封闭分支决定.
type AdapterFactory func(group registry.Group, creds provider.Credentials) (provider.Adapter, error)

// Option 配置 Dispatcher
type Option func(*Dispatcher)

// WithUploader 设置转存协作方
func WithUploader(u rehost.Uploader) Option {
	return func(d *Dispatcher) {
		if u != nil {
			d.uploader = u
		}
	}
}

// WithAuthenticator 设置认证检查
func WithAuthenticator(a Authenticator) Option {
	return func(d *Dispatcher) {
		if a != nil {
			d.auth = a
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder 设置指标接收方
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithHTTPClient 设置适配器共用的 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		d.httpClient = c
	}
}

// WithAdapterFactory 替换适配器构造过程
func WithAdapterFactory(f AdapterFactory) Option {
	return func(d *Dispatcher) {
		d.factory = f
	}
}

// WithLedger 使用外部构造的准入账本
func WithLedger(l *Ledger) Option {
	return func(d *Dispatcher) {
		d.ledger = l
	}
}

// WithClock 设置结果时间戳与内置准入账本的时钟；WithLedger 传入的账本不受影响
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithOpenAIConfig 设置 OpenAI 适配器配置
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return func(d *Dispatcher) {
		d.openaiCfg = cfg
	}
}

// WithDoubaoConfig 设置豆包适配器配置
func WithDoubaoConfig(cfg provider.DoubaoConfig) Option {
	return func(d *Dispatcher) {
		d.doubaoCfg = cfg
	}
}

// WithTracerProvider 使用指定的 TracerProvider 替代全局 Provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(instrumentationName)
		}
	}
}
