// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，同时实现 dispatcher.Recorder
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 生成指标
	generationItemsTotal   *prometheus.CounterVec
	generationItemDuration *prometheus.HistogramVec
	admissionWait          *prometheus.HistogramVec
	inFlight               *prometheus.GaugeVec

	// 转存指标
	rehostTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器；同一 namespace 在默认注册表中只能创建一次
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 生成指标
	c.generationItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_items_total",
			Help:      "Total number of generation items by outcome",
		},
		[]string{"group", "model", "status"},
	)

	c.generationItemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_item_duration_seconds",
			Help:      "Provider call duration per generation item in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"group", "model"},
	)

	c.admissionWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_wait_seconds",
			Help:      "Time spent waiting for provider group admission",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"group"},
	)

	c.inFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_requests_in_flight",
			Help:      "Number of in-flight provider requests per group",
		},
		[]string{"group"},
	)

	// 转存指标
	c.rehostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rehost_total",
			Help:      "Total number of re-hosting attempts by outcome",
		},
		[]string{"group", "outcome"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🖼️ 生成指标记录
// =============================================================================

// ObserveItem 记录一个生成条目的结果与调用耗时
func (c *Collector) ObserveItem(group, model string, success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "failed"
	}
	c.generationItemsTotal.WithLabelValues(group, model, status).Inc()
	if d > 0 {
		c.generationItemDuration.WithLabelValues(group, model).Observe(d.Seconds())
	}
}

// ObserveAdmissionWait 记录准入等待时间
func (c *Collector) ObserveAdmissionWait(group string, d time.Duration) {
	c.admissionWait.WithLabelValues(group).Observe(d.Seconds())
}

// SetInFlight 设置组内在途请求数
func (c *Collector) SetInFlight(group string, n int) {
	c.inFlight.WithLabelValues(group).Set(float64(n))
}

// RecordRehost 记录转存结果，outcome 为 success 或 fallback
func (c *Collector) RecordRehost(group, outcome string) {
	c.rehostTotal.WithLabelValues(group, outcome).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
