package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/BaSui01/imageflow/dispatcher"

// Recorder 将调度事件导出为 OTel 指标，实现 dispatcher.Recorder，
// 通常与 Prometheus Collector 一起经 dispatcher.MultiRecorder 使用。
type Recorder struct {
	items        metric.Int64Counter
	itemDuration metric.Float64Histogram
	admission    metric.Float64Histogram
	rehost       metric.Int64Counter
	inFlight     metric.Int64Gauge
}

// NewRecorder 在 mp 上创建指标仪表；mp 为 nil 时使用全局 MeterProvider。
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	var (
		r   Recorder
		err error
	)
	if r.items, err = meter.Int64Counter("imageflow.generation.items",
		metric.WithDescription("Generation items by outcome"),
		metric.WithUnit("{item}"),
	); err != nil {
		return nil, fmt.Errorf("create items counter: %w", err)
	}
	if r.itemDuration, err = meter.Float64Histogram("imageflow.generation.item.duration",
		metric.WithDescription("Provider call duration per item"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create item duration histogram: %w", err)
	}
	if r.admission, err = meter.Float64Histogram("imageflow.admission.wait",
		metric.WithDescription("Time spent waiting for an admission slot"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create admission histogram: %w", err)
	}
	if r.rehost, err = meter.Int64Counter("imageflow.rehost.attempts",
		metric.WithDescription("Re-hosting attempts by outcome"),
	); err != nil {
		return nil, fmt.Errorf("create rehost counter: %w", err)
	}
	if r.inFlight, err = meter.Int64Gauge("imageflow.admission.in_flight",
		metric.WithDescription("Provider calls currently holding a slot"),
	); err != nil {
		return nil, fmt.Errorf("create in-flight gauge: %w", err)
	}
	return &r, nil
}

func (r *Recorder) ObserveItem(group, model string, success bool, d time.Duration) {
	status := "failed"
	if success {
		status = "success"
	}
	ctx := context.Background()
	r.items.Add(ctx, 1, metric.WithAttributes(
		attribute.String("group", group),
		attribute.String("model", model),
		attribute.String("status", status),
	))
	// 未调用服务商的条目不计入耗时
	if d > 0 {
		r.itemDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
			attribute.String("group", group),
			attribute.String("model", model),
		))
	}
}

func (r *Recorder) ObserveAdmissionWait(group string, d time.Duration) {
	r.admission.Record(context.Background(), d.Seconds(), metric.WithAttributes(attribute.String("group", group)))
}

func (r *Recorder) SetInFlight(group string, n int) {
	r.inFlight.Record(context.Background(), int64(n), metric.WithAttributes(attribute.String("group", group)))
}

func (r *Recorder) RecordRehost(group, outcome string) {
	r.rehost.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("group", group),
		attribute.String("outcome", outcome),
	))
}
