package dispatcher

import (
	"context"

	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/types"
)

// StreamCallbacks 是流式模式的回调集合，nil 回调会被跳过.
type StreamCallbacks struct {
	// OnProgress 在每个条目完成后按顺序同步调用
	OnProgress func(result provider.Result, index, total int)
	// OnComplete 在全部条目完成后调用一次
	OnComplete func(resp *GenerationResponse)
	// OnError 在前置条件失败或出现意外错误时调用，与 OnComplete 互斥
	OnError func(err error)
}

// GenerateStream 以流式模式执行生成，准入与条目语义与 Generate 相同.
func (d *Dispatcher) GenerateStream(ctx context.Context, modelID string, params GenerateParams, cb StreamCallbacks, creds provider.Credentials) {
	resp, err := d.runGuarded(ctx, modelID, params, creds, cb.OnProgress)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}
	if cb.OnComplete != nil {
		cb.OnComplete(resp)
	}
}

// runGuarded 把批次循环中逃逸的 panic 转为 INTERNAL_ERROR.
func (d *Dispatcher) runGuarded(ctx context.Context, modelID string, params GenerateParams, creds provider.Credentials,
	emit func(provider.Result, int, int)) (resp *GenerationResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = types.Errorf(types.ErrInternalError, "stream aborted: %v", r)
		}
	}()
	return d.run(ctx, modelID, params, creds, emit)
}

// =============================================================================
// 📡 Channel 形式
// =============================================================================

// EventType 区分流事件.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// StreamEvent 是 Stream 返回的通道元素；最后一个事件为 complete 或 error.
type StreamEvent struct {
	Type     EventType           `json:"type"`
	Index    int                 `json:"index"`
	Total    int                 `json:"total"`
	Result   *provider.Result    `json:"result,omitempty"`
	Response *GenerationResponse `json:"response,omitempty"`
	Err      error               `json:"-"`
}

// Stream 以通道形式返回流式结果. 通道无缓冲，消费方读取后才会开始下一个条目；
// 最后一个事件之后通道关闭. ctx 取消后未送达的事件被丢弃.
func (d *Dispatcher) Stream(ctx context.Context, modelID string, params GenerateParams, creds provider.Credentials) <-chan StreamEvent {
	ch := make(chan StreamEvent)

	send := func(ev StreamEvent) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(ch)
		d.GenerateStream(ctx, modelID, params, StreamCallbacks{
			OnProgress: func(result provider.Result, index, total int) {
				r := result
				send(StreamEvent{Type: EventProgress, Index: index, Total: total, Result: &r})
			},
			OnComplete: func(resp *GenerationResponse) {
				send(StreamEvent{Type: EventComplete, Total: resp.Summary.TotalRequested, Response: resp})
			},
			OnError: func(err error) {
				send(StreamEvent{Type: EventError, Err: err})
			},
		}, creds)
	}()

	return ch
}
