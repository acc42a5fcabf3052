package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/registry"
	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/require"
)

// testCatalog 返回测试用目录，openai 组的准入参数可调
func testCatalog(openaiMax int, openaiCooldownMs int64) registry.Catalog {
	return registry.Catalog{
		Groups: []registry.GroupEntry{
			{Group: registry.GroupOpenAI, MaxConcurrent: openaiMax, CooldownMs: openaiCooldownMs},
			{Group: registry.GroupDoubao, MaxConcurrent: 2},
			{Group: registry.GroupMidjourney, MaxConcurrent: 1},
		},
		Models: []registry.ModelEntry{
			{ID: "img-a", Group: registry.GroupOpenAI, Variant: "gpt-image-1", Category: "general"},
			{ID: "img-b", Group: registry.GroupOpenAI, Variant: "dall-e-3", Category: "general"},
			{ID: "seed", Group: registry.GroupDoubao, Variant: "seedream", Category: "general"},
			{ID: "mj", Group: registry.GroupMidjourney, Category: "artistic"},
		},
	}
}

func testRegistry(t testing.TB, openaiMax int, openaiCooldownMs int64) *registry.Registry {
	t.Helper()
	reg, err := registry.New(testCatalog(openaiMax, openaiCooldownMs))
	require.NoError(t, err)
	return reg
}

func authed() context.Context {
	return types.WithUserID(context.Background(), "user-1")
}

// fakeAdapter 按调用序号执行 fn，并统计并发度
type fakeAdapter struct {
	fn func(ctx context.Context, n int, req *provider.Request) (*provider.Result, error)

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32

	mu       sync.Mutex
	requests []provider.Request
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Generate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	n := int(f.calls.Add(1)) - 1
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, *req)
	f.mu.Unlock()

	if f.fn == nil {
		return &provider.Result{Success: true, ImageURL: "https://provider.example/img.png"}, nil
	}
	return f.fn(ctx, n, req)
}

func (f *fakeAdapter) factory() AdapterFactory {
	return func(registry.Group, provider.Credentials) (provider.Adapter, error) {
		return f, nil
	}
}

func sleepingAdapter(d time.Duration) *fakeAdapter {
	return &fakeAdapter{fn: func(ctx context.Context, n int, req *provider.Request) (*provider.Result, error) {
		time.Sleep(d)
		return &provider.Result{Success: true, ImageURL: "https://provider.example/img.png"}, nil
	}}
}

// recordingRecorder 记录 Recorder 调用
type recordingRecorder struct {
	mu      sync.Mutex
	items   int
	rehosts map[string]int
}

func (r *recordingRecorder) ObserveAdmissionWait(string, time.Duration) {}
func (r *recordingRecorder) SetInFlight(string, int)                    {}

func (r *recordingRecorder) ObserveItem(string, string, bool, time.Duration) {
	r.mu.Lock()
	r.items++
	r.mu.Unlock()
}

func (r *recordingRecorder) RecordRehost(_ string, outcome string) {
	r.mu.Lock()
	if r.rehosts == nil {
		r.rehosts = map[string]int{}
	}
	r.rehosts[outcome]++
	r.mu.Unlock()
}
