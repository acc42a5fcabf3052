package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alternatingAdapter() *fakeAdapter {
	return &fakeAdapter{fn: func(ctx context.Context, n int, req *provider.Request) (*provider.Result, error) {
		if n%2 == 1 {
			return nil, errors.New("upstream failure")
		}
		return &provider.Result{Success: true, ImageURL: "https://p/img.png"}, nil
	}}
}

func TestGenerateStream_AlternatingResults(t *testing.T) {
	d, err := New(testRegistry(t, 2, 0), WithAdapterFactory(alternatingAdapter().factory()))
	require.NoError(t, err)

	type progress struct {
		success      bool
		index, total int
	}
	var got []progress
	var completed []*GenerationResponse
	var errs []error

	d.GenerateStream(authed(), "img-a", GenerateParams{Prompt: "x", Count: 3}, StreamCallbacks{
		OnProgress: func(r provider.Result, index, total int) {
			got = append(got, progress{r.Success, index, total})
		},
		OnComplete: func(resp *GenerationResponse) { completed = append(completed, resp) },
		OnError:    func(err error) { errs = append(errs, err) },
	}, provider.Credentials{})

	assert.Equal(t, []progress{{true, 0, 3}, {false, 1, 3}, {true, 2, 3}}, got)
	require.Len(t, completed, 1)
	assert.Equal(t, Summary{TotalRequested: 3, Successful: 2, Failed: 1}, completed[0].Summary)
	assert.Empty(t, errs)
}

func TestGenerateStream_ProgressBeforeNextItem(t *testing.T) {
	adapter := &fakeAdapter{}
	d, err := New(testRegistry(t, 2, 0), WithAdapterFactory(adapter.factory()))
	require.NoError(t, err)

	var callsAtProgress []int32
	d.GenerateStream(authed(), "img-a", GenerateParams{Prompt: "x", Count: 3}, StreamCallbacks{
		OnProgress: func(provider.Result, int, int) {
			callsAtProgress = append(callsAtProgress, adapter.calls.Load())
		},
	}, provider.Credentials{})

	assert.Equal(t, []int32{1, 2, 3}, callsAtProgress)
}

func TestGenerateStream_PreconditionInvokesOnError(t *testing.T) {
	adapter := &fakeAdapter{}
	d, err := New(testRegistry(t, 2, 0), WithAdapterFactory(adapter.factory()))
	require.NoError(t, err)

	var progressCalls, completeCalls int
	var gotErr error
	d.GenerateStream(authed(), "mj", GenerateParams{Prompt: "x", Count: 2}, StreamCallbacks{
		OnProgress: func(provider.Result, int, int) { progressCalls++ },
		OnComplete: func(*GenerationResponse) { completeCalls++ },
		OnError:    func(err error) { gotErr = err },
	}, provider.Credentials{})

	assert.Equal(t, types.ErrUnsupportedProvider, types.GetErrorCode(gotErr))
	assert.Zero(t, progressCalls)
	assert.Zero(t, completeCalls)
	assert.Zero(t, adapter.calls.Load())
}

func TestGenerateStream_NilCallbacks(t *testing.T) {
	d, err := New(testRegistry(t, 2, 0), WithAdapterFactory((&fakeAdapter{}).factory()))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		d.GenerateStream(authed(), "img-a", GenerateParams{Prompt: "x", Count: 2}, StreamCallbacks{}, provider.Credentials{})
		d.GenerateStream(authed(), "nope", GenerateParams{Prompt: "x"}, StreamCallbacks{}, provider.Credentials{})
	})
}

func TestGenerateStream_EscapedPanicInvokesOnError(t *testing.T) {
	d, err := New(testRegistry(t, 2, 0), WithAdapterFactory((&fakeAdapter{}).factory()))
	require.NoError(t, err)

	var gotErr error
	completed := false
	d.GenerateStream(authed(), "img-a", GenerateParams{Prompt: "x", Count: 2}, StreamCallbacks{
		OnProgress: func(provider.Result, int, int) { panic("render failed") },
		OnComplete: func(*GenerationResponse) { completed = true },
		OnError:    func(err error) { gotErr = err },
	}, provider.Credentials{})

	assert.False(t, completed)
	assert.Equal(t, types.ErrInternalError, types.GetErrorCode(gotErr))
}

func TestStream_Channel(t *testing.T) {
	d, err := New(testRegistry(t, 2, 0), WithAdapterFactory(alternatingAdapter().factory()))
	require.NoError(t, err)

	var events []StreamEvent
	for ev := range d.Stream(authed(), "img-a", GenerateParams{Prompt: "x", Count: 3}, provider.Credentials{}) {
		events = append(events, ev)
	}

	require.Len(t, events, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, EventProgress, events[i].Type)
		assert.Equal(t, i, events[i].Index)
		assert.Equal(t, 3, events[i].Total)
		require.NotNil(t, events[i].Result)
	}
	assert.False(t, events[1].Result.Success)

	last := events[3]
	assert.Equal(t, EventComplete, last.Type)
	require.NotNil(t, last.Response)
	assert.Equal(t, 2, last.Response.Summary.Successful)
}

func TestStream_ChannelError(t *testing.T) {
	d, err := New(testRegistry(t, 2, 0))
	require.NoError(t, err)

	var events []StreamEvent
	for ev := range d.Stream(context.Background(), "img-a", GenerateParams{Prompt: "x"}, provider.Credentials{}) {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, types.ErrAuthRequired, types.GetErrorCode(events[0].Err))
}

func TestStream_AbandonedConsumerDoesNotLeak(t *testing.T) {
	adapter := &fakeAdapter{}
	d, err := New(testRegistry(t, 2, 0), WithAdapterFactory(adapter.factory()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(authed())
	ch := d.Stream(ctx, "img-a", GenerateParams{Prompt: "x", Count: 5}, provider.Credentials{})
	<-ch
	cancel()

	// 取消后通道最终关闭
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel was not closed after cancel")
		}
	}
}
