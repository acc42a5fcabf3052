package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/imageflow/api"
	"github.com/BaSui01/imageflow/dispatcher"
	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/registry"
	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 🧪 聚合模式
// =============================================================================

func TestGenerationHandler_HandleGenerate(t *testing.T) {
	stubs := &stubAdapters{}
	h := newGenerationHandler(t, newTestDispatcher(t, stubs), nil)

	r := jsonRequest(t, http.MethodPost, "/api/v1/images/generations", api.GenerateRequest{
		Model: "gpt-image", Prompt: "fox", Count: 3,
	})
	r = r.WithContext(types.WithRequestID(r.Context(), "req-1"))
	w := httptest.NewRecorder()

	h.HandleGenerate(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.GenerationResponse
	env := decodeEnvelope(t, w, &resp)
	assert.True(t, env.Success)
	assert.Equal(t, "req-1", env.RequestID)

	assert.Equal(t, "gpt-image", resp.Model)
	assert.Equal(t, "openai", resp.Group)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, api.GenerationSummary{TotalRequested: 3, Successful: 3}, resp.Summary)
	for _, res := range resp.Results {
		assert.True(t, res.Success)
		assert.Equal(t, "https://cdn.example/fox.png", res.ImageURL)
		assert.NotEmpty(t, res.ID)
	}
}

func TestGenerationHandler_HandleGenerate_PreconditionStatus(t *testing.T) {
	tests := []struct {
		name       string
		body       api.GenerateRequest
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{"unknown model", api.GenerateRequest{Model: "nope", Prompt: "x"}, http.StatusNotFound, types.ErrModelUnavailable},
		{"unsupported group", api.GenerateRequest{Model: "mj", Prompt: "x"}, http.StatusNotImplemented, types.ErrUnsupportedProvider},
		{"missing model", api.GenerateRequest{Prompt: "x"}, http.StatusBadRequest, types.ErrInvalidRequest},
		{"empty prompt", api.GenerateRequest{Model: "gpt-image"}, http.StatusBadRequest, types.ErrInvalidRequest},
		{"count too large", api.GenerateRequest{Model: "gpt-image", Prompt: "x", Count: maxCount + 1}, http.StatusBadRequest, types.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubs := &stubAdapters{}
			h := newGenerationHandler(t, newTestDispatcher(t, stubs), nil)

			w := httptest.NewRecorder()
			h.HandleGenerate(w, jsonRequest(t, http.MethodPost, "/api/v1/images/generations", tt.body))

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decodeEnvelope(t, w, nil)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(tt.wantCode), env.Error.Code)
			assert.Empty(t, stubs.credsFor(registry.GroupOpenAI), "no adapter should be constructed")
		})
	}
}

func TestGenerationHandler_HandleGenerate_AuthRequired(t *testing.T) {
	stubs := &stubAdapters{}
	d := newTestDispatcher(t, stubs, dispatcher.WithAuthenticator(dispatcher.ContextAuthenticator()))
	h := newGenerationHandler(t, d, nil)

	w := httptest.NewRecorder()
	h.HandleGenerate(w, jsonRequest(t, http.MethodPost, "/api/v1/images/generations", api.GenerateRequest{Model: "gpt-image", Prompt: "x"}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decodeEnvelope(t, w, nil)
	assert.Equal(t, string(types.ErrAuthRequired), env.Error.Code)
}

func TestGenerationHandler_HandleGenerate_BadBody(t *testing.T) {
	h := newGenerationHandler(t, newTestDispatcher(t, &stubAdapters{}), nil)

	t.Run("wrong content type", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/images/generations", strings.NewReader(`{}`))
		r.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		h.HandleGenerate(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/images/generations", strings.NewReader(`{"model":"gpt-image","prompt":"x","n":2}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.HandleGenerate(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGenerationHandler_HandleGenerate_PartialFailure(t *testing.T) {
	calls := 0
	stubs := &stubAdapters{fn: func(ctx context.Context, req *provider.Request) (*provider.Result, error) {
		calls++
		if calls == 2 {
			return nil, types.NewError(types.ErrUpstreamError, "boom")
		}
		return &provider.Result{Success: true, ImageURL: "https://cdn.example/ok.png"}, nil
	}}
	h := newGenerationHandler(t, newTestDispatcher(t, stubs), nil)

	w := httptest.NewRecorder()
	h.HandleGenerate(w, jsonRequest(t, http.MethodPost, "/", api.GenerateRequest{Model: "gpt-image", Prompt: "x", Count: 3}))

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.GenerationResponse
	decodeEnvelope(t, w, &resp)
	require.Len(t, resp.Results, 3)
	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[1].Success)
	assert.Contains(t, resp.Results[1].Error, "boom")
	assert.True(t, resp.Results[2].Success)
	assert.Equal(t, api.GenerationSummary{TotalRequested: 3, Successful: 2, Failed: 1}, resp.Summary)
}

// =============================================================================
// 🧪 凭证解析
// =============================================================================

func TestGenerationHandler_Credentials(t *testing.T) {
	defaults := map[registry.Group]provider.Credentials{
		registry.GroupOpenAI: {APIKey: "server-key"},
	}

	t.Run("header wins", func(t *testing.T) {
		stubs := &stubAdapters{}
		h := newGenerationHandler(t, newTestDispatcher(t, stubs), defaults)

		r := jsonRequest(t, http.MethodPost, "/", api.GenerateRequest{Model: "gpt-image", Prompt: "x"})
		r.Header.Set(HeaderProviderKey, "caller-key")
		h.HandleGenerate(httptest.NewRecorder(), r)

		got := stubs.credsFor(registry.GroupOpenAI)
		require.Len(t, got, 1)
		assert.Equal(t, "caller-key", got[0].APIKey)
	})

	t.Run("falls back to server default", func(t *testing.T) {
		stubs := &stubAdapters{}
		h := newGenerationHandler(t, newTestDispatcher(t, stubs), defaults)

		h.HandleGenerate(httptest.NewRecorder(), jsonRequest(t, http.MethodPost, "/", api.GenerateRequest{Model: "gpt-image", Prompt: "x"}))

		got := stubs.credsFor(registry.GroupOpenAI)
		require.Len(t, got, 1)
		assert.Equal(t, "server-key", got[0].APIKey)
	})

	t.Run("doubao header triple", func(t *testing.T) {
		stubs := &stubAdapters{}
		h := newGenerationHandler(t, newTestDispatcher(t, stubs), defaults)

		r := jsonRequest(t, http.MethodPost, "/", api.GenerateRequest{Model: "seedream", Prompt: "x"})
		r.Header.Set(HeaderProviderKey, "ak")
		r.Header.Set(HeaderProviderSecret, "sk")
		r.Header.Set(HeaderProviderExtraKey, "ep-1")
		h.HandleGenerate(httptest.NewRecorder(), r)

		got := stubs.credsFor(registry.GroupDoubao)
		require.Len(t, got, 1)
		assert.Equal(t, provider.Credentials{APIKey: "ak", APISecret: "sk", ExtraKey: "ep-1"}, got[0])
	})
}

// =============================================================================
// 🧪 流式模式
// =============================================================================

type sseEvent struct {
	name string
	data string
}

func readSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "" && cur.name != "":
			events = append(events, cur)
			cur = sseEvent{}
		}
	}
	require.NoError(t, sc.Err())
	return events
}

func TestGenerationHandler_HandleStream(t *testing.T) {
	calls := 0
	stubs := &stubAdapters{fn: func(ctx context.Context, req *provider.Request) (*provider.Result, error) {
		calls++
		if calls%2 == 0 {
			return nil, errors.New("upstream down")
		}
		return &provider.Result{Success: true, ImageURL: "https://cdn.example/a.png"}, nil
	}}
	h := newGenerationHandler(t, newTestDispatcher(t, stubs), nil)

	w := httptest.NewRecorder()
	h.HandleStream(w, jsonRequest(t, http.MethodPost, "/api/v1/images/generations/stream", api.GenerateRequest{
		Model: "gpt-image", Prompt: "x", Count: 3,
	}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := readSSE(t, w.Body.String())
	require.Len(t, events, 4)

	for i := 0; i < 3; i++ {
		assert.Equal(t, "progress", events[i].name)
		var ev api.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(events[i].data), &ev))
		assert.Equal(t, i, ev.Index)
		assert.Equal(t, 3, ev.Total)
		assert.Equal(t, i != 1, ev.Result.Success)
	}

	assert.Equal(t, "complete", events[3].name)
	var resp api.GenerationResponse
	require.NoError(t, json.Unmarshal([]byte(events[3].data), &resp))
	assert.Equal(t, api.GenerationSummary{TotalRequested: 3, Successful: 2, Failed: 1}, resp.Summary)
}

func TestGenerationHandler_HandleStream_Precondition(t *testing.T) {
	h := newGenerationHandler(t, newTestDispatcher(t, &stubAdapters{}), nil)

	w := httptest.NewRecorder()
	h.HandleStream(w, jsonRequest(t, http.MethodPost, "/", api.GenerateRequest{Model: "mj", Prompt: "x"}))

	events := readSSE(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)

	var body api.ErrorBody
	require.NoError(t, json.Unmarshal([]byte(events[0].data), &body))
	assert.Equal(t, string(types.ErrUnsupportedProvider), body.Code)
	assert.Contains(t, body.Message, "artistic")
}

// =============================================================================
// 🧪 多模型
// =============================================================================

func TestGenerationHandler_HandleMulti(t *testing.T) {
	stubs := &stubAdapters{}
	defaults := map[registry.Group]provider.Credentials{
		registry.GroupOpenAI: {APIKey: "server-openai"},
		registry.GroupDoubao: {APIKey: "server-doubao", APISecret: "s"},
	}
	h := newGenerationHandler(t, newTestDispatcher(t, stubs), defaults)

	r := jsonRequest(t, http.MethodPost, "/api/v1/images/generations/multi", api.MultiGenerateRequest{
		Models: []string{"seedream", "nope", "gpt-image"},
		Prompt: "x",
		Count:  2,
	})
	r.Header.Set("X-Provider-Key-Doubao", "caller-doubao")
	r.Header.Set("X-Provider-Secret-Doubao", "caller-secret")
	// 不带组名的请求头在多模型接口中被忽略
	r.Header.Set(HeaderProviderKey, "ignored")
	w := httptest.NewRecorder()

	h.HandleMulti(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.MultiGenerationResponse
	decodeEnvelope(t, w, &resp)
	require.Len(t, resp.Outcomes, 3)

	assert.Equal(t, "seedream", resp.Outcomes[0].Model)
	require.NotNil(t, resp.Outcomes[0].Response)
	assert.Len(t, resp.Outcomes[0].Response.Results, 2)

	assert.Equal(t, "nope", resp.Outcomes[1].Model)
	require.NotNil(t, resp.Outcomes[1].Error)
	assert.Equal(t, string(types.ErrModelUnavailable), resp.Outcomes[1].Error.Code)

	assert.Equal(t, "gpt-image", resp.Outcomes[2].Model)
	require.NotNil(t, resp.Outcomes[2].Response)

	for _, c := range stubs.credsFor(registry.GroupDoubao) {
		assert.Equal(t, "caller-doubao", c.APIKey)
		assert.Equal(t, "caller-secret", c.APISecret)
	}
	for _, c := range stubs.credsFor(registry.GroupOpenAI) {
		assert.Equal(t, "server-openai", c.APIKey)
	}
}

func TestGenerationHandler_HandleMulti_EmptyModels(t *testing.T) {
	h := newGenerationHandler(t, newTestDispatcher(t, &stubAdapters{}), nil)

	w := httptest.NewRecorder()
	h.HandleMulti(w, jsonRequest(t, http.MethodPost, "/", api.MultiGenerateRequest{Prompt: "x"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateCount(t *testing.T) {
	tests := []struct {
		count int
		ok    bool
	}{
		{-1, false},
		{0, true},
		{1, true},
		{maxCount, true},
		{maxCount + 1, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("count_%d", tt.count), func(t *testing.T) {
			err := validateCount(tt.count)
			if tt.ok {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, types.ErrInvalidRequest, err.Code)
			assert.Equal(t, fmt.Sprintf("count must be between 0 and %d (0 means 1)", maxCount), err.Message)
		})
	}
}

func TestGenerationHandler_HandleStream_OutlivesWriteTimeout(t *testing.T) {
	stubs := &stubAdapters{fn: func(ctx context.Context, req *provider.Request) (*provider.Result, error) {
		time.Sleep(60 * time.Millisecond)
		return &provider.Result{Success: true, ImageURL: "https://cdn.example/a.png"}, nil
	}}
	h := newGenerationHandler(t, newTestDispatcher(t, stubs), nil)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleStream(NewResponseWriter(w), r)
	}))
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	t.Cleanup(srv.Close)

	payload, err := json.Marshal(api.GenerateRequest{Model: "gpt-image", Prompt: "x", Count: 3})
	require.NoError(t, err)
	resp, err := srv.Client().Post(srv.URL, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	events := readSSE(t, string(body))
	require.Len(t, events, 4)
	assert.Equal(t, "complete", events[3].name)
}
