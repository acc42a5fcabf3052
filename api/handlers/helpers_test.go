package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BaSui01/imageflow/dispatcher"
	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/registry"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(registry.Catalog{
		Groups: []registry.GroupEntry{
			{Group: registry.GroupOpenAI, MaxConcurrent: 2},
			{Group: registry.GroupDoubao, MaxConcurrent: 2},
			{Group: registry.GroupMidjourney, MaxConcurrent: 1},
		},
		Models: []registry.ModelEntry{
			{ID: "gpt-image", Name: "GPT Image", Group: registry.GroupOpenAI, Category: "general"},
			{ID: "seedream", Name: "Seedream", Group: registry.GroupDoubao, Category: "general"},
			{ID: "mj", Name: "Midjourney", Group: registry.GroupMidjourney, Category: "artistic"},
		},
	})
	require.NoError(t, err)
	return reg
}

// stubAdapters 记录每次构造适配器时收到的凭证
type stubAdapters struct {
	mu    sync.Mutex
	creds map[registry.Group][]provider.Credentials
	fn    func(ctx context.Context, req *provider.Request) (*provider.Result, error)
}

type stubAdapter struct {
	fn func(ctx context.Context, req *provider.Request) (*provider.Result, error)
}

func (a stubAdapter) Name() string { return "stub" }

func (a stubAdapter) Generate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	if a.fn != nil {
		return a.fn(ctx, req)
	}
	return &provider.Result{Success: true, ImageURL: "https://cdn.example/" + req.Prompt + ".png"}, nil
}

func (s *stubAdapters) factory() dispatcher.AdapterFactory {
	return func(group registry.Group, creds provider.Credentials) (provider.Adapter, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.creds == nil {
			s.creds = make(map[registry.Group][]provider.Credentials)
		}
		s.creds[group] = append(s.creds[group], creds)
		return stubAdapter{fn: s.fn}, nil
	}
}

func (s *stubAdapters) credsFor(g registry.Group) []provider.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Credentials(nil), s.creds[g]...)
}

func newTestDispatcher(t *testing.T, stubs *stubAdapters, opts ...dispatcher.Option) *dispatcher.Dispatcher {
	t.Helper()
	all := append([]dispatcher.Option{
		dispatcher.WithAdapterFactory(stubs.factory()),
		dispatcher.WithAuthenticator(dispatcher.AllowAll()),
	}, opts...)
	d, err := dispatcher.New(testRegistry(t), all...)
	require.NoError(t, err)
	return d
}

func newGenerationHandler(t *testing.T, d *dispatcher.Dispatcher, defaults map[registry.Group]provider.Credentials) *GenerationHandler {
	t.Helper()
	return NewGenerationHandler(d, NewCredentialResolver(defaults), zap.NewNop())
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(method, target, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// decodeEnvelope 解析统一响应，并把 data 解码到 dst
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, dst any) Response {
	t.Helper()
	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&raw))
	if dst != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, dst))
	}
	return raw.Response
}
