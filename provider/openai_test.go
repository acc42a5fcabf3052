package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAITestAdapter(t *testing.T, handler http.HandlerFunc) *OpenAIAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultOpenAIConfig()
	cfg.BaseURL = server.URL
	a, err := NewOpenAIAdapter(cfg, Credentials{APIKey: "sk-test"}, server.Client())
	require.NoError(t, err)
	return a
}

func TestNewOpenAIAdapter_MissingKey(t *testing.T) {
	_, err := NewOpenAIAdapter(DefaultOpenAIConfig(), Credentials{}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrMissingCredentials, types.GetErrorCode(err))
}

func TestOpenAIAdapter_Generate_URL(t *testing.T) {
	var captured openaiImageRequest
	a := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"created":1,"data":[{"url":"https://cdn.example.com/a.png","revised_prompt":"a red fox"}]}`))
	})

	res, err := a.Generate(context.Background(), &Request{
		Prompt:  "fox",
		Variant: "dall-e-3",
		Params:  map[string]string{"quality": "hd"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "https://cdn.example.com/a.png", res.ImageURL)
	assert.Equal(t, "a red fox", res.Text)

	assert.Equal(t, "dall-e-3", captured.Model)
	assert.Equal(t, "fox", captured.Prompt)
	assert.Equal(t, 1, captured.N)
	assert.Equal(t, "1024x1024", captured.Size)
	assert.Equal(t, "hd", captured.Quality)
}

func TestOpenAIAdapter_Generate_Base64(t *testing.T) {
	a := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"b64_json":"aGVsbG8="}]}`))
	})

	res, err := a.Generate(context.Background(), &Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", res.ImageURL)
}

func TestOpenAIAdapter_Generate_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      types.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, types.ErrUpstreamError, false},
		{"forbidden", http.StatusForbidden, types.ErrUpstreamError, false},
		{"rate limited", http.StatusTooManyRequests, types.ErrRateLimited, true},
		{"bad request", http.StatusBadRequest, types.ErrUpstreamError, false},
		{"server error", http.StatusBadGateway, types.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope"}}`))
			})

			_, err := a.Generate(context.Background(), &Request{Prompt: "x"})
			require.Error(t, err)
			e, ok := types.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, "openai", e.Provider)
		})
	}
}

func TestOpenAIAdapter_Generate_InvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"no data", `{"data":[]}`},
		{"empty entry", `{"data":[{}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			_, err := a.Generate(context.Background(), &Request{Prompt: "x"})
			assert.Equal(t, types.ErrInvalidResponse, types.GetErrorCode(err))
		})
	}
}

func TestOpenAIAdapter_Generate_Timeout(t *testing.T) {
	a := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := a.Generate(ctx, &Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamTimeout, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestCredentials_Masking(t *testing.T) {
	c := Credentials{APIKey: "sk-secret", APISecret: "shh"}
	assert.NotContains(t, c.String(), "sk-secret")

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "sk-secret")
	assert.NotContains(t, string(b), "shh")
	assert.NotContains(t, string(b), "extra_key")

	assert.True(t, Credentials{}.IsZero())
	assert.Equal(t, "Credentials{}", Credentials{}.String())
}

func TestResult_AppendMessage(t *testing.T) {
	r := &Result{}
	r.AppendMessage("first")
	r.AppendMessage("second")
	assert.Equal(t, "first; second", r.Message)

	f := Failed(nil)
	assert.False(t, f.Success)
	assert.NotEmpty(t, f.Error)
}

func TestOpenAIAdapter_Generate_ModelParamOverridesVariant(t *testing.T) {
	var captured openaiImageRequest
	a := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"created":1,"data":[{"url":"https://cdn.example.com/a.png"}]}`))
	})

	_, err := a.Generate(context.Background(), &Request{
		Prompt:  "fox",
		Variant: "gpt-image-1",
		Params:  map[string]string{"model": "dall-e-3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "dall-e-3", captured.Model)
}
