package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeGenerateRequest(t *testing.T, r *http.Request) ollamaGenerateRequest {
	t.Helper()
	var req ollamaGenerateRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestOllamaGenerate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		got = decodeGenerateRequest(t, r)
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Model: got.Model, Response: "hello there", Done: true})
	}))
	defer srv.Close()

	a, err := NewOllamaAdapter("mistral:7b-instruct", srv.URL)
	require.NoError(t, err)

	out, err := a.Generate(context.Background(), "say hello", &GenerateOptions{MaxTokens: 64, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	assert.Equal(t, "mistral:7b-instruct", got.Model)
	assert.Equal(t, "say hello", got.Prompt)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	assert.Equal(t, 64, got.Options.NumPredict)
	assert.InDelta(t, 0.2, got.Options.Temperature, 1e-9)
	assert.Nil(t, got.KeepAlive)
}

func TestOllamaLoadAndUnloadKeepAlive(t *testing.T) {
	var requests []ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, decodeGenerateRequest(t, r))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Done: true})
	}))
	defer srv.Close()

	a, err := NewOllamaAdapter("hermes2-pro", srv.URL)
	require.NoError(t, err)

	require.NoError(t, a.Load(context.Background()))
	require.NoError(t, a.Unload(context.Background()))

	require.Len(t, requests, 2)
	require.NotNil(t, requests[0].KeepAlive)
	assert.Equal(t, -1, *requests[0].KeepAlive, "load pins the model")
	require.NotNil(t, requests[1].KeepAlive)
	assert.Equal(t, 0, *requests[1].KeepAlive, "unload evicts the model")
	assert.Empty(t, requests[0].Prompt)
}

func TestOllamaModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'missing' not found"})
	}))
	defer srv.Close()

	a, err := NewOllamaAdapter("missing", srv.URL)
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotFound))

	var adapterErr *AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, http.StatusNotFound, adapterErr.Status)
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "out of memory"})
	}))
	defer srv.Close()

	a, err := NewOllamaAdapter("hermes2-pro", srv.URL)
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.True(t, IsTransient(err), "5xx should be retryable")
	assert.Contains(t, err.Error(), "out of memory")
}

func TestOllamaNotReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	a, err := NewOllamaAdapter("hermes2-pro", srv.URL)
	require.NoError(t, err)

	err = a.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestOllamaCheckRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"models": []any{}})
	}))
	defer srv.Close()

	a, err := NewOllamaAdapter("hermes2-pro", srv.URL)
	require.NoError(t, err)
	assert.NoError(t, a.CheckRunning(context.Background()))
}

func TestNewOllamaAdapterRequiresModel(t *testing.T) {
	_, err := NewOllamaAdapter("", "")
	require.Error(t, err)
}
