package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/config"
)

func TestEmbedText_AuthorizationHeaderMapping(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		resp := map[string]any{"data": []map[string]any{{"embedding": []float32{0.1}}}}
		b, _ := json.Marshal(resp)
		w.Write(b)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{BaseURL: ts.URL, Path: "/", Model: "m", APIHeader: "Authorization", APIKey: "secret"}
	_, err := EmbedText(context.Background(), cfg, []string{"x"})
	require.NoError(t, err)
}

func TestEmbedText_CustomHeaderName(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "abc", r.Header.Get("X-Api-Key"))
		resp := map[string]any{"data": []map[string]any{{"embedding": []float32{0.1}}}}
		b, _ := json.Marshal(resp)
		w.Write(b)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{BaseURL: ts.URL, Path: "/", Model: "m", APIHeader: "X-Api-Key", APIKey: "abc"}
	_, err := EmbedText(context.Background(), cfg, []string{"x"})
	require.NoError(t, err)
}

func TestEmbedText_CountMismatchIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"data": []map[string]any{{"embedding": []float32{0.1}}}}
		b, _ := json.Marshal(resp)
		w.Write(b)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{BaseURL: ts.URL, Path: "/", Model: "m"}
	_, err := EmbedText(context.Background(), cfg, []string{"x", "y"})
	require.Error(t, err)
}
