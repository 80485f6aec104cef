package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"manifold/internal/persistence/databases"
	"manifold/internal/rag/embedder"
	"manifold/internal/rag/synth"
)

type fakeStore struct {
	databases.VectorStore
	results []databases.VectorResult
}

func (f *fakeStore) Search(ctx context.Context, q databases.TemporalQuery) ([]databases.VectorResult, error) {
	return f.results, nil
}
func (f *fakeStore) Stats(ctx context.Context) (databases.Stats, error) {
	return databases.Stats{PointCount: 42, ActiveCount: 40}, nil
}

type fakeOracle struct{}

func (fakeOracle) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "resposta gerada", nil
}

func newTestServer(store *fakeStore) *Server {
	s := synth.New(embedder.NewDeterministic(8, true, 0), store, fakeOracle{})
	return NewServer(s, store, "secret", 1000, 5, 0, []string{"http://localhost:3000"})
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSearch_RequiresAPIKey(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	body, _ := json.Marshal(searchRequest{Query: "o que diz a lei?"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearch_ZeroHitsAbstains(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	body, _ := json.Marshal(searchRequest{Query: "pergunta sem contexto"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, synth.AbstentionAnswer, resp.Answer)
	require.Empty(t, resp.Sources)
}

func TestSearch_WithHitsReturnsAnswerAndSources(t *testing.T) {
	store := &fakeStore{results: []databases.VectorResult{
		{RegulationID: "lei-8666-art5", Version: "2023-01-01", Score: 0.8, Metadata: map[string]string{"label": "Art. 5º", "text": "texto"}},
	}}
	srv := newTestServer(store)
	body, _ := json.Marshal(searchRequest{Query: "o que diz o artigo 5?", Limit: 3})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "resposta gerada", resp.Answer)
	require.Len(t, resp.Sources, 1)
}

func TestSearch_RejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	body, _ := json.Marshal(searchRequest{Query: ""})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_RejectsMalformedDate(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	body, _ := json.Marshal(searchRequest{Query: "x", Date: "not-a-date"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_RejectsOutOfRangeLimit(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	body, _ := json.Marshal(searchRequest{Query: "x", Limit: 51})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.Equal(t, "validation_error", errResp.ErrorKind)
}

func TestSearch_RejectsOutOfRangeScoreThreshold(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	bad := 1.5
	body, _ := json.Marshal(searchRequest{Query: "x", ScoreThreshold: &bad})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_MissingAPIKeyReturnsStructuredBody(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	body, _ := json.Marshal(searchRequest{Query: "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body2 map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body2))
	require.Equal(t, "auth_error", body2["error_kind"])
}

func TestCORS_AllowedOriginGetsHeaders(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader([]byte(`{"query":"x"}`)))
	req.Header.Set("X-API-Key", "secret")
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_DisallowedOriginGetsNoHeaders(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader([]byte(`{"query":"x"}`)))
	req.Header.Set("X-API-Key", "secret")
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStats_ReturnsCollectionStats(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats databases.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, uint64(42), stats.PointCount)
}

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	store := &fakeStore{}
	s := synth.New(embedder.NewDeterministic(8, true, 0), store, fakeOracle{})
	srv := NewServer(s, store, "secret", 1, 5, 0, nil) // 1 rpm => burst of 1
	body, _ := json.Marshal(searchRequest{Query: "x"})

	req1 := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	req1.Header.Set("X-API-Key", "secret")
	rec1 := httptest.NewRecorder()
	srv.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusOK, rec1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	req2.Header.Set("X-API-Key", "secret")
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusTooManyRequests, rec2.Code)

	_ = time.Second // keep time imported for readability of rate math above
}
