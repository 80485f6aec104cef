package synth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"manifold/internal/persistence/databases"
	"manifold/internal/rag/embedder"
)

type fakeStore struct {
	databases.VectorStore
	results  []databases.VectorResult
	lastQuery databases.TemporalQuery
}

func (f *fakeStore) Search(ctx context.Context, q databases.TemporalQuery) ([]databases.VectorResult, error) {
	f.lastQuery = q
	return f.results, nil
}

type fakeOracle struct {
	called bool
	answer string
	err    error
}

func (f *fakeOracle) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.called = true
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestQuery_ZeroHitsAbstainsWithoutCallingOracle(t *testing.T) {
	store := &fakeStore{}
	oracle := &fakeOracle{answer: "should not be used"}
	s := New(embedder.NewDeterministic(8, true, 0), store, oracle)

	ans, err := s.Query(context.Background(), "pergunta qualquer", Options{})
	require.NoError(t, err)
	require.Equal(t, AbstentionAnswer, ans.Answer)
	require.Equal(t, int64(0), ans.LLMMS)
	require.False(t, oracle.called)
}

func TestQuery_HitsBuildGroundedPromptAndCallOracle(t *testing.T) {
	store := &fakeStore{results: []databases.VectorResult{
		{RegulationID: "lei-8666-art5", Version: "2023-01-01", Score: 0.9, Metadata: map[string]string{"label": "Art. 5º", "text": "texto do artigo 5"}},
	}}
	oracle := &fakeOracle{answer: "Baseado nas normas fornecidas, a resposta é X."}
	s := New(embedder.NewDeterministic(8, true, 0), store, oracle)

	asOf := time.Now()
	ans, err := s.Query(context.Background(), "O que diz o artigo 5?", Options{TopK: 3, AsOf: &asOf})
	require.NoError(t, err)
	require.True(t, oracle.called)
	require.Equal(t, oracle.answer, ans.Answer)
	require.Len(t, ans.Sources, 1)
	require.Equal(t, "lei-8666-art5", ans.Sources[0].RegulationID)
}

func TestQuery_NoDateRunsPlainSearchWithoutTemporalFilter(t *testing.T) {
	store := &fakeStore{results: []databases.VectorResult{
		{RegulationID: "lei-8666-art5", Version: "2023-01-01", Score: 0.9, Metadata: map[string]string{"label": "Art. 5º", "text": "texto do artigo 5"}},
	}}
	oracle := &fakeOracle{answer: "ok"}
	s := New(embedder.NewDeterministic(8, true, 0), store, oracle)

	_, err := s.Query(context.Background(), "pergunta qualquer", Options{})
	require.NoError(t, err)
	require.Nil(t, store.lastQuery.AsOf)
}

func TestQuery_LLMFailureReturnsCannedAnswerWithSources(t *testing.T) {
	store := &fakeStore{results: []databases.VectorResult{
		{RegulationID: "lei-8666-art5", Version: "2023-01-01", Score: 0.9, Metadata: map[string]string{"label": "Art. 5º", "text": "texto do artigo 5"}},
	}}
	oracle := &fakeOracle{err: errors.New("upstream timeout")}
	s := New(embedder.NewDeterministic(8, true, 0), store, oracle)

	ans, err := s.Query(context.Background(), "O que diz o artigo 5?", Options{})
	require.NoError(t, err)
	require.Equal(t, LLMFailureAnswer, ans.Answer)
	require.Len(t, ans.Sources, 1)
}
