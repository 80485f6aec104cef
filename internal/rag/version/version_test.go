package version

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"manifold/internal/persistence/databases"
)

type fakeStore struct {
	databases.VectorStore
	mu          sync.Mutex
	superseded  []string
	upserted    []databases.Point
}

func (f *fakeStore) MarkSuperseded(ctx context.Context, regulationID, version string, expiry time.Time, by string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.superseded = append(f.superseded, regulationID+"|"+version+"|"+by)
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, points []databases.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, points...)
	return nil
}

func TestApply_SupersedesPreviousVersion(t *testing.T) {
	store := &fakeStore{}
	m := New(store)
	err := m.Apply(context.Background(), "lei-12345-art1", "v1", "v2", time.Now(), []databases.Point{{ID: "lei-12345-art1-v2"}})
	require.NoError(t, err)
	require.Len(t, store.superseded, 1)
	require.Contains(t, store.superseded[0], "lei-12345-art1|v1|v2")
	require.Len(t, store.upserted, 1)
	require.Equal(t, "v1", store.upserted[0].Supersedes)
}

func TestApply_FirstVersionSkipsSupersede(t *testing.T) {
	store := &fakeStore{}
	m := New(store)
	err := m.Apply(context.Background(), "lei-12345-art1", "", "v1", time.Now(), []databases.Point{{ID: "lei-12345-art1-v1"}})
	require.NoError(t, err)
	require.Empty(t, store.superseded)
	require.Len(t, store.upserted, 1)
	require.Empty(t, store.upserted[0].Supersedes)
}

func TestApply_SameRegulationSerializes(t *testing.T) {
	store := &fakeStore{}
	m := New(store)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Apply(context.Background(), "lei-1-art1", "v1", "v2", time.Now(), []databases.Point{{ID: "x"}})
		}()
	}
	wg.Wait()
	require.Len(t, store.superseded, 20)
}
