// Package version manages regulation supersession: when a new version of a
// regulation is ingested, the previous version's chunks must be marked
// superseded rather than deleted, so queries "as of" a past date still see
// them. Grounded on the original system's VersionManager
// (database/versioning.py), generalized to Go's explicit-error-return idiom
// and serialized per regulation so concurrent ingests of the same
// regulation never race each other's supersession write.
package version

import (
	"context"
	"fmt"
	"sync"
	"time"

	"manifold/internal/persistence/databases"
)

// Manager serializes supersession per regulation ID so two
// concurrent ingests of the same regulation can't both believe they're the
// newest version. Per spec.md §5, the loser of the race re-reads after the
// winner commits and either no-ops (new version already applied) or aborts.
type Manager struct {
	store databases.VectorStore

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
}

func New(store databases.VectorStore) *Manager {
	return &Manager{store: store, locks: make(map[string]*sync.Mutex)}
}

func (m *Manager) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Apply upserts newPoints for regulationID's newVersion, and — if
// previousVersion is non-empty — first marks every point of
// previousVersion superseded, with its expiry_date set to the new version's
// effective date and superseded_by recorded. The whole operation is
// serialized per regulationID.
func (m *Manager) Apply(ctx context.Context, regulationID, previousVersion, newVersion string, newEffectiveDate time.Time, newPoints []databases.Point) error {
	lock := m.lockFor(regulationID)
	lock.Lock()
	defer lock.Unlock()

	if previousVersion != "" && previousVersion != newVersion {
		if err := m.store.MarkSuperseded(ctx, regulationID, previousVersion, newEffectiveDate, newVersion); err != nil {
			return fmt.Errorf("mark %s v%s superseded: %w", regulationID, previousVersion, err)
		}
		setSupersedes(newPoints, previousVersion)
	}
	if err := m.store.Upsert(ctx, newPoints); err != nil {
		return fmt.Errorf("upsert %s v%s: %w", regulationID, newVersion, err)
	}
	return nil
}

// setSupersedes stamps every new point with the version it replaces, mirroring
// the forward/backward reference pair the store keeps via SupersededBy on
// the old version's points (grounded on justin4957-regula's PropSupersedes/
// PropSupersededBy triple pair).
func setSupersedes(points []databases.Point, previousVersion string) {
	for i := range points {
		points[i].Supersedes = previousVersion
	}
}

// Resolve re-reads the store's current active version for regulationID
// under the per-regulation lock, then applies supersession against
// whatever it finds. A concurrent loser that re-enters here after the
// winner already committed newVersion simply sees previousVersion ==
// newVersion and skips the now-redundant supersede, making the retry a
// clean no-op rather than a double-supersede.
func (m *Manager) Resolve(ctx context.Context, regulationID, newVersion string, newEffectiveDate time.Time, newPoints []databases.Point) error {
	lock := m.lockFor(regulationID)
	lock.Lock()
	defer lock.Unlock()

	active, found, err := m.store.ActiveVersion(ctx, regulationID)
	if err != nil {
		return fmt.Errorf("lookup active version of %s: %w", regulationID, err)
	}
	if found && active == newVersion {
		return nil
	}
	if found {
		if err := m.store.MarkSuperseded(ctx, regulationID, active, newEffectiveDate, newVersion); err != nil {
			return fmt.Errorf("mark %s v%s superseded: %w", regulationID, active, err)
		}
		setSupersedes(newPoints, active)
	}
	if err := m.store.Upsert(ctx, newPoints); err != nil {
		return fmt.Errorf("upsert %s v%s: %w", regulationID, newVersion, err)
	}
	return nil
}
