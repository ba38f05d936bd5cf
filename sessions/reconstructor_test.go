package sessions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cloudboard/api/models"
	"cloudboard/api/store"
)

type memDomains map[string]*models.Domain

func (m memDomains) GetDomainByName(_ context.Context, name string) (*models.Domain, error) {
	d, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("domain '%s': %w", name, store.ErrNotFound)
	}
	return d, nil
}

type memEvents struct {
	events []models.RawEvent
	calls  atomic.Int32
}

func (m *memEvents) QueryEvents(_ context.Context, domain string, start, end time.Time) ([]models.RawEvent, error) {
	m.calls.Add(1)
	var out []models.RawEvent
	for _, e := range m.events {
		if e.Domain == domain && !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

// memSessions mirrors the Postgres constraints: a session may not overlap
// another with the same domain and session id, and a batch is all-or-nothing.
type memSessions struct {
	mu      sync.Mutex
	rows    []models.Session
	nextID  int64
	inserts int
}

func overlaps(s models.Session, start, end time.Time) bool {
	return !s.Start.After(end) && !s.End.Before(start)
}

func (m *memSessions) QuerySessions(_ context.Context, domainID int64, start, end time.Time) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Session
	for _, s := range m.rows {
		if s.DomainID == domainID && overlaps(s, start, end) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b models.Session) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out, nil
}

func (m *memSessions) InsertSessions(_ context.Context, batch []models.Session) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := slices.Clone(m.rows)
	for _, s := range batch {
		for _, existing := range staged {
			if existing.DomainID == s.DomainID && existing.SessionID == s.SessionID && overlaps(existing, s.Start, s.End) {
				return nil, fmt.Errorf("failed to insert session %s: %w", s.SessionID, store.ErrDuplicate)
			}
		}
		m.nextID++
		s.ID = m.nextID
		staged = append(staged, s)
	}

	m.rows = staged
	m.inserts++
	return staged[len(staged)-len(batch):], nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func ownerID(id int64) *int64 { return &id }

func scenarioEvents() []models.RawEvent {
	return []models.RawEvent{
		event("e1", "s1", "/", 0),
		event("e2", "s1", "/pricing", 2*time.Minute),
		event("e3", "s1", "/contact", 5*time.Minute),
		event("e4", "s2", "/blog", 10*time.Minute),
		event("e5", "s2", "/blog/post", 11*time.Minute),
	}
}

func newTestReconstructor(events *memEvents, repo SessionRepository) *Reconstructor {
	domains := memDomains{
		"example.com": {ID: 1, Domain: "example.com", IsActive: true, OwnerID: ownerID(42)},
		"quiet.io":    {ID: 2, Domain: "quiet.io", IsActive: true, OwnerID: ownerID(42)},
	}
	builder := NewBuilder(stubParser{desktopChrome}, nil)
	return NewReconstructor(domains, events, repo, builder, zap.NewNop())
}

func TestReconstruct_BuildsAndPersists(t *testing.T) {
	events := &memEvents{events: scenarioEvents()}
	repo := &memSessions{}
	r := newTestReconstructor(events, repo)

	got, err := r.Reconstruct(context.Background(), "example.com", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)

	s1, s2 := got[0], got[1]
	assert.Equal(t, "s1", s1.SessionID)
	assert.Equal(t, 300.0, s1.Duration)
	assert.Equal(t, 3, s1.EventCount)
	assert.Equal(t, "/", s1.EntryPath)
	assert.Equal(t, "/contact", s1.ExitPath)
	assert.Equal(t, int64(1), s1.DomainID)
	assert.Equal(t, int64(42), s1.UserID)
	assert.NotZero(t, s1.ID)

	assert.Equal(t, "s2", s2.SessionID)
	assert.Equal(t, 60.0, s2.Duration)
	assert.Equal(t, 2, s2.EventCount)
	assert.Equal(t, "/blog", s2.EntryPath)
	assert.Equal(t, "/blog/post", s2.ExitPath)

	assert.Equal(t, 2, repo.count())
}

func TestReconstruct_IsIdempotent(t *testing.T) {
	events := &memEvents{events: scenarioEvents()}
	repo := &memSessions{}
	r := newTestReconstructor(events, repo)
	ctx := context.Background()

	first, err := r.Reconstruct(ctx, "example.com", base, base.Add(time.Hour))
	require.NoError(t, err)

	second, err := r.Reconstruct(ctx, "example.com", base, base.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.inserts)
	assert.Equal(t, int32(1), events.calls.Load())
	assert.Equal(t, 2, repo.count())
}

func TestReconstruct_SubRangeReturnsExisting(t *testing.T) {
	events := &memEvents{events: scenarioEvents()}
	repo := &memSessions{}
	r := newTestReconstructor(events, repo)
	ctx := context.Background()

	_, err := r.Reconstruct(ctx, "example.com", base, base.Add(time.Hour))
	require.NoError(t, err)

	got, err := r.Reconstruct(ctx, "example.com", base.Add(time.Minute), base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, 2, repo.count())
	assert.Equal(t, 1, repo.inserts)
}

func TestReconstruct_InclusiveBoundaries(t *testing.T) {
	events := &memEvents{events: scenarioEvents()}
	repo := &memSessions{}
	r := newTestReconstructor(events, repo)

	// end equals the last s1 event and the first s2 event is excluded.
	got, err := r.Reconstruct(context.Background(), "example.com", base, base.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].EventCount)
}

func TestReconstruct_ConcurrentRequestsMaterializeOnce(t *testing.T) {
	events := &memEvents{events: scenarioEvents()}
	repo := &memSessions{}
	r := newTestReconstructor(events, repo)

	const workers = 16
	var wg sync.WaitGroup
	results := make([][]models.Session, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Reconstruct(context.Background(), "example.com", base, base.Add(time.Hour))
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 2)
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, 2, repo.count())
	assert.Equal(t, 1, repo.inserts)
}

func TestReconstruct_NoEvents(t *testing.T) {
	events := &memEvents{events: scenarioEvents()}
	repo := &memSessions{}
	r := newTestReconstructor(events, repo)

	_, err := r.Reconstruct(context.Background(), "quiet.io", base, base.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoEvents)
	assert.Zero(t, repo.count())
}

func TestReconstruct_OnlyEventsWithoutSessionID(t *testing.T) {
	events := &memEvents{events: []models.RawEvent{event("e1", "", "/", 0)}}
	repo := &memSessions{}
	r := newTestReconstructor(events, repo)

	_, err := r.Reconstruct(context.Background(), "example.com", base, base.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoEvents)
	assert.Zero(t, repo.inserts)
}

func TestReconstruct_UnknownDomain(t *testing.T) {
	r := newTestReconstructor(&memEvents{}, &memSessions{})

	_, err := r.Reconstruct(context.Background(), "nope.dev", base, base.Add(time.Hour))
	assert.ErrorIs(t, err, ErrDomainNotFound)
}

func TestReconstruct_InvalidRange(t *testing.T) {
	events := &memEvents{}
	r := newTestReconstructor(events, &memSessions{})

	_, err := r.Reconstruct(context.Background(), "example.com", base.Add(time.Hour), base)
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Zero(t, events.calls.Load())
}

// racingRepo always loses the insert and has nothing to show afterwards.
type racingRepo struct{ memSessions }

func (r *racingRepo) InsertSessions(context.Context, []models.Session) ([]models.Session, error) {
	return nil, fmt.Errorf("exclusion violation: %w", store.ErrDuplicate)
}

func TestReconstruct_ConflictWithoutVisibleRows(t *testing.T) {
	events := &memEvents{events: scenarioEvents()}
	r := newTestReconstructor(events, &racingRepo{})

	_, err := r.Reconstruct(context.Background(), "example.com", base, base.Add(time.Hour))
	assert.ErrorIs(t, err, ErrConflict)
}

// lateRepo hides its rows from the first check, as if a concurrent request
// committed between the check and the insert.
type lateRepo struct {
	memSessions
	checks atomic.Int32
}

func (r *lateRepo) QuerySessions(ctx context.Context, domainID int64, start, end time.Time) ([]models.Session, error) {
	if r.checks.Add(1) == 1 {
		return nil, nil
	}
	return r.memSessions.QuerySessions(ctx, domainID, start, end)
}

func TestReconstruct_LoserReturnsWinnersSessions(t *testing.T) {
	events := &memEvents{events: scenarioEvents()}
	repo := &lateRepo{}
	r := newTestReconstructor(events, repo)

	domain := &models.Domain{ID: 1, Domain: "example.com", IsActive: true, OwnerID: ownerID(42)}
	built, err := r.BuildSessions(domain, scenarioEvents())
	require.NoError(t, err)
	winner, err := repo.memSessions.InsertSessions(context.Background(), built)
	require.NoError(t, err)

	got, err := r.Reconstruct(context.Background(), "example.com", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, winner, got)
	assert.Equal(t, int32(2), repo.checks.Load())
	assert.Equal(t, int32(1), events.calls.Load())
	assert.Equal(t, 2, repo.count())
	assert.Equal(t, 1, repo.inserts)
}

type failingRepo struct{ memSessions }

func (r *failingRepo) InsertSessions(context.Context, []models.Session) ([]models.Session, error) {
	return nil, errors.New("connection reset")
}

func TestReconstruct_PersistFailure(t *testing.T) {
	events := &memEvents{events: scenarioEvents()}
	r := newTestReconstructor(events, &failingRepo{})

	_, err := r.Reconstruct(context.Background(), "example.com", base, base.Add(time.Hour))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestMaterialized_DoesNotBuild(t *testing.T) {
	events := &memEvents{events: scenarioEvents()}
	repo := &memSessions{}
	r := newTestReconstructor(events, repo)

	got, err := r.Materialized(context.Background(), "example.com", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, events.calls.Load())
	assert.Zero(t, repo.inserts)
}

func TestBuildSessions_OrderedByStartThenID(t *testing.T) {
	r := newTestReconstructor(&memEvents{}, &memSessions{})
	domain := &models.Domain{ID: 9, Domain: "example.com", OwnerID: ownerID(5)}

	got, err := r.BuildSessions(domain, []models.RawEvent{
		event("e1", "b", "/", time.Minute),
		event("e2", "a", "/", time.Minute),
		event("e3", "c", "/", 0),
	})
	require.NoError(t, err)

	ids := []string{got[0].SessionID, got[1].SessionID, got[2].SessionID}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	for _, s := range got {
		assert.Equal(t, int64(9), s.DomainID)
		assert.Equal(t, int64(5), s.UserID)
	}
}

func TestBuildSessions_CompleteAndOrderIndependent(t *testing.T) {
	r := newTestReconstructor(&memEvents{}, &memSessions{})
	domain := &models.Domain{ID: 1, Domain: "example.com"}

	events := scenarioEvents()
	shuffled := []models.RawEvent{events[4], events[2], events[0], events[3], events[1]}

	got, err := r.BuildSessions(domain, shuffled)
	require.NoError(t, err)
	require.Len(t, got, 2)

	total := 0
	for _, s := range got {
		total += s.EventCount
		assert.GreaterOrEqual(t, s.Duration, 0.0)
	}
	assert.Equal(t, len(events), total)
	assert.Equal(t, "/", got[0].EntryPath)
	assert.Equal(t, "/contact", got[0].ExitPath)
	assert.Equal(t, "/blog", got[1].EntryPath)
	assert.Equal(t, "/blog/post", got[1].ExitPath)
}
