package habit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	contractsmq "habittracker/contracts/mq"
	"habittracker/internal/model"
	"habittracker/internal/repository"
	"habittracker/internal/streak"
	"habittracker/pkg/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var today = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

type event struct {
	key     string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{key: key, payload: payload})
	return p.err
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var keys []string
	for _, e := range p.events {
		keys = append(keys, e.key)
	}
	return keys
}

type mapCache struct {
	mu          sync.Mutex
	data        map[int]map[string][]byte
	versions    map[int]int64
	invalidated []int
}

func newMapCache() *mapCache {
	return &mapCache{data: map[int]map[string][]byte{}, versions: map[int]int64{}}
}

func (c *mapCache) Version(_ context.Context, habitID int) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[habitID], true
}

func (c *mapCache) Get(_ context.Context, habitID int, field string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[habitID][field]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, habitID int, field string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data[habitID] == nil {
		c.data[habitID] = map[string][]byte{}
	}
	c.data[habitID][field] = data
}

func (c *mapCache) Invalidate(_ context.Context, habitID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[habitID]++
	delete(c.data, habitID)
	c.invalidated = append(c.invalidated, habitID)
}

type fixture struct {
	svc    *Service
	store  *repository.MemoryStore
	events *recordingPublisher
	cache  *mapCache
	clock  *time.Time
}

func newFixture() *fixture {
	now := today.Add(10 * time.Hour)
	f := &fixture{
		store:  repository.NewMemoryStore(),
		events: &recordingPublisher{},
		cache:  newMapCache(),
		clock:  &now,
	}
	engine := streak.NewEngine(f.store, zap.NewNop(), streak.WithClock(func() time.Time { return *f.clock }))
	f.svc = NewService(f.store, engine, zap.NewNop(),
		WithPublisher(f.events),
		WithProgressCache(f.cache),
	)
	return f
}

func (f *fixture) advance(days int) {
	*f.clock = f.clock.AddDate(0, 0, days)
}

func (f *fixture) seed(t *testing.T, habitID int, offsets ...int) {
	t.Helper()
	for _, o := range offsets {
		require.NoError(t, f.store.AddEntry(context.Background(), &model.Entry{
			HabitID: habitID,
			Day:     today.AddDate(0, 0, o),
			Done:    true,
		}))
	}
}

func TestCreate(t *testing.T) {
	f := newFixture()

	h, err := f.svc.Create(context.Background(), 1, "  Read  ", "20 pages")

	require.NoError(t, err)
	assert.NotZero(t, h.ID)
	assert.Equal(t, "Read", h.Name)
	assert.Equal(t, 1, h.UserID)
	assert.Equal(t, 0, h.CurrentStreak)
	assert.Equal(t, []string{contractsmq.RoutingHabitCreated}, f.events.keys())
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name, habit, description, field string
	}{
		{"empty name", "  ", "", "name"},
		{"long name", strings.Repeat("x", MaxNameLength+1), "", "name"},
		{"long description", "Read", strings.Repeat("x", MaxDescriptionLength+1), "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), 1, tt.habit, tt.description)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestGet_Ownership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, 2, h.ID)
	var denied *rbac.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)

	_, err = f.svc.Get(ctx, 1, 999)
	assert.ErrorIs(t, err, model.ErrHabitNotFound)
}

func TestUpdate_KeepsOwnerAndCreatedAt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, 1, h.ID, "Read more", "30 pages")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, 1, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "Read more", got.Name)
	assert.Equal(t, "30 pages", got.Description)
	assert.Equal(t, 1, got.UserID)
	assert.Equal(t, h.CreatedAt, got.CreatedAt)
	assert.Equal(t, updated.Name, got.Name)

	_, err = f.svc.Update(ctx, 2, h.ID, "Mine", "")
	var denied *rbac.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)

	var denied *rbac.PermissionDeniedError
	assert.ErrorAs(t, f.svc.Delete(ctx, 2, h.ID), &denied)

	require.NoError(t, f.svc.Delete(ctx, 1, h.ID))
	_, err = f.svc.Get(ctx, 1, h.ID)
	assert.ErrorIs(t, err, model.ErrHabitNotFound)
	assert.Contains(t, f.cache.invalidated, h.ID)
	assert.Equal(t, contractsmq.RoutingHabitDeleted, f.events.keys()[1])
}

func TestTrack_ScenarioStreak(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)
	f.seed(t, h.ID, -1, -3)

	res, err := f.svc.Track(ctx, 1, h.ID)

	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, today, res.Day)
	assert.Equal(t, 2, res.Habit.CurrentStreak)

	stored, err := f.store.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentStreak)
	assert.Contains(t, f.cache.invalidated, h.ID)

	keys := f.events.keys()
	require.Len(t, keys, 2)
	assert.Equal(t, contractsmq.RoutingHabitTracked, keys[1])
	payload := f.events.events[1].payload.(contractsmq.HabitTrackedPayload)
	assert.Equal(t, "2024-06-10", payload.Day)
	assert.Equal(t, 2, payload.CurrentStreak)
}

func TestTrack_TwiceSameDay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)

	first, err := f.svc.Track(ctx, 1, h.ID)
	require.NoError(t, err)
	second, err := f.svc.Track(ctx, 1, h.ID)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, 1, second.Habit.CurrentStreak)

	got, err := f.store.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
}

func TestTrack_Concurrent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Track(ctx, 1, h.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	got, err := f.store.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
}

func TestTrack_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)
	f.events.err = errors.New("broker down")

	_, err = f.svc.Track(ctx, 1, h.ID)

	assert.NoError(t, err)
}

func TestTrack_Ownership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)

	_, err = f.svc.Track(ctx, 2, h.ID)

	var denied *rbac.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
	_, err = f.store.GetEntry(ctx, h.ID, today)
	assert.ErrorIs(t, err, model.ErrEntryNotFound)
}

func TestList_RefreshesStreaks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)
	_, err = f.svc.Track(ctx, 1, h.ID)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, 2, "Other", "")
	require.NoError(t, err)

	// two days later the streak has lapsed
	f.advance(2)
	habits, err := f.svc.List(ctx, 1)

	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, 0, habits[0].CurrentStreak)
	stored, err := f.store.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentStreak)
}

func TestStreak(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)
	f.seed(t, h.ID, 0, -1, -3)

	got, err := f.svc.Streak(ctx, 1, h.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestProgress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)
	f.seed(t, h.ID, 0, -1, -3)

	p, err := f.svc.Progress(ctx, 1, h.ID, 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-06", "2024-06-07", "2024-06-08", "2024-06-09", "2024-06-10"}, p.Keys())
	assert.Equal(t, map[string]int{
		"2024-06-06": 0,
		"2024-06-07": 1,
		"2024-06-08": 0,
		"2024-06-09": 1,
		"2024-06-10": 1,
	}, p.Map())
}

func TestProgress_DefaultWindowAndBounds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)

	p, err := f.svc.Progress(ctx, 1, h.ID, 0)
	require.NoError(t, err)
	assert.Len(t, p, streak.DefaultWindow)

	for _, days := range []int{-1, MaxProgressDays + 1} {
		_, err := f.svc.Progress(ctx, 1, h.ID, days)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	}
}

func TestProgress_CachedUntilTracked(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)

	before, err := f.svc.Progress(ctx, 1, h.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, before[2].Value)
	require.Len(t, f.cache.data[h.ID], 1)

	// seeding bypasses the service, so the cached copy is served
	f.seed(t, h.ID, 0)
	cached, err := f.svc.Progress(ctx, 1, h.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, before, cached)

	f.seed(t, h.ID, -1)
	_, err = f.svc.Track(ctx, 1, h.ID)
	require.NoError(t, err)

	after, err := f.svc.Progress(ctx, 1, h.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1}, []int{after[0].Value, after[1].Value, after[2].Value})
}

// hookStore runs afterRange once, right after the first entry range read,
// and afterList once, right after the first habit list read.
type hookStore struct {
	*repository.MemoryStore
	rangeOnce  sync.Once
	listOnce   sync.Once
	afterRange func()
	afterList  func()
}

func (s *hookStore) GetEntriesInRange(ctx context.Context, habitID int, start, end time.Time) ([]model.Entry, error) {
	entries, err := s.MemoryStore.GetEntriesInRange(ctx, habitID, start, end)
	if s.afterRange != nil {
		s.rangeOnce.Do(s.afterRange)
	}
	return entries, err
}

func (s *hookStore) ListByUser(ctx context.Context, userID int) ([]model.Habit, error) {
	habits, err := s.MemoryStore.ListByUser(ctx, userID)
	if s.afterList != nil {
		s.listOnce.Do(s.afterList)
	}
	return habits, err
}

func newHookedService(store *hookStore, c *mapCache) *Service {
	clock := func() time.Time { return today.Add(10 * time.Hour) }
	engine := streak.NewEngine(store, zap.NewNop(), streak.WithClock(clock))
	return NewService(store, engine, zap.NewNop(), WithProgressCache(c))
}

func TestProgress_TrackDuringComputationIsNotCachedStale(t *testing.T) {
	ctx := context.Background()
	store := &hookStore{MemoryStore: repository.NewMemoryStore()}
	c := newMapCache()
	svc := newHookedService(store, c)
	h, err := svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)
	store.afterRange = func() {
		_, err := svc.Track(ctx, 1, h.ID)
		require.NoError(t, err)
	}

	// computed from entries read before today was tracked
	first, err := svc.Progress(ctx, 1, h.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, first[2].Value)

	second, err := svc.Progress(ctx, 1, h.ID, 3)

	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"2024-06-08": 0,
		"2024-06-09": 0,
		"2024-06-10": 1,
	}, second.Map())
}

func TestList_DoesNotRevertConcurrentRename(t *testing.T) {
	ctx := context.Background()
	store := &hookStore{MemoryStore: repository.NewMemoryStore()}
	svc := newHookedService(store, newMapCache())
	h, err := svc.Create(ctx, 1, "Old", "")
	require.NoError(t, err)
	store.afterList = func() {
		_, err := svc.Update(ctx, 1, h.ID, "New", "renamed")
		require.NoError(t, err)
	}

	habits, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, habits, 1)

	got, err := svc.Get(ctx, 1, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, "renamed", got.Description)
}

func TestUpdate_DoesNotRevertConcurrentStreak(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.svc.Create(ctx, 1, "Read", "")
	require.NoError(t, err)
	// a streak written after the rename loaded the habit
	stale, err := f.store.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateCurrentStreak(ctx, h.ID, 5))

	stale.Name = "Renamed"
	require.NoError(t, f.store.UpdateHabit(ctx, stale))

	got, err := f.store.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, 5, got.CurrentStreak)
}
