package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habittracker/internal/model"
	"habittracker/pkg/logger"
	"habittracker/pkg/metrics"

	"go.uber.org/zap"
)

// Store is the slice of habit persistence the engine reads from and writes to.
type Store interface {
	// GetHabit returns the habit with its entries loaded, or
	// model.ErrHabitNotFound.
	GetHabit(ctx context.Context, id int) (*model.Habit, error)
	// GetEntriesInRange returns the habit's entries with start <= day <= end,
	// ordered by day.
	GetEntriesInRange(ctx context.Context, habitID int, start, end time.Time) ([]model.Entry, error)
	// UpdateCurrentStreak stores the streak alone, leaving every other
	// column as it is, or returns model.ErrHabitNotFound.
	UpdateCurrentStreak(ctx context.Context, habitID, streak int) error
}

type Engine struct {
	store  Store
	now    func() time.Time
	loc    *time.Location
	logger *zap.Logger
}

type Option func(*Engine)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the location whose midnight starts a new day.
// The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func NewEngine(store Store, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    time.Now,
		loc:    time.UTC,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current calendar day in the engine's location.
func (e *Engine) Today() time.Time {
	return DateOf(e.now(), e.loc)
}

// ComputeCurrentStreak loads the habit and returns its current streak.
// A habit that does not exist has a streak of 0; that is not an error.
func (e *Engine) ComputeCurrentStreak(ctx context.Context, habitID int) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordStreakComputation("streak", time.Since(start)) }()

	h, err := e.store.GetHabit(ctx, habitID)
	if errors.Is(err, model.ErrHabitNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load habit %d: %w", habitID, err)
	}
	return Calculate(h.Entries, e.Today()), nil
}

// UpdateStreak recomputes the streak from h's loaded entries, stores it on
// h and persists it. A not-found error from the store is returned wrapped.
func (e *Engine) UpdateStreak(ctx context.Context, h *model.Habit) error {
	start := time.Now()
	defer func() { metrics.RecordStreakComputation("update", time.Since(start)) }()

	previous := h.CurrentStreak
	h.CurrentStreak = Calculate(h.Entries, e.Today())

	if err := e.store.UpdateCurrentStreak(ctx, h.ID, h.CurrentStreak); err != nil {
		return fmt.Errorf("persist streak for habit %d: %w", h.ID, err)
	}

	logger.WithTrace(ctx, e.logger).Debug("Streak updated",
		zap.Int("habit_id", h.ID),
		zap.Int("previous", previous),
		zap.Int("current", h.CurrentStreak),
	)
	return nil
}

// GetProgress returns the days-long progress series ending today. A days
// value below 1 falls back to DefaultWindow.
func (e *Engine) GetProgress(ctx context.Context, habitID int, days int) (Progress, error) {
	started := time.Now()
	defer func() { metrics.RecordStreakComputation("progress", time.Since(started)) }()

	if days < 1 {
		days = DefaultWindow
	}
	today := e.Today()
	start, end := Window(today, days)

	entries, err := e.store.GetEntriesInRange(ctx, habitID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load entries for habit %d: %w", habitID, err)
	}
	return Aggregate(entries, today, days), nil
}
