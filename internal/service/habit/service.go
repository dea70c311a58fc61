package habit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	contractsmq "habittracker/contracts/mq"
	"habittracker/internal/model"
	"habittracker/internal/streak"
	"habittracker/pkg/cache"
	"habittracker/pkg/logger"
	"habittracker/pkg/metrics"
	"habittracker/pkg/rbac"

	"go.uber.org/zap"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MaxProgressDays      = 366
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

type Store interface {
	streak.Store
	CreateHabit(ctx context.Context, h *model.Habit) error
	ListByUser(ctx context.Context, userID int) ([]model.Habit, error)
	UpdateHabit(ctx context.Context, h *model.Habit) error
	DeleteHabit(ctx context.Context, id int) error
	GetEntry(ctx context.Context, habitID int, day time.Time) (*model.Entry, error)
	AddEntry(ctx context.Context, e *model.Entry) error
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type ProgressCache interface {
	Version(ctx context.Context, habitID int) (int64, bool)
	Get(ctx context.Context, habitID int, field string) ([]byte, bool)
	Set(ctx context.Context, habitID int, field string, data []byte)
	Invalidate(ctx context.Context, habitID int)
}

type Service struct {
	store        Store
	engine       *streak.Engine
	events       Publisher
	cache        ProgressCache
	progressDays int
	logger       *zap.Logger
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithProgressCache(c ProgressCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithProgressDays sets the window used when a progress request names none.
func WithProgressDays(days int) Option {
	return func(s *Service) {
		if days >= 1 && days <= MaxProgressDays {
			s.progressDays = days
		}
	}
}

func NewService(store Store, engine *streak.Engine, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		engine:       engine,
		progressDays: streak.DefaultWindow,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackResult is the outcome of marking today done.
type TrackResult struct {
	Habit *model.Habit
	Day   time.Time
	// Created is false when today was already tracked.
	Created bool
}

func validate(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return "", "", &ValidationError{Field: "name", Message: "is required"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", "", &ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", "", &ValidationError{Field: "description", Message: fmt.Sprintf("must be at most %d characters", MaxDescriptionLength)}
	}
	return name, description, nil
}

// authorize loads the habit and checks that userID holds permission on it.
func (s *Service) authorize(ctx context.Context, userID, habitID int, permission string) (*model.Habit, error) {
	h, err := s.store.GetHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if err := rbac.CheckPermission(userID, h.UserID, permission); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) publish(ctx context.Context, routingKey string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, routingKey, payload); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}

func (s *Service) invalidate(ctx context.Context, habitID int) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, habitID)
	}
}

func (s *Service) Create(ctx context.Context, userID int, name, description string) (*model.Habit, error) {
	name, description, err := validate(name, description)
	if err != nil {
		return nil, err
	}

	h := &model.Habit{
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateHabit(ctx, h); err != nil {
		return nil, err
	}

	s.publish(ctx, contractsmq.RoutingHabitCreated, contractsmq.HabitCreatedPayload{
		HabitID:   h.ID,
		UserID:    h.UserID,
		Name:      h.Name,
		CreatedAt: h.CreatedAt,
	})
	return h, nil
}

func (s *Service) Get(ctx context.Context, userID, habitID int) (*model.Habit, error) {
	return s.authorize(ctx, userID, habitID, rbac.PermissionReadHabit)
}

// Update changes name and description. Owner, creation time and streak
// are kept.
func (s *Service) Update(ctx context.Context, userID, habitID int, name, description string) (*model.Habit, error) {
	name, description, err := validate(name, description)
	if err != nil {
		return nil, err
	}
	h, err := s.authorize(ctx, userID, habitID, rbac.PermissionWriteHabit)
	if err != nil {
		return nil, err
	}

	h.Name = name
	h.Description = description
	if err := s.store.UpdateHabit(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) Delete(ctx context.Context, userID, habitID int) error {
	if _, err := s.authorize(ctx, userID, habitID, rbac.PermissionDeleteHabit); err != nil {
		return err
	}
	if err := s.store.DeleteHabit(ctx, habitID); err != nil {
		return err
	}

	s.invalidate(ctx, habitID)
	s.publish(ctx, contractsmq.RoutingHabitDeleted, contractsmq.HabitDeletedPayload{
		HabitID: habitID,
		UserID:  userID,
	})
	return nil
}

// Track marks today done for the habit and refreshes its streak. Tracking
// an already tracked day is not an error, including when a concurrent
// request inserted it first.
func (s *Service) Track(ctx context.Context, userID, habitID int) (*TrackResult, error) {
	if _, err := s.authorize(ctx, userID, habitID, rbac.PermissionTrackHabit); err != nil {
		return nil, err
	}
	log := logger.WithTrace(ctx, s.logger)
	today := s.engine.Today()

	created := false
	_, err := s.store.GetEntry(ctx, habitID, today)
	switch {
	case err == nil:
		metrics.IncrementHabitTracked("existing")
	case errors.Is(err, model.ErrEntryNotFound):
		err = s.store.AddEntry(ctx, &model.Entry{HabitID: habitID, Day: today, Done: true})
		switch {
		case err == nil:
			created = true
			metrics.IncrementHabitTracked("created")
		case errors.Is(err, model.ErrEntryExists):
			metrics.IncrementHabitTracked("raced")
			log.Info("Entry inserted concurrently", zap.Int("habit_id", habitID))
		default:
			return nil, fmt.Errorf("add entry: %w", err)
		}
	default:
		return nil, fmt.Errorf("get entry: %w", err)
	}

	h, err := s.store.GetHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.UpdateStreak(ctx, h); err != nil {
		return nil, err
	}
	s.invalidate(ctx, habitID)

	day := today.Format(streak.DayLayout)
	log.Info("Habit tracked",
		zap.Int("habit_id", habitID),
		zap.String("day", day),
		zap.Bool("created", created),
		zap.Int("current_streak", h.CurrentStreak),
	)
	s.publish(ctx, contractsmq.RoutingHabitTracked, contractsmq.HabitTrackedPayload{
		HabitID:       habitID,
		UserID:        userID,
		Day:           day,
		CurrentStreak: h.CurrentStreak,
		Created:       created,
	})
	return &TrackResult{Habit: h, Day: today, Created: created}, nil
}

// List returns the user's habits with every streak brought up to date.
func (s *Service) List(ctx context.Context, userID int) ([]model.Habit, error) {
	habits, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range habits {
		if err := s.engine.UpdateStreak(ctx, &habits[i]); err != nil {
			return nil, err
		}
	}
	return habits, nil
}

func (s *Service) Streak(ctx context.Context, userID, habitID int) (int, error) {
	if _, err := s.authorize(ctx, userID, habitID, rbac.PermissionReadHabit); err != nil {
		return 0, err
	}
	return s.engine.ComputeCurrentStreak(ctx, habitID)
}

// Progress returns the done/not-done series for the last days days. Zero
// selects the configured default window.
func (s *Service) Progress(ctx context.Context, userID, habitID, days int) (streak.Progress, error) {
	if days == 0 {
		days = s.progressDays
	}
	if days < 1 || days > MaxProgressDays {
		return nil, &ValidationError{Field: "days", Message: fmt.Sprintf("must be between 1 and %d", MaxProgressDays)}
	}
	if _, err := s.authorize(ctx, userID, habitID, rbac.PermissionReadHabit); err != nil {
		return nil, err
	}

	// The version is read before the entries. An invalidation in between
	// moves readers to a newer version than the one this series is stored
	// under.
	var (
		version   int64
		cacheable bool
	)
	day := s.engine.Today().Format(streak.DayLayout)
	if s.cache != nil {
		version, cacheable = s.cache.Version(ctx, habitID)
	}
	field := cache.Field(day, days, version)
	if cacheable {
		if data, ok := s.cache.Get(ctx, habitID, field); ok {
			var p streak.Progress
			if err := json.Unmarshal(data, &p); err == nil && len(p) == days {
				return p, nil
			}
		}
	}

	p, err := s.engine.GetProgress(ctx, habitID, days)
	if err != nil {
		return nil, err
	}
	// a series computed after midnight belongs to the next day's field
	if cacheable && p[len(p)-1].Day == day {
		if data, err := json.Marshal(p); err == nil {
			s.cache.Set(ctx, habitID, field, data)
		}
	}
	return p, nil
}
