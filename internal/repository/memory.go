package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"habittracker/internal/model"
)

type entryKey struct {
	habitID int
	day     string
}

// MemoryStore is a process-local store with the same contract as the
// Postgres repositories, including the one-entry-per-habit-per-day
// constraint. It backs the "memory" store driver and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[int]model.User
	habits  map[int]model.Habit
	entries map[entryKey]model.Entry
	nextID  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   map[int]model.User{},
		habits:  map[int]model.Habit{},
		entries: map[entryKey]model.Entry{},
	}
}

func keyOf(habitID int, day time.Time) entryKey {
	return entryKey{habitID: habitID, day: day.Format("2006-01-02")}
}

func (s *MemoryStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.ErrEmailTaken
		}
	}
	u.ID = s.id()
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (s *MemoryStore) CreateHabit(_ context.Context, h *model.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h.ID = s.id()
	stored := *h
	stored.Entries = nil
	s.habits[h.ID] = stored
	return nil
}

func (s *MemoryStore) GetHabit(_ context.Context, id int) (*model.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.habits[id]
	if !ok {
		return nil, model.ErrHabitNotFound
	}
	h.Entries = s.entriesOf(id)
	return &h, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID int) ([]model.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var habits []model.Habit
	for _, h := range s.habits {
		if h.UserID == userID {
			h.Entries = s.entriesOf(h.ID)
			habits = append(habits, h)
		}
	}
	sort.Slice(habits, func(i, j int) bool {
		if !habits[i].CreatedAt.Equal(habits[j].CreatedAt) {
			return habits[i].CreatedAt.After(habits[j].CreatedAt)
		}
		return habits[i].ID > habits[j].ID
	})
	return habits, nil
}

func (s *MemoryStore) UpdateHabit(_ context.Context, h *model.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.habits[h.ID]
	if !ok {
		return model.ErrHabitNotFound
	}
	stored.Name = h.Name
	stored.Description = h.Description
	s.habits[h.ID] = stored
	return nil
}

func (s *MemoryStore) UpdateCurrentStreak(_ context.Context, habitID, streak int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.habits[habitID]
	if !ok {
		return model.ErrHabitNotFound
	}
	stored.CurrentStreak = streak
	s.habits[habitID] = stored
	return nil
}

func (s *MemoryStore) DeleteHabit(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.habits, id)
	for k := range s.entries {
		if k.habitID == id {
			delete(s.entries, k)
		}
	}
	return nil
}

func (s *MemoryStore) GetEntry(_ context.Context, habitID int, day time.Time) (*model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[keyOf(habitID, day)]
	if !ok {
		return nil, model.ErrEntryNotFound
	}
	return &e, nil
}

func (s *MemoryStore) AddEntry(_ context.Context, e *model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.habits[e.HabitID]; !ok {
		return model.ErrHabitNotFound
	}
	k := keyOf(e.HabitID, e.Day)
	if _, ok := s.entries[k]; ok {
		return model.ErrEntryExists
	}
	e.ID = s.id()
	s.entries[k] = *e
	return nil
}

func (s *MemoryStore) GetEntriesInRange(_ context.Context, habitID int, start, end time.Time) ([]model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Entry
	for _, e := range s.entriesOf(habitID) {
		if !e.Day.Before(start) && !e.Day.After(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

// entriesOf returns the habit's entries ordered by day. Callers hold mu.
func (s *MemoryStore) entriesOf(habitID int) []model.Entry {
	var out []model.Entry
	for k, e := range s.entries {
		if k.habitID == habitID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}
