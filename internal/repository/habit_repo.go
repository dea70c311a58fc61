package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habittracker/internal/model"
	"habittracker/pkg/metrics"
	"habittracker/pkg/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const entryDayConstraint = "uq_habit_entries_habit_day"

type HabitRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewHabitRepository(db *pgxpool.Pool, logger *zap.Logger) *HabitRepository {
	return &HabitRepository{
		db:     db,
		logger: logger,
	}
}

func observe(operation, table string, start time.Time) {
	metrics.RecordDBQueryDuration(operation, table, time.Since(start))
}

func (r *HabitRepository) CreateHabit(ctx context.Context, h *model.Habit) error {
	defer observe("insert", "habits", time.Now())

	query := `
        INSERT INTO habits (user_id, name, description, created_at, current_streak)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	err := r.db.QueryRow(ctx, query,
		h.UserID,
		h.Name,
		h.Description,
		h.CreatedAt,
		h.CurrentStreak,
	).Scan(&h.ID)
	if err != nil {
		r.logger.Error("Failed to insert habit",
			zap.Int("user_id", h.UserID),
			zap.String("kind", util.ClassifyError(err)),
			zap.Error(err),
		)
		return fmt.Errorf("insert habit: %w", err)
	}

	r.logger.Info("Habit inserted successfully",
		zap.Int("id", h.ID),
		zap.Int("user_id", h.UserID),
	)
	return nil
}

// GetHabit returns the habit with all of its entries.
func (r *HabitRepository) GetHabit(ctx context.Context, id int) (*model.Habit, error) {
	defer observe("select", "habits", time.Now())

	query := `
        SELECT id, user_id, name, description, created_at, current_streak
        FROM habits
        WHERE id = $1
    `
	var h model.Habit
	err := r.db.QueryRow(ctx, query, id).Scan(
		&h.ID,
		&h.UserID,
		&h.Name,
		&h.Description,
		&h.CreatedAt,
		&h.CurrentStreak,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrHabitNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get habit", zap.Int("habit_id", id), zap.Error(err))
		return nil, fmt.Errorf("get habit %d: %w", id, err)
	}

	entries, err := r.entriesFor(ctx, []int{id})
	if err != nil {
		return nil, err
	}
	h.Entries = entries[id]
	return &h, nil
}

// ListByUser returns the user's habits, newest first, with entries loaded.
func (r *HabitRepository) ListByUser(ctx context.Context, userID int) ([]model.Habit, error) {
	defer observe("select", "habits", time.Now())

	query := `
        SELECT id, user_id, name, description, created_at, current_streak
        FROM habits
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list habits", zap.Int("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []model.Habit
	var ids []int
	for rows.Next() {
		var h model.Habit
		if err := rows.Scan(
			&h.ID,
			&h.UserID,
			&h.Name,
			&h.Description,
			&h.CreatedAt,
			&h.CurrentStreak,
		); err != nil {
			r.logger.Error("Failed to scan habit", zap.Error(err))
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, h)
		ids = append(ids, h.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	if len(ids) == 0 {
		return habits, nil
	}

	entries, err := r.entriesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range habits {
		habits[i].Entries = entries[habits[i].ID]
	}

	r.logger.Debug("Listed habits",
		zap.Int("user_id", userID),
		zap.Int("count", len(habits)),
	)
	return habits, nil
}

func (r *HabitRepository) entriesFor(ctx context.Context, habitIDs []int) (map[int][]model.Entry, error) {
	query := `
        SELECT id, habit_id, day, done
        FROM habit_entries
        WHERE habit_id = ANY($1)
        ORDER BY habit_id, day
    `
	rows, err := r.db.Query(ctx, query, habitIDs)
	if err != nil {
		r.logger.Error("Failed to load entries", zap.Ints("habit_ids", habitIDs), zap.Error(err))
		return nil, fmt.Errorf("load entries: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	byHabit := make(map[int][]model.Entry, len(habitIDs))
	for _, e := range entries {
		byHabit[e.HabitID] = append(byHabit[e.HabitID], e)
	}
	return byHabit, nil
}

func scanEntries(rows pgx.Rows) ([]model.Entry, error) {
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.HabitID, &e.Day, &e.Done); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateHabit persists name and description. Owner, creation time and
// the streak are not touched; the streak has its own write.
func (r *HabitRepository) UpdateHabit(ctx context.Context, h *model.Habit) error {
	defer observe("update", "habits", time.Now())

	query := `
        UPDATE habits
        SET name = $1, description = $2
        WHERE id = $3
    `
	tag, err := r.db.Exec(ctx, query, h.Name, h.Description, h.ID)
	if err != nil {
		r.logger.Error("Failed to update habit", zap.Int("habit_id", h.ID), zap.Error(err))
		return fmt.Errorf("update habit %d: %w", h.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrHabitNotFound
	}
	return nil
}

func (r *HabitRepository) UpdateCurrentStreak(ctx context.Context, habitID, streak int) error {
	defer observe("update", "habits", time.Now())

	tag, err := r.db.Exec(ctx, `UPDATE habits SET current_streak = $1 WHERE id = $2`, streak, habitID)
	if err != nil {
		r.logger.Error("Failed to update streak", zap.Int("habit_id", habitID), zap.Error(err))
		return fmt.Errorf("update streak of habit %d: %w", habitID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrHabitNotFound
	}
	return nil
}

// DeleteHabit removes the habit; entries go with it through ON DELETE CASCADE.
// Deleting a missing habit is not an error.
func (r *HabitRepository) DeleteHabit(ctx context.Context, id int) error {
	defer observe("delete", "habits", time.Now())

	if _, err := r.db.Exec(ctx, `DELETE FROM habits WHERE id = $1`, id); err != nil {
		r.logger.Error("Failed to delete habit", zap.Int("habit_id", id), zap.Error(err))
		return fmt.Errorf("delete habit %d: %w", id, err)
	}
	r.logger.Info("Habit deleted", zap.Int("habit_id", id))
	return nil
}

func (r *HabitRepository) GetEntry(ctx context.Context, habitID int, day time.Time) (*model.Entry, error) {
	defer observe("select", "habit_entries", time.Now())

	query := `
        SELECT id, habit_id, day, done
        FROM habit_entries
        WHERE habit_id = $1 AND day = $2
    `
	var e model.Entry
	err := r.db.QueryRow(ctx, query, habitID, day).Scan(&e.ID, &e.HabitID, &e.Day, &e.Done)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &e, nil
}

// AddEntry inserts e and returns model.ErrEntryExists when the habit already
// has an entry for that day.
func (r *HabitRepository) AddEntry(ctx context.Context, e *model.Entry) error {
	defer observe("insert", "habit_entries", time.Now())

	query := `
        INSERT INTO habit_entries (habit_id, day, done)
        VALUES ($1, $2, $3)
        RETURNING id
    `
	err := entryInsertError(r.db.QueryRow(ctx, query, e.HabitID, e.Day, e.Done).Scan(&e.ID))
	if errors.Is(err, model.ErrEntryExists) || errors.Is(err, model.ErrHabitNotFound) {
		return err
	}
	if err != nil {
		r.logger.Error("Failed to insert entry",
			zap.Int("habit_id", e.HabitID),
			zap.Time("day", e.Day),
			zap.Error(err),
		)
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// entryInsertError maps constraint violations of an entry insert onto the
// store's sentinel errors and passes anything else through.
func entryInsertError(err error) error {
	switch {
	case util.IsUniqueViolation(err, entryDayConstraint):
		return model.ErrEntryExists
	case util.IsForeignKeyViolation(err):
		return model.ErrHabitNotFound
	}
	return err
}

func (r *HabitRepository) GetEntriesInRange(ctx context.Context, habitID int, start, end time.Time) ([]model.Entry, error) {
	defer observe("select", "habit_entries", time.Now())

	query := `
        SELECT id, habit_id, day, done
        FROM habit_entries
        WHERE habit_id = $1 AND day BETWEEN $2 AND $3
        ORDER BY day
    `
	rows, err := r.db.Query(ctx, query, habitID, start, end)
	if err != nil {
		r.logger.Error("Failed to load entries in range",
			zap.Int("habit_id", habitID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("load entries in range: %w", err)
	}
	return scanEntries(rows)
}
