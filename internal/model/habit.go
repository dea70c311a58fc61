package model

import "time"

type Habit struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	CurrentStreak int       `json:"current_streak"`
	Entries       []Entry   `json:"-"`
}
