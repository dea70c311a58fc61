package mq

import "time"

// Routing keys published on the habits.events exchange.
const (
	RoutingHabitCreated = "habit.created"
	RoutingHabitTracked = "habit.tracked"
	RoutingHabitDeleted = "habit.deleted"
)

type HabitCreatedPayload struct {
	HabitID   int       `json:"habit_id"`
	UserID    int       `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type HabitTrackedPayload struct {
	HabitID       int    `json:"habit_id"`
	UserID        int    `json:"user_id"`
	Day           string `json:"day"` // YYYY-MM-DD
	CurrentStreak int    `json:"current_streak"`
	// Created is false when the day was already tracked
	Created bool `json:"created"`
}

type HabitDeletedPayload struct {
	HabitID int `json:"habit_id"`
	UserID  int `json:"user_id"`
}
