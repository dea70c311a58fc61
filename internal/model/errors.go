package model

import "errors"

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrEntryNotFound = errors.New("entry not found")
	ErrEntryExists   = errors.New("entry already exists for this day")
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already exists")
)
