package model

import "time"

type User struct {
	ID           int
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}
