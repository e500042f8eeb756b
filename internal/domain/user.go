package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
}
