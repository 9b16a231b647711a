package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// HostProfile is one persisted profile document. Version and TotalMeetings
// are denormalized from Data so hosts can be listed without decoding.
type HostProfile struct {
	HostID        string
	Version       string
	TotalMeetings int
	Data          string // profile JSON
	UpdatedAt     time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
