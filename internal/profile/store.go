package profile

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store that holds no profile for an identity.
var ErrNotFound = errors.New("profile not found")

// Store is the persistence contract both tiers satisfy.
type Store interface {
	Fetch(ctx context.Context, hostID string) (Profile, error)
	Write(ctx context.Context, hostID string, p Profile) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock in UTC.
func SystemClock() Clock { return realClock{} }
