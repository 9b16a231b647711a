package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/hoststyle/internal/storage"
)

// RecordStore defines the storage operations SQLiteStore needs.
// Implemented by storage.Store.
type RecordStore interface {
	GetHostProfile(ctx context.Context, hostID string) (storage.HostProfile, error)
	PutHostProfile(ctx context.Context, rec storage.HostProfile) error
}

// SQLiteStore is the server-side primary tier: profiles are kept as JSON
// documents in the host_profiles table.
type SQLiteStore struct {
	records RecordStore
}

// NewSQLiteStore creates a Store backed by records.
func NewSQLiteStore(records RecordStore) *SQLiteStore {
	return &SQLiteStore{records: records}
}

func (s *SQLiteStore) Fetch(ctx context.Context, hostID string) (Profile, error) {
	rec, err := s.records.GetHostProfile(ctx, hostID)
	if errors.Is(err, storage.ErrNotFound) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("loading host profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal([]byte(rec.Data), &p); err != nil {
		return Profile{}, fmt.Errorf("decoding host profile %q: %w", hostID, err)
	}
	return p, nil
}

func (s *SQLiteStore) Write(ctx context.Context, hostID string, p Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding host profile: %w", err)
	}

	updated := time.Now().UTC()
	if p.LastUpdated != nil {
		updated = *p.LastUpdated
	}
	rec := storage.HostProfile{
		HostID:        hostID,
		Version:       p.Version,
		TotalMeetings: p.TotalMeetings,
		Data:          string(data),
		UpdatedAt:     updated,
	}
	if err := s.records.PutHostProfile(ctx, rec); err != nil {
		return fmt.Errorf("saving host profile: %w", err)
	}
	return nil
}
