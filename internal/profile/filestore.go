package profile

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON document per host under a local directory.
// It is the fallback tier: always reachable while the disk is.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// lazily on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(hostID string) string {
	return filepath.Join(s.dir, safeName(hostID)+".json")
}

// Fetch reads the stored profile, returning ErrNotFound when no file exists.
func (s *FileStore) Fetch(_ context.Context, hostID string) (Profile, error) {
	data, err := os.ReadFile(s.path(hostID))
	if errors.Is(err, os.ErrNotExist) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile file: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile file %s: %w", s.path(hostID), err)
	}
	return p, nil
}

// Write replaces the stored profile atomically.
func (s *FileStore) Write(_ context.Context, hostID string, p Profile) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating profile dir: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".profile-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(hostID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing profile file: %w", err)
	}
	return nil
}

// safeName maps a host id onto a file name that cannot escape the store
// dir. The hex encoding is injective and case-insensitive safe, so two
// distinct ids never share a file.
func safeName(hostID string) string {
	return "h_" + hex.EncodeToString([]byte(hostID))
}
