package profile

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/hoststyle/internal/storage"
)

// --- RemoteStore ---

func newProfileServer(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	stored := make(map[string][]byte)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/host-style/{id}", func(w http.ResponseWriter, r *http.Request) {
		data, ok := stored[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"error":{"message":"not found","type":"not_found"}}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	mux.HandleFunc("PUT /api/host-style/{id}", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		stored[r.PathValue("id")] = data
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, stored
}

func TestRemoteStore_RoundTrip(t *testing.T) {
	srv, stored := newProfileServer(t)
	s := NewRemoteStore(srv.URL+"/", time.Second)
	p := sampleProfile("host_a", newTestClock())

	if err := s.Write(ctx, "host_a", p); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, ok := stored["host_a"]; !ok {
		t.Fatal("server did not receive the profile")
	}

	got, err := s.Fetch(ctx, "host_a")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("remote round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoteStore_NotFound(t *testing.T) {
	srv, _ := newProfileServer(t)
	s := NewRemoteStore(srv.URL, time.Second)

	_, err := s.Fetch(ctx, "host_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch error = %v, want ErrNotFound", err)
	}
}

func TestRemoteStore_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	s := NewRemoteStoreWithClient(srv.URL, srv.Client())

	if _, err := s.Fetch(ctx, "host_a"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch error = %v, want transport error", err)
	}
	if err := s.Write(ctx, "host_a", New("host_a", time.Now())); err == nil {
		t.Error("Write: expected error for 500")
	}
}

func TestRemoteStore_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"totalMeetings": "many"`))
	}))
	defer srv.Close()
	s := NewRemoteStore(srv.URL, time.Second)

	if _, err := s.Fetch(ctx, "host_a"); err == nil {
		t.Error("expected decode error")
	}
}

func TestRemoteStore_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewRemoteStore(url, 200*time.Millisecond)
	if _, err := s.Fetch(ctx, "host_a"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch error = %v, want connection error", err)
	}
}

func TestRemoteStore_EscapesHostID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	NewRemoteStore(srv.URL, time.Second).Fetch(ctx, "a/b c")
	if gotPath != "/api/host-style/a%2Fb%20c" {
		t.Errorf("path = %q", gotPath)
	}
}

// --- FileStore ---

func TestFileStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	s := NewFileStore(dir)
	p := sampleProfile("host_a", newTestClock())

	if _, err := s.Fetch(ctx, "host_a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch before write = %v, want ErrNotFound", err)
	}
	if err := s.Write(ctx, "host_a", p); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Fetch(ctx, "host_a")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("file round trip mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != safeName("host_a")+".json" {
		t.Errorf("expected a single profile file, got %v", entries)
	}
}

func TestFileStore_Overwrite(t *testing.T) {
	s := NewFileStore(t.TempDir())
	p := New("host_a", time.Now())
	for i := 1; i <= 3; i++ {
		p.TotalMeetings = i
		if err := s.Write(ctx, "host_a", p); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	got, err := s.Fetch(ctx, "host_a")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.TotalMeetings != 3 {
		t.Errorf("TotalMeetings = %d, want 3", got.TotalMeetings)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	if err := os.WriteFile(s.path("host_a"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Fetch(ctx, "host_a"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch error = %v, want decode error", err)
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"host_default":  "h_686f73745f64656661756c74",
		"../etc/passwd": "h_2e2e2f6574632f706173737764",
		"":              "h_",
	}
	for in, want := range tests {
		if got := safeName(in); got != want {
			t.Errorf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileStore_DistinctIDsNeverShareAFile(t *testing.T) {
	s := NewFileStore(t.TempDir())
	clock := newTestClock()

	ids := []string{"team/a", "team_a", "team a", "Team_A", "team\\a"}
	for i, id := range ids {
		p := sampleProfile(id, clock)
		p.TotalMeetings = i + 1
		if err := s.Write(ctx, id, p); err != nil {
			t.Fatalf("Write(%q): %v", id, err)
		}
	}

	for i, id := range ids {
		got, err := s.Fetch(ctx, id)
		if err != nil {
			t.Fatalf("Fetch(%q): %v", id, err)
		}
		if got.Metadata.HostID != id || got.TotalMeetings != i+1 {
			t.Errorf("Fetch(%q) = host %q total %d, want host %q total %d",
				id, got.Metadata.HostID, got.TotalMeetings, id, i+1)
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(ids) {
		t.Errorf("store holds %d files, want %d", len(entries), len(ids))
	}
}

// --- SQLiteStore ---

func openTestDB(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db)
	clock := newTestClock()
	p := sampleProfile("host_a", clock)
	now := clock.Now()
	p.LastUpdated = &now

	if _, err := s.Fetch(ctx, "host_a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch before write = %v, want ErrNotFound", err)
	}
	if err := s.Write(ctx, "host_a", p); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Fetch(ctx, "host_a")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("sqlite round trip mismatch (-want +got):\n%s", diff)
	}

	rec, err := db.GetHostProfile(ctx, "host_a")
	if err != nil {
		t.Fatalf("GetHostProfile: %v", err)
	}
	if rec.TotalMeetings != 3 || rec.Version != Version {
		t.Errorf("denormalized columns = %d/%q, want 3/%q", rec.TotalMeetings, rec.Version, Version)
	}
	if !rec.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, now)
	}
}

func TestSQLiteStore_CorruptDocument(t *testing.T) {
	db := openTestDB(t)
	if err := db.PutHostProfile(ctx, storage.HostProfile{HostID: "host_a", Data: "{", UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("PutHostProfile: %v", err)
	}
	if _, err := NewSQLiteStore(db).Fetch(ctx, "host_a"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch error = %v, want decode error", err)
	}
}

// --- CachedStore ---

func TestCachedStore_ReadThrough(t *testing.T) {
	inner := newMockStore()
	inner.data["host_a"] = sampleProfile("host_a", newTestClock())
	s := NewCachedStore(inner, time.Minute)

	first, err := s.Fetch(ctx, "host_a")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	inner.fetchErr = errors.New("inner should not be consulted")
	second, err := s.Fetch(ctx, "host_a")
	if err != nil {
		t.Fatalf("cached Fetch: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached value mismatch:\n%s", diff)
	}

	second.Styles[Structured] = 50
	third, _ := s.Fetch(ctx, "host_a")
	if third.Styles[Structured] != 0 {
		t.Error("cached value shares state with a caller")
	}
}

func TestCachedStore_NotFoundNotCached(t *testing.T) {
	inner := newMockStore()
	s := NewCachedStore(inner, time.Minute)

	if _, err := s.Fetch(ctx, "host_a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch = %v, want ErrNotFound", err)
	}
	inner.data["host_a"] = New("host_a", time.Now())
	if _, err := s.Fetch(ctx, "host_a"); err != nil {
		t.Errorf("Fetch after inner write: %v", err)
	}
}

func TestCachedStore_WriteRefreshes(t *testing.T) {
	inner := newMockStore()
	s := NewCachedStore(inner, time.Minute)

	p := New("host_a", time.Now())
	p.TotalMeetings = 1
	if err := s.Write(ctx, "host_a", p); err != nil {
		t.Fatalf("Write: %v", err)
	}
	inner.fetchErr = errors.New("unreachable")
	got, err := s.Fetch(ctx, "host_a")
	if err != nil || got.TotalMeetings != 1 {
		t.Errorf("Fetch = %+v, %v; want cached write", got.TotalMeetings, err)
	}
}

func TestCachedStore_FailedWriteEvicts(t *testing.T) {
	inner := newMockStore()
	inner.data["host_a"] = New("host_a", time.Now())
	s := NewCachedStore(inner, time.Minute)
	if _, err := s.Fetch(ctx, "host_a"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	inner.writeErr = errors.New("disk full")
	p := New("host_a", time.Now())
	p.TotalMeetings = 5
	if err := s.Write(ctx, "host_a", p); err == nil {
		t.Fatal("expected write error")
	}

	inner.fetchErr = errors.New("unreachable")
	if _, err := s.Fetch(ctx, "host_a"); err == nil {
		t.Error("expected cache miss after failed write")
	}
}

func TestProfileJSONFieldNames(t *testing.T) {
	p := sampleProfile("host_a", newTestClock())
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"version", "createdAt", "lastUpdated", "totalMeetings", "styles", "patterns", "recentMeetings", "currentPrompt", "metadata"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing JSON field %q", key)
		}
	}
	if string(raw["lastUpdated"]) != "null" {
		t.Errorf("lastUpdated = %s, want null before first save", raw["lastUpdated"])
	}
}
