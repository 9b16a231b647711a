// Package worker runs queued tracking cycles from the SQLite job table.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalambet/hoststyle/internal/analysis"
	"github.com/kalambet/hoststyle/internal/metrics"
	"github.com/kalambet/hoststyle/internal/profile"
	"github.com/kalambet/hoststyle/internal/storage"
)

// JobTrackMeeting is the job type for a queued tracking cycle.
const JobTrackMeeting = "track_meeting"

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// MeetingTracker runs one tracking cycle.
type MeetingTracker interface {
	Track(ctx context.Context, hostID string, s analysis.Session) (*profile.Report, error)
}

// TrackPayload is the JSON payload of a track_meeting job.
type TrackPayload struct {
	HostID  string          `json:"host_id"`
	Session json.RawMessage `json:"session"`
}

// NewTrackJob builds a track_meeting job for hostID. session is the raw
// session document; it is validated when the job runs.
func NewTrackJob(hostID string, session json.RawMessage) (storage.Job, error) {
	if hostID == "" {
		return storage.Job{}, errors.New("host id is required")
	}
	payload, err := json.Marshal(TrackPayload{HostID: hostID, Session: session})
	if err != nil {
		return storage.Job{}, fmt.Errorf("encoding payload: %w", err)
	}
	return storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTrackMeeting,
		PayloadJSON: string(payload),
	}, nil
}

// Worker processes track_meeting jobs one at a time.
type Worker struct {
	store   JobStore
	tracker MeetingTracker
	poll    time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func New(store JobStore, tracker MeetingTracker, pollInterval time.Duration, logger *zap.Logger, m *metrics.Metrics) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:   store,
		tracker: tracker,
		poll:    pollInterval,
		logger:  logger,
		metrics: m,
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("worker iteration failed", zap.Error(err))
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single track_meeting job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobTrackMeeting})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	// A claimed job is always settled, even during shutdown, so it never
	// stays in the running state.
	settle := context.WithoutCancel(ctx)

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", zap.String("job_id", job.ID), zap.Error(err))
		w.metrics.Job("failed")
		if failErr := w.store.FailJob(settle, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return true, nil
	}

	if err := w.store.CompleteJob(settle, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.metrics.Job("completed")
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload TrackPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.HostID == "" {
		return errors.New("payload has no host_id")
	}

	s, err := analysis.ParseSession(payload.Session)
	if err != nil {
		return err
	}

	report, err := w.tracker.Track(ctx, payload.HostID, s)
	if err != nil {
		return fmt.Errorf("tracking meeting for %s: %w", payload.HostID, err)
	}

	w.logger.Debug("job completed",
		zap.String("job_id", job.ID),
		zap.String("host_id", payload.HostID),
		zap.Int("meeting", report.MeetingCount))
	return nil
}
