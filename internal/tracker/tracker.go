// Package tracker runs the per-meeting profiling cycle for a host:
// load, analyze, update, compose, save.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kalambet/hoststyle/internal/analysis"
	"github.com/kalambet/hoststyle/internal/composer"
	"github.com/kalambet/hoststyle/internal/metrics"
	"github.com/kalambet/hoststyle/internal/profile"
	"github.com/kalambet/hoststyle/internal/style"
)

// ErrEmptyHostID is returned when a cycle is requested without an identity.
var ErrEmptyHostID = errors.New("host id is required")

// Tracker owns the tracking cycle. At most one cycle runs per host identity
// at a time; cycles for different hosts proceed independently.
type Tracker struct {
	manager  *profile.Manager
	composer *composer.Composer
	clock    profile.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*hostLock
}

type hostLock struct {
	sem  *semaphore.Weighted
	refs int
}

// New creates a Tracker over manager. logger, m and clock may be nil.
func New(manager *profile.Manager, logger *zap.Logger, m *metrics.Metrics, clock profile.Clock) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = profile.SystemClock()
	}
	return &Tracker{
		manager:  manager,
		composer: composer.New(clock),
		clock:    clock,
		logger:   logger,
		metrics:  m,
		locks:    make(map[string]*hostLock),
	}
}

// Track applies one completed session to the host's profile and returns the
// refreshed report. The only errors are a missing host id and a context
// that ends while waiting for another cycle on the same host; once the
// cycle starts it runs to completion regardless of ctx.
func (t *Tracker) Track(ctx context.Context, hostID string, s analysis.Session) (*profile.Report, error) {
	if hostID == "" {
		return nil, ErrEmptyHostID
	}

	release, err := t.acquire(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("waiting for host %s: %w", hostID, err)
	}
	defer release()

	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	p := t.manager.Load(ctx, hostID)

	a, stats := analysis.AnalyzeWithStats(s)
	if stats.Skipped > 0 {
		t.logger.Debug("skipped malformed session entries",
			zap.String("host_id", hostID), zap.Int("skipped", stats.Skipped))
		t.metrics.Skipped(stats.Skipped)
	}

	fired := style.Apply(&p, a, t.clock.Now())
	report := t.composer.Compose(&p)
	t.manager.Save(ctx, hostID, &p)

	names := make([]string, len(fired))
	for i, st := range fired {
		names[i] = string(st)
	}
	t.metrics.Tracked(names, time.Since(start).Seconds())
	t.logger.Info("meeting tracked",
		zap.String("host_id", hostID),
		zap.Int("meeting", p.TotalMeetings),
		zap.Strings("styles", names),
		zap.String("dominant", string(report.DominantStyle)))

	return report, nil
}

// CurrentReport returns the last composed report for hostID, or nil when
// none has been produced yet.
func (t *Tracker) CurrentReport(ctx context.Context, hostID string) *profile.Report {
	return t.Profile(ctx, hostID).CurrentPrompt
}

// Profile returns the host's profile as the store currently holds it.
func (t *Tracker) Profile(ctx context.Context, hostID string) profile.Profile {
	return t.manager.Load(ctx, hostID)
}

func (t *Tracker) acquire(ctx context.Context, hostID string) (func(), error) {
	t.mu.Lock()
	l, ok := t.locks[hostID]
	if !ok {
		l = &hostLock{sem: semaphore.NewWeighted(1)}
		t.locks[hostID] = l
	}
	l.refs++
	t.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		t.unref(hostID, l)
		return nil, err
	}
	return func() {
		l.sem.Release(1)
		t.unref(hostID, l)
	}, nil
}

func (t *Tracker) unref(hostID string, l *hostLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, hostID)
	}
}
