package profile

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kalambet/hoststyle/internal/metrics"
)

// Manager composes a primary and a fallback Store behind a policy of
// "try primary, else fallback, else default". Neither Load nor Save ever
// fails; a failing primary only degrades the manager to the fallback tier.
type Manager struct {
	primary  Store
	fallback Store
	clock    Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewManager creates a Manager over the two tiers. logger and m may be nil.
func NewManager(primary, fallback Store, logger *zap.Logger, m *metrics.Metrics) *Manager {
	return NewManagerWithClock(primary, fallback, logger, m, realClock{})
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(primary, fallback Store, logger *zap.Logger, m *metrics.Metrics, clock Clock) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		primary:  primary,
		fallback: fallback,
		clock:    clock,
		logger:   logger,
		metrics:  m,
	}
}

// Load returns the stored profile for hostID, reading the primary tier
// first and the fallback tier second. When neither holds a value it returns
// a new default profile.
func (m *Manager) Load(ctx context.Context, hostID string) Profile {
	p, err := m.primary.Fetch(ctx, hostID)
	if err == nil {
		p.Normalize()
		return p
	}
	if errors.Is(err, ErrNotFound) {
		m.logger.Debug("profile missing in primary store", zap.String("host_id", hostID))
		m.metrics.Fallback("load", "primary_missing")
	} else {
		m.logger.Warn("primary profile store unavailable, using fallback",
			zap.String("host_id", hostID), zap.Error(err))
		m.metrics.Fallback("load", "primary_error")
	}

	if m.fallback != nil {
		p, err = m.fallback.Fetch(ctx, hostID)
		if err == nil {
			m.logger.Info("profile loaded from fallback store", zap.String("host_id", hostID))
			p.Normalize()
			return p
		}
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("fallback profile store unavailable",
				zap.String("host_id", hostID), zap.Error(err))
			m.metrics.Fallback("load", "fallback_error")
		}
	}

	m.logger.Info("creating default profile", zap.String("host_id", hostID))
	m.metrics.DefaultProfile()
	return New(hostID, m.clock.Now())
}

// Save bumps the iteration counter, stamps lastUpdated, and writes p to the
// primary tier. Regardless of the primary outcome the value is mirrored to
// the fallback tier.
func (m *Manager) Save(ctx context.Context, hostID string, p *Profile) {
	now := m.clock.Now()
	p.Metadata.IterationCount++
	p.LastUpdated = &now
	if p.Metadata.HostID == "" {
		p.Metadata.HostID = hostID
	}

	snapshot := p.Clone()

	if err := m.primary.Write(ctx, hostID, snapshot); err != nil {
		m.logger.Warn("primary profile store write failed, keeping local copy only",
			zap.String("host_id", hostID),
			zap.Int("iteration", p.Metadata.IterationCount),
			zap.Error(err))
		m.metrics.Fallback("save", "primary_error")
	} else {
		m.logger.Debug("profile saved",
			zap.String("host_id", hostID),
			zap.Int("iteration", p.Metadata.IterationCount))
	}

	if m.fallback == nil {
		return
	}
	if err := m.fallback.Write(ctx, hostID, snapshot); err != nil {
		m.logger.Error("fallback profile store write failed",
			zap.String("host_id", hostID), zap.Error(err))
		m.metrics.Fallback("save", "fallback_error")
	}
}
