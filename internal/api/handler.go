package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kalambet/hoststyle/internal/analysis"
	"github.com/kalambet/hoststyle/internal/metrics"
	"github.com/kalambet/hoststyle/internal/profile"
	"github.com/kalambet/hoststyle/internal/storage"
	"github.com/kalambet/hoststyle/internal/tracker"
	"github.com/kalambet/hoststyle/internal/worker"
)

const maxRequestBodySize = 1 << 20  // 1MB
const maxSessionBodySize = 10 << 20 // 10MB

const healthTimeout = 2 * time.Second

// Deps holds what the profile API needs.
type Deps struct {
	Store    *storage.Store   // job queue and host listing
	Profiles profile.Store    // primary profile tier
	Tracker  *tracker.Tracker // runs synchronous tracking cycles
	Metrics  *metrics.Metrics // optional
	Logger   *zap.Logger      // optional
	Clock    profile.Clock    // optional
}

// HostSummary is one row of GET /api/hosts.
type HostSummary struct {
	HostID        string    `json:"host_id"`
	Version       string    `json:"version"`
	TotalMeetings int       `json:"total_meetings"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// JobStatus is the outcome of a queued tracking cycle. Report is the host's
// current report once the job has completed.
type JobStatus struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	HostID      string          `json:"host_id,omitempty"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Report      *profile.Report `json:"report,omitempty"`
}

// NewHandler returns the profile API router.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = profile.SystemClock()
	}

	r := chi.NewRouter()
	r.Use(requestLogger(deps.Logger, deps.Metrics))

	r.Get("/health", handleHealth(deps))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/api/host-style", handleGetDefaultProfile(deps))
	r.Post("/api/update-host-style", handleUpdateDefaultProfile(deps))
	r.Get("/api/hosts", handleListHosts(deps))
	r.Get("/api/jobs/{jobID}", handleGetJob(deps))

	r.Route("/api/host-style/{hostID}", func(r chi.Router) {
		r.Get("/", handleGetProfile(deps))
		r.Put("/", handlePutProfile(deps))
		r.Get("/report", handleGetReport(deps))
		r.Post("/meetings", handleTrackMeeting(deps))
	})

	return r
}

// handleHealth reports ok while the database answers a ping.
func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := deps.Store.Ping(ctx); err != nil {
				deps.Logger.Warn("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleGetDefaultProfile serves the single-host route. A missing profile is
// created and persisted so later reads see the same createdAt.
func handleGetDefaultProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Fetch(r.Context(), profile.DefaultHostID)
		if errors.Is(err, profile.ErrNotFound) {
			p = profile.New(profile.DefaultHostID, deps.Clock.Now())
			if err := deps.Profiles.Write(r.Context(), profile.DefaultHostID, p); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to create profile: %v", err)
				return
			}
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		p.Normalize()
		writeJSON(w, http.StatusOK, p)
	}
}

func handleUpdateDefaultProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeProfile(w, r, deps, profile.DefaultHostID)
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostID := chi.URLParam(r, "hostID")

		p, err := deps.Profiles.Fetch(r.Context(), hostID)
		if errors.Is(err, profile.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "profile not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handlePutProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeProfile(w, r, deps, chi.URLParam(r, "hostID"))
	}
}

// storeProfile overwrites hostID's profile with the request body. The
// body is stored as sent; iteration bookkeeping is the writer's job.
func storeProfile(w http.ResponseWriter, r *http.Request, deps Deps, hostID string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid profile: %v", err)
		return
	}
	if p.TotalMeetings < 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "totalMeetings must not be negative")
		return
	}
	p.Normalize()
	if p.Metadata.HostID == "" {
		p.Metadata.HostID = hostID
	}

	if err := deps.Profiles.Write(r.Context(), hostID, p); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to save profile: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func handleGetReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostID := chi.URLParam(r, "hostID")

		p, err := deps.Profiles.Fetch(r.Context(), hostID)
		if errors.Is(err, profile.ErrNotFound) || (err == nil && p.CurrentPrompt == nil) {
			httpError(w, http.StatusNotFound, "not_found", "no report for host %s", hostID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p.CurrentPrompt)
	}
}

func handleTrackMeeting(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostID := chi.URLParam(r, "hostID")

		r.Body = http.MaxBytesReader(w, r.Body, maxSessionBodySize)
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading body: %v", err)
			return
		}

		session, err := analysis.ParseSession(body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid session: %v", err)
			return
		}

		if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
			job, err := worker.NewTrackJob(hostID, body)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			if err := deps.Store.EnqueueJob(r.Context(), job); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{
				"id":     job.ID,
				"status": "queued",
			})
			return
		}

		report, err := deps.Tracker.Track(r.Context(), hostID, session)
		if errors.Is(err, tracker.ErrEmptyHostID) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "tracking meeting: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleListHosts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := deps.Store.ListHostProfiles(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list hosts: %v", err)
			return
		}

		hosts := make([]HostSummary, len(recs))
		for i, rec := range recs {
			hosts[i] = HostSummary{
				HostID:        rec.HostID,
				Version:       rec.Version,
				TotalMeetings: rec.TotalMeetings,
				UpdatedAt:     rec.UpdatedAt,
			}
		}
		writeJSON(w, http.StatusOK, hosts)
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get job: %v", err)
			return
		}

		status := JobStatus{
			ID:          job.ID,
			Type:        job.Type,
			Status:      job.Status,
			Attempts:    job.Attempts,
			MaxAttempts: job.MaxAttempts,
			LastError:   job.LastError,
			CreatedAt:   job.CreatedAt,
			UpdatedAt:   job.UpdatedAt,
		}
		var payload worker.TrackPayload
		if json.Unmarshal([]byte(job.PayloadJSON), &payload) == nil {
			status.HostID = payload.HostID
		}
		if job.Status == "completed" && status.HostID != "" {
			if p, err := deps.Profiles.Fetch(r.Context(), status.HostID); err == nil {
				status.Report = p.CurrentPrompt
			}
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// requestLogger records every request in the log at debug level and in
// the HTTP metrics, keyed by route pattern.
func requestLogger(logger *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			m.Request(r.Method, route, status, elapsed.Seconds())
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("elapsed", elapsed))
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
