// Package scanner orchestrates exposure scans: admission, lifecycle,
// scoring, and live progress broadcast.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/sherlock-center/internal/domain"
	"github.com/jonesrussell/sherlock-center/internal/events"
	"github.com/jonesrussell/sherlock-center/internal/logger"
	"github.com/jonesrussell/sherlock-center/internal/probe"
	"github.com/jonesrussell/sherlock-center/internal/ratelimit"
)

// Admission errors.
var (
	// ErrRateLimited means the user exhausted their scan budget for the
	// current window.
	ErrRateLimited = errors.New("scan rate limit exceeded")
	// ErrBusy means the concurrency cap is reached and queuing is off.
	ErrBusy = errors.New("scanner at capacity")
)

// RecordStore persists scans and their per-site results.
type RecordStore interface {
	CreatePending(ctx context.Context, userID int64, targetURL string, scanType domain.ScanType) (domain.Scan, error)
	SetState(ctx context.Context, scanID uuid.UUID, status domain.ScanStatus, completedAt *time.Time, score *float64) error
	AppendResult(ctx context.Context, result domain.ScanResult) error
	Get(ctx context.Context, scanID uuid.UUID) (domain.Scan, error)
	GetForUser(ctx context.Context, scanID uuid.UUID, userID int64) (domain.Scan, error)
	ListForUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Scan, error)
	ListResults(ctx context.Context, scanID uuid.UUID) ([]domain.ScanResult, error)
	CountResults(ctx context.Context, scanID uuid.UUID) (int, error)
}

// Recorder counts scan lifecycle events for observability.
type Recorder interface {
	ScanStarted()
	ScanCompleted()
	ScanFailed()
	OutcomeRecorded(status string)
}

type nopRecorder struct{}

func (nopRecorder) ScanStarted()           {}
func (nopRecorder) ScanCompleted()         {}
func (nopRecorder) ScanFailed()            {}
func (nopRecorder) OutcomeRecorded(string) {}

// Config controls admission behavior.
type Config struct {
	// MaxConcurrent bounds simultaneously running scans.
	MaxConcurrent int
	// Queue makes admitted scans wait for a slot instead of rejecting
	// them when the cap is reached.
	Queue bool
}

// Service admits and executes scans.
type Service struct {
	store   RecordStore
	limiter ratelimit.Limiter
	engine  probe.Engine
	hub     events.Publisher
	metrics Recorder
	log     logger.Logger

	queue bool
	slots chan struct{}
}

// NewService creates a scan service. metrics may be nil.
func NewService(store RecordStore, limiter ratelimit.Limiter, engine probe.Engine, hub events.Publisher, metrics Recorder, cfg Config, log logger.Logger) *Service {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		store:   store,
		limiter: limiter,
		engine:  engine,
		hub:     hub,
		metrics: metrics,
		log:     log,
		queue:   cfg.Queue,
		slots:   make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Admit checks the user's rate budget, records a pending scan, and
// starts its execution in the background. Denied admissions leave no
// scan record behind.
func (s *Service) Admit(ctx context.Context, userID int64, targetURL string, scanType domain.ScanType) (domain.Scan, error) {
	allowed, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		return domain.Scan{}, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		return domain.Scan{}, ErrRateLimited
	}

	// In reject mode a slot is claimed up front and handed to the
	// worker goroutine, so the cap also covers not-yet-started scans.
	var claimed bool
	if !s.queue {
		select {
		case s.slots <- struct{}{}:
			claimed = true
		default:
			return domain.Scan{}, ErrBusy
		}
	}

	scan, err := s.store.CreatePending(ctx, userID, targetURL, scanType)
	if err != nil {
		if claimed {
			<-s.slots
		}
		return domain.Scan{}, fmt.Errorf("create scan: %w", err)
	}

	s.log.Info("Scan admitted",
		logger.String("scan_id", scan.ID.String()),
		logger.Int64("user_id", userID),
		logger.String("target_url", targetURL),
		logger.String("scan_type", string(scanType)),
	)

	go s.execute(scan, claimed)

	return scan, nil
}

// execute runs a scan to a terminal state. It is detached from the
// admitting request's context so client disconnects do not abort scans.
func (s *Service) execute(scan domain.Scan, slotClaimed bool) {
	ctx := context.Background()

	if !slotClaimed {
		s.slots <- struct{}{}
	}
	defer func() { <-s.slots }()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Scan panicked",
				logger.String("scan_id", scan.ID.String()),
				logger.Any("panic", r),
			)
			s.fail(ctx, scan.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	total := s.engine.TotalSites()
	if total == 0 {
		s.fail(ctx, scan.ID, probe.ErrUnavailable.Error())
		return
	}

	if err := s.store.SetState(ctx, scan.ID, domain.ScanRunning, nil, nil); err != nil {
		s.log.Error("Failed to mark scan running",
			logger.String("scan_id", scan.ID.String()),
			logger.Error(err),
		)
		s.fail(ctx, scan.ID, "could not start scan")
		return
	}
	s.metrics.ScanStarted()

	username := ExtractUsername(scan.TargetURL)
	notifier := newNotifier(scan.ID, total, s.store, s.hub, s.metrics, s.log)

	s.log.Info("Scan running",
		logger.String("scan_id", scan.ID.String()),
		logger.String("username", username),
		logger.Int("total_sites", total),
	)

	if err := s.engine.Run(ctx, username, notifier.Observe); err != nil {
		s.fail(ctx, scan.ID, err.Error())
		return
	}

	score := notifier.Score()
	now := time.Now().UTC()
	if err := s.store.SetState(ctx, scan.ID, domain.ScanCompleted, &now, &score); err != nil {
		s.log.Error("Failed to finalize scan",
			logger.String("scan_id", scan.ID.String()),
			logger.Error(err),
		)
		s.fail(ctx, scan.ID, "could not finalize scan")
		return
	}
	s.metrics.ScanCompleted()

	s.broadcast(ctx, events.NewScanCompletedEvent(scan.ID, score, notifier.Seen()))

	s.log.Info("Scan completed",
		logger.String("scan_id", scan.ID.String()),
		logger.Float64("security_score", score),
		logger.Int("findings_count", notifier.Seen()),
	)
}

// fail moves a scan to the failed state and tells subscribers.
func (s *Service) fail(ctx context.Context, scanID uuid.UUID, reason string) {
	now := time.Now().UTC()
	if err := s.store.SetState(ctx, scanID, domain.ScanFailed, &now, nil); err != nil {
		s.log.Error("Failed to mark scan failed",
			logger.String("scan_id", scanID.String()),
			logger.Error(err),
		)
	}
	s.metrics.ScanFailed()

	s.broadcast(ctx, events.NewScanFailedEvent(scanID, reason))

	s.log.Warn("Scan failed",
		logger.String("scan_id", scanID.String()),
		logger.String("reason", reason),
	)
}

func (s *Service) broadcast(ctx context.Context, event events.Event) {
	if err := s.hub.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to broadcast event",
			logger.String("event_type", event.Type),
			logger.Error(err),
		)
	}
}

// GetScan returns a user's scan along with its live progress.
func (s *Service) GetScan(ctx context.Context, scanID uuid.UUID, userID int64) (domain.Scan, float64, int, error) {
	scan, err := s.store.GetForUser(ctx, scanID, userID)
	if err != nil {
		return domain.Scan{}, 0, 0, err
	}

	count, err := s.store.CountResults(ctx, scanID)
	if err != nil {
		return domain.Scan{}, 0, 0, err
	}

	return scan, s.progress(scan, count), count, nil
}

// ScanOverview pairs a scan with its live progress and recorded
// outcome count.
type ScanOverview struct {
	Scan     domain.Scan
	Progress float64
	Findings int
}

// ListScans returns the user's scan history, newest first, with the
// same fine-grained progress the single-scan lookup reports.
func (s *Service) ListScans(ctx context.Context, userID int64, limit, offset int) ([]ScanOverview, error) {
	scans, err := s.store.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	overviews := make([]ScanOverview, 0, len(scans))
	for _, scan := range scans {
		count, err := s.store.CountResults(ctx, scan.ID)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, ScanOverview{
			Scan:     scan,
			Progress: s.progress(scan, count),
			Findings: count,
		})
	}
	return overviews, nil
}

// ListResults returns the per-site outcomes recorded for a user's scan.
func (s *Service) ListResults(ctx context.Context, scanID uuid.UUID, userID int64) ([]domain.ScanResult, error) {
	if _, err := s.store.GetForUser(ctx, scanID, userID); err != nil {
		return nil, err
	}
	return s.store.ListResults(ctx, scanID)
}

// Progress returns completion as a percentage. Completed scans read
// 100 regardless of recorded outcome count; live scans report recorded
// sites against the catalog size.
func (s *Service) Progress(scan domain.Scan, recorded int) float64 {
	return s.progress(scan, recorded)
}

func (s *Service) progress(scan domain.Scan, recorded int) float64 {
	if scan.Status == domain.ScanCompleted {
		return 100.0
	}
	total := s.engine.TotalSites()
	if total == 0 {
		return 0.0
	}
	p := float64(recorded) / float64(total) * 100.0
	if p > 100.0 {
		p = 100.0
	}
	return p
}
