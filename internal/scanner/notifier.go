package scanner

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jonesrussell/sherlock-center/internal/domain"
	"github.com/jonesrussell/sherlock-center/internal/events"
	"github.com/jonesrussell/sherlock-center/internal/logger"
	"github.com/jonesrussell/sherlock-center/internal/probe"
)

// notifier receives per-site outcomes from the probe engine, persists
// each one, and then broadcasts progress. The persist happens before
// the broadcast so a subscriber never hears about an outcome that is
// not yet queryable.
type notifier struct {
	scanID  uuid.UUID
	total   int
	store   RecordStore
	hub     events.Publisher
	metrics Recorder
	log     logger.Logger

	mu      sync.Mutex
	seen    int
	claimed int
}

func newNotifier(scanID uuid.UUID, total int, store RecordStore, hub events.Publisher, metrics Recorder, log logger.Logger) *notifier {
	return &notifier{
		scanID:  scanID,
		total:   total,
		store:   store,
		hub:     hub,
		metrics: metrics,
		log:     log,
	}
}

// Observe handles one site outcome. Safe to call from multiple probe
// workers.
func (n *notifier) Observe(outcome probe.Outcome) {
	ctx := context.Background()

	result := domain.ScanResult{
		ScanID:       n.scanID,
		SiteName:     outcome.SiteName,
		URLMain:      outcome.URLMain,
		URLUser:      outcome.URLUser,
		Status:       outcome.Status,
		HTTPStatus:   outcome.HTTPStatus,
		QueryTime:    outcome.QueryTime,
		ErrorMessage: outcome.ErrorMessage,
	}

	if err := n.store.AppendResult(ctx, result); err != nil {
		n.log.Error("Failed to persist scan result",
			logger.String("scan_id", n.scanID.String()),
			logger.String("site", outcome.SiteName),
			logger.Error(err),
		)
	}
	n.metrics.OutcomeRecorded(string(outcome.Status))

	n.mu.Lock()
	n.seen++
	if outcome.Status == domain.OutcomeClaimed {
		n.claimed++
	}
	progress := float64(n.seen) / float64(n.total) * 100.0
	n.mu.Unlock()

	event := events.NewScanProgressEvent(n.scanID, progress, outcome.SiteName, string(outcome.Status))
	if err := n.hub.Publish(ctx, event); err != nil {
		n.log.Warn("Failed to broadcast scan progress",
			logger.String("scan_id", n.scanID.String()),
			logger.Error(err),
		)
	}
}

// Seen returns how many outcomes were observed.
func (n *notifier) Seen() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seen
}

// Score computes the exposure score over observed outcomes: 100 minus
// the claimed share as a percentage. No outcomes scores a clean 100.
func (n *notifier) Score() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.seen == 0 {
		return 100.0
	}
	return 100.0 - (float64(n.claimed)/float64(n.seen))*100.0
}
