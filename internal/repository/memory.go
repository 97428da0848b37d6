package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/sherlock-center/internal/domain"
)

// MemoryScanStore keeps scans and their results in process memory.
// It mirrors ScanRepository's behavior, including the terminal-state
// guard and per-site dedup, and is safe for concurrent use. Intended
// for tests and for running without PostgreSQL.
type MemoryScanStore struct {
	mu      sync.RWMutex
	scans   map[uuid.UUID]domain.Scan
	results map[uuid.UUID][]domain.ScanResult
}

// NewMemoryScanStore creates an empty store.
func NewMemoryScanStore() *MemoryScanStore {
	return &MemoryScanStore{
		scans:   make(map[uuid.UUID]domain.Scan),
		results: make(map[uuid.UUID][]domain.ScanResult),
	}
}

func (s *MemoryScanStore) CreatePending(_ context.Context, userID int64, targetURL string, scanType domain.ScanType) (domain.Scan, error) {
	scan := domain.Scan{
		ID:        uuid.New(),
		UserID:    userID,
		TargetURL: targetURL,
		ScanType:  scanType,
		Status:    domain.ScanPending,
		StartedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.scans[scan.ID] = scan
	s.mu.Unlock()

	return scan, nil
}

func (s *MemoryScanStore) SetState(_ context.Context, scanID uuid.UUID, status domain.ScanStatus, completedAt *time.Time, score *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scan, ok := s.scans[scanID]
	if !ok || scan.Status.Terminal() {
		return nil
	}

	scan.Status = status
	scan.CompletedAt = completedAt
	scan.SecurityScore = score
	s.scans[scanID] = scan
	return nil
}

func (s *MemoryScanStore) AppendResult(_ context.Context, result domain.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.results[result.ScanID] {
		if existing.SiteName == result.SiteName {
			return nil
		}
	}
	s.results[result.ScanID] = append(s.results[result.ScanID], result)
	return nil
}

func (s *MemoryScanStore) Get(_ context.Context, scanID uuid.UUID) (domain.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scan, ok := s.scans[scanID]
	if !ok {
		return domain.Scan{}, ErrNotFound
	}
	return scan, nil
}

func (s *MemoryScanStore) GetForUser(_ context.Context, scanID uuid.UUID, userID int64) (domain.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scan, ok := s.scans[scanID]
	if !ok || scan.UserID != userID {
		return domain.Scan{}, ErrNotFound
	}
	return scan, nil
}

func (s *MemoryScanStore) ListForUser(_ context.Context, userID int64, limit, offset int) ([]domain.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := make([]domain.Scan, 0)
	for _, scan := range s.scans {
		if scan.UserID == userID {
			owned = append(owned, scan)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].StartedAt.After(owned[j].StartedAt)
	})

	if offset >= len(owned) {
		return []domain.Scan{}, nil
	}
	owned = owned[offset:]
	if limit > 0 && limit < len(owned) {
		owned = owned[:limit]
	}
	return owned, nil
}

func (s *MemoryScanStore) ListResults(_ context.Context, scanID uuid.UUID) ([]domain.ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.ScanResult, len(s.results[scanID]))
	copy(results, s.results[scanID])
	return results, nil
}

func (s *MemoryScanStore) CountResults(_ context.Context, scanID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results[scanID]), nil
}
