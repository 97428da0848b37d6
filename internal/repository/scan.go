package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/sherlock-center/internal/domain"
	"github.com/jonesrussell/sherlock-center/internal/logger"
)

// scanSelectList is the column list for SELECT on scans (single source for schema changes).
const scanSelectList = `id, user_id, target_url, scan_type, status, security_score, started_at, completed_at`

// ScanRepository manages scan records and their per-site results in PostgreSQL.
type ScanRepository struct {
	db  *sql.DB
	log logger.Logger
}

// NewScanRepository creates a new repository.
func NewScanRepository(db *sql.DB, log logger.Logger) *ScanRepository {
	return &ScanRepository{db: db, log: log}
}

// CreatePending inserts a new scan in the pending state and returns it.
func (r *ScanRepository) CreatePending(ctx context.Context, userID int64, targetURL string, scanType domain.ScanType) (domain.Scan, error) {
	scan := domain.Scan{
		ID:        uuid.New(),
		UserID:    userID,
		TargetURL: targetURL,
		ScanType:  scanType,
		Status:    domain.ScanPending,
		StartedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO scans (id, user_id, target_url, scan_type, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		scan.ID, scan.UserID, scan.TargetURL, scan.ScanType, scan.Status, scan.StartedAt,
	)
	if err != nil {
		r.log.Error("Failed to create scan",
			logger.Int64("user_id", userID),
			logger.Error(err),
		)
		return domain.Scan{}, fmt.Errorf("create scan: %w", err)
	}

	return scan, nil
}

// SetState transitions a scan to the given state. completedAt and score may be
// nil for non-terminal states. Scans already in a terminal state are left
// untouched so a late failure can never overwrite a completed record.
func (r *ScanRepository) SetState(ctx context.Context, scanID uuid.UUID, status domain.ScanStatus, completedAt *time.Time, score *float64) error {
	query := `
		UPDATE scans
		SET status = $2, completed_at = $3, security_score = $4
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`
	res, err := r.db.ExecContext(ctx, query, scanID, status, completedAt, score)
	if err != nil {
		return fmt.Errorf("set scan state: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set scan state rows: %w", err)
	}
	if rows == 0 {
		// Unknown id or already terminal; either way nothing to do.
		r.log.Debug("Scan state transition skipped",
			logger.String("scan_id", scanID.String()),
			logger.String("status", string(status)),
		)
	}

	return nil
}

// AppendResult stores one per-site outcome. A second outcome for the same
// (scan, site) pair is silently dropped; results are append-only.
func (r *ScanRepository) AppendResult(ctx context.Context, result domain.ScanResult) error {
	query := `
		INSERT INTO scan_results (scan_id, site_name, url_main, url_user, status, http_status, query_time, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT scan_results_scan_site_uniq DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		result.ScanID, result.SiteName, result.URLMain, result.URLUser,
		result.Status, result.HTTPStatus, result.QueryTime, result.ErrorMessage,
	)
	if err != nil {
		r.log.Error("Failed to append scan result",
			logger.String("scan_id", result.ScanID.String()),
			logger.String("site", result.SiteName),
			logger.Error(err),
		)
		return fmt.Errorf("append scan result: %w", err)
	}

	return nil
}

// Get returns a scan by id.
func (r *ScanRepository) Get(ctx context.Context, scanID uuid.UUID) (domain.Scan, error) {
	query := `SELECT ` + scanSelectList + ` FROM scans WHERE id = $1`
	return r.scanRow(r.db.QueryRowContext(ctx, query, scanID))
}

// GetForUser returns a scan by id only if it belongs to the given user.
// Non-owned scans are indistinguishable from absent ones.
func (r *ScanRepository) GetForUser(ctx context.Context, scanID uuid.UUID, userID int64) (domain.Scan, error) {
	query := `SELECT ` + scanSelectList + ` FROM scans WHERE id = $1 AND user_id = $2`
	return r.scanRow(r.db.QueryRowContext(ctx, query, scanID, userID))
}

// ListForUser returns the user's scans ordered by creation time, newest first.
func (r *ScanRepository) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Scan, error) {
	query := `
		SELECT ` + scanSelectList + `
		FROM scans
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var scans []domain.Scan
	for rows.Next() {
		var s domain.Scan
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.TargetURL, &s.ScanType, &s.Status,
			&s.SecurityScore, &s.StartedAt, &s.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scans rows: %w", err)
	}

	return scans, nil
}

// ListResults returns all stored outcomes for a scan.
func (r *ScanRepository) ListResults(ctx context.Context, scanID uuid.UUID) ([]domain.ScanResult, error) {
	query := `
		SELECT scan_id, site_name, url_main, url_user, status, http_status, query_time, error_message
		FROM scan_results
		WHERE scan_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("list scan results: %w", err)
	}
	defer rows.Close()

	var results []domain.ScanResult
	for rows.Next() {
		var res domain.ScanResult
		if err := rows.Scan(
			&res.ScanID, &res.SiteName, &res.URLMain, &res.URLUser,
			&res.Status, &res.HTTPStatus, &res.QueryTime, &res.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scan results rows: %w", err)
	}

	return results, nil
}

// CountResults returns the number of stored outcomes for a scan.
func (r *ScanRepository) CountResults(ctx context.Context, scanID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_results WHERE scan_id = $1`, scanID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count scan results: %w", err)
	}
	return count, nil
}

// scanRow scans a single scan row, mapping sql.ErrNoRows to ErrNotFound.
func (r *ScanRepository) scanRow(row *sql.Row) (domain.Scan, error) {
	var s domain.Scan
	err := row.Scan(
		&s.ID, &s.UserID, &s.TargetURL, &s.ScanType, &s.Status,
		&s.SecurityScore, &s.StartedAt, &s.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Scan{}, ErrNotFound
		}
		return domain.Scan{}, fmt.Errorf("get scan: %w", err)
	}
	return s, nil
}
