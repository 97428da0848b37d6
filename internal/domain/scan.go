// Package domain holds the core models for identity-exposure scans.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScanType identifies the kind of scan requested.
type ScanType string

// Supported scan types.
const (
	ScanTypeQuick         ScanType = "quick"
	ScanTypeComprehensive ScanType = "comprehensive"
	ScanTypeAPI           ScanType = "api"
	ScanTypeCompliance    ScanType = "compliance"
)

// Valid reports whether t is a recognized scan type.
func (t ScanType) Valid() bool {
	switch t {
	case ScanTypeQuick, ScanTypeComprehensive, ScanTypeAPI, ScanTypeCompliance:
		return true
	default:
		return false
	}
}

// ScanStatus is the lifecycle state of a scan.
// Transitions: pending -> running -> completed | failed. Terminal states are
// never left.
type ScanStatus string

// Scan lifecycle states.
const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// Terminal reports whether s is a terminal state.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanFailed
}

// Scan is one requested enumeration job.
// SecurityScore is set only when Status is completed; CompletedAt is set if and
// only if Status is terminal.
type Scan struct {
	ID            uuid.UUID  `db:"id"           json:"id"`
	UserID        int64      `db:"user_id"      json:"user_id"`
	TargetURL     string     `db:"target_url"   json:"target_url"`
	ScanType      ScanType   `db:"scan_type"    json:"scan_type"`
	Status        ScanStatus `db:"status"       json:"status"`
	SecurityScore *float64   `db:"security_score" json:"security_score,omitempty"`
	StartedAt     time.Time  `db:"started_at"   json:"started_at"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// OutcomeStatus is the per-site probing result kind.
type OutcomeStatus string

// Probing outcome kinds, matching the probing engine's result statuses.
const (
	OutcomeClaimed   OutcomeStatus = "claimed"
	OutcomeAvailable OutcomeStatus = "available"
	OutcomeUnknown   OutcomeStatus = "unknown"
	OutcomeError     OutcomeStatus = "error"
)

// ScanResult is one per-site probing outcome belonging to a scan.
// Results are append-only; a (ScanID, SiteName) pair is stored at most once.
type ScanResult struct {
	ScanID       uuid.UUID     `db:"scan_id"       json:"scan_id"`
	SiteName     string        `db:"site_name"     json:"site_name"`
	URLMain      string        `db:"url_main"      json:"url_main"`
	URLUser      string        `db:"url_user"      json:"url_user"`
	Status       OutcomeStatus `db:"status"        json:"status"`
	HTTPStatus   *int          `db:"http_status"   json:"http_status,omitempty"`
	QueryTime    *float64      `db:"query_time"    json:"query_time,omitempty"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
}
