package domain

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `binding:"required,email" json:"email"`
	Username string `binding:"required"       json:"username"`
	Password string `binding:"required,min=8" json:"password"`
	FullName string `binding:"required"       json:"full_name"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `binding:"required" json:"username"`
	Password string `binding:"required" json:"password"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserInfo  `json:"user"`
}

// ScanRequest is the body of POST /scans.
type ScanRequest struct {
	TargetURL string   `binding:"required" json:"target_url"`
	ScanType  ScanType `json:"scan_type"`
}

// ScanResponse acknowledges an accepted scan.
type ScanResponse struct {
	ScanID  uuid.UUID `json:"scan_id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// ScanStatusResponse is the detailed view returned by GET /scans/:id and the
// list endpoint. Progress is the fraction of sites probed so far, 0-100.
type ScanStatusResponse struct {
	ScanID        uuid.UUID  `json:"scan_id"`
	Status        ScanStatus `json:"status"`
	Progress      float64    `json:"progress"`
	SecurityScore *float64   `json:"security_score,omitempty"`
	FindingsCount int        `json:"findings_count"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
