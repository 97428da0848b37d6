package domain

import "time"

// User is a registered account. Only the numeric ID is consumed by the scan
// subsystem; everything else belongs to the credential store.
type User struct {
	ID           int64      `db:"id"            json:"id"`
	Username     string     `db:"username"      json:"username"`
	Email        string     `db:"email"         json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name"     json:"full_name"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	LastLogin    *time.Time `db:"last_login"    json:"last_login,omitempty"`
}

// UserInfo is the public view of a user returned by auth endpoints.
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
