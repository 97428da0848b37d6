// Package repository provides persistence for scans, scan results, and users.
package repository

import "errors"

// ErrNotFound is returned for lookups on unknown or non-owned records.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a uniqueness constraint is violated.
var ErrDuplicate = errors.New("record already exists")
