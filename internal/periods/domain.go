package periods

import (
	"errors"
	"time"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen     PeriodStatus = "OPEN"
	PeriodStatusClosed   PeriodStatus = "CLOSED"
	PeriodStatusArchived PeriodStatus = "ARCHIVED"
)

// Period represents a fiscal period window.
type Period struct {
	ID        int64
	Code      string
	StartDate time.Time
	EndDate   time.Time
	Status    PeriodStatus
	ClosedAt  *time.Time
	ClosedBy  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrClosed indicates the date falls inside a closed or archived period.
	ErrClosed = errors.New("periods: period is closed")
	// ErrNotFound indicates no period covers the date.
	ErrNotFound = errors.New("periods: period not found")
)
