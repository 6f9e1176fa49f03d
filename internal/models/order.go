package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Statuses an order moves through. There is no transition guard; staff
// may set any status at any time.
const (
	StatusPending   = "pending"
	StatusPrinting  = "printing"
	StatusCompleted = "completed"
)

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusPrinting, StatusCompleted:
		return true
	}
	return false
}

// Order is one persisted print request: a single uploaded file plus its
// print options, cost and fulfillment status. Exactly one of UserID and
// GuestSessionID is set, never both and never neither.
type Order struct {
	ID             uuid.UUID
	UserID         sql.NullString
	GuestSessionID sql.NullString
	FileName       string
	FilePath       string
	Quantity       int
	PaperSize      string
	ColorMode      string
	TotalCost      float64
	Status         string
	CreatedAt      time.Time
}

// PushSubscription holds one browser push registration per user. The
// Subscription field is the opaque endpoint+keys blob handed back by the
// push service, stored verbatim.
type PushSubscription struct {
	UserID       string
	Subscription string
	CreatedAt    time.Time
}
