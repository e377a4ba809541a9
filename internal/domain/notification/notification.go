// internal/domain/notification/notification.go
package notification

import (
	"database/sql"
	"time"
)

// Type groups notifications by the part of the rental lifecycle that produced them.
type Type string

const (
	TypeBooking  Type = "booking"
	TypePayment  Type = "payment"
	TypeContract Type = "contract"
)

// Notification is a user-facing record produced as a side effect of a state transition.
// Corresponds to the 'notifications' table.
type Notification struct {
	ID        int64
	UserID    int64
	Type      Type
	Title     string
	Message   string
	Link      sql.NullString
	IsRead    bool
	ReadAt    sql.NullTime
	CreatedAt time.Time
}

// Draft is the content of a notification that has not been stored yet.
type Draft struct {
	UserID  int64
	Type    Type
	Title   string
	Message string
	Link    string // Optional
}

// Build turns the draft into a storable notification.
func (d Draft) Build() *Notification {
	n := &Notification{
		UserID:  d.UserID,
		Type:    d.Type,
		Title:   d.Title,
		Message: d.Message,
	}
	if d.Link != "" {
		n.Link = sql.NullString{String: d.Link, Valid: true}
	}
	return n
}
