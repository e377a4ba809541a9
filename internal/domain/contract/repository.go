package contract

import (
	"context"
	"time"
)

// Repository defines the operations for persisting and retrieving Contract entities.
type Repository interface {
	Create(ctx context.Context, c *Contract) error
	GetByID(ctx context.Context, id int64) (*Contract, error)
	GetByBookingID(ctx context.Context, bookingID int64) (*Contract, error)
	GetForUpdate(ctx context.Context, id int64) (*Contract, error)
	// Activate moves waiting_signature -> active and stamps signed_at.
	// It reports false when the contract was not waiting for signature.
	Activate(ctx context.Context, id int64, signedAt time.Time) (bool, error)
	SetDocumentPath(ctx context.Context, id int64, path string) error
}
