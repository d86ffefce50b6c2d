package model

import (
	"context"
	"time"
)

// Secret is a stored ciphertext payload keyed by an opaque caller-generated
// identifier, with a redemption budget. The engine never interprets the
// ciphertext or the passphrase; both are opaque to it.
type Secret struct {
	MessageID      int64
	UniqueID       string
	Ciphertext     []byte
	BlobKey        string
	Passphrase     string
	RecipientEmail string
	ViewCount      int
	MaxViewCount   int
	CreatedAt      time.Time
	ExhaustedAt    *time.Time
}

// Exhausted reports whether the view budget is fully consumed.
func (s Secret) Exhausted() bool {
	return s.ViewCount >= s.MaxViewCount
}

// InsertParams contains parameters to create a secret.
type InsertParams struct {
	UniqueID       string
	Ciphertext     []byte
	BlobKey        string
	Passphrase     string
	MaxViewCount   int
	RecipientEmail string
}

// ReminderCandidate is a never-viewed secret returned by the reminder scan.
type ReminderCandidate struct {
	MessageID      int64
	UniqueID       string
	RecipientEmail string
	CreatedAt      time.Time
	DaysOld        int
}

// SecretStore defines persistence operations for secrets.
//
// Redeem must be serializable per unique id: of N concurrent redeemers of a
// record with one view remaining, exactly one succeeds and the rest observe
// ErrExhausted.
type SecretStore interface {
	Insert(ctx context.Context, params InsertParams) (Secret, error)
	Redeem(ctx context.Context, uniqueID string) (Secret, error)
	Peek(ctx context.Context, uniqueID string) (Secret, error)
	GetForReminderScan(ctx context.Context, olderThan time.Duration, maxReminders int) ([]ReminderCandidate, error)
	ErasePayload(ctx context.Context, uniqueID string) error
	DeleteExhaustedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteUnclaimedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
