package model

import (
	"context"
	"time"
)

// ReminderLogEntry is the durable record of reminders sent for one secret.
// At most one entry exists per message id; it is created on the first
// reminder and updated on every subsequent one.
type ReminderLogEntry struct {
	MessageID        int64
	EmailAddress     string
	ReminderCount    int
	LastReminderSent time.Time
}

// ReminderLedger defines persistence operations for reminder log entries.
//
// RecordSent must be serializable per message id: concurrent calls for the
// same id never produce duplicate rows, only sequential increments.
type ReminderLedger interface {
	GetEntry(ctx context.Context, messageID int64) (ReminderLogEntry, error)
	RecordSent(ctx context.Context, messageID int64, emailAddress string) (ReminderLogEntry, error)
}

// ReminderPolicy controls the reminder escalation schedule.
type ReminderPolicy struct {
	// OlderThan is the minimum age before a never-viewed secret gets its
	// first reminder.
	OlderThan time.Duration
	// MaxReminders caps the escalation; once reached the secret is never
	// reminded again.
	MaxReminders int
	// Interval is the minimum gap between two reminders for one secret.
	Interval time.Duration
}
