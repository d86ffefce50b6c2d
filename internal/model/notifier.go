package model

import "context"

// Reminder describes one reminder delivery for an unclaimed secret.
type Reminder struct {
	MessageID      int64
	UniqueID       string
	RecipientEmail string
	DaysOld        int
	// ReminderNumber is 1 for the first reminder, counting up to the
	// policy's MaxReminders.
	ReminderNumber int
}

// Notifier delivers a reminder to its recipient. A failed delivery must not
// leave any durable trace; the candidate stays eligible for the next pass.
type Notifier interface {
	Notify(ctx context.Context, reminder Reminder) error
}
