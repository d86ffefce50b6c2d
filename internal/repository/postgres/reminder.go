package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/burnbox/server/internal/model"
)

var _ model.ReminderLedger = (*ReminderRepository)(nil)

type ReminderRepository struct {
	db *Connection
}

func NewReminderRepository(db *Connection) *ReminderRepository {
	return &ReminderRepository{
		db: db,
	}
}

func (r *ReminderRepository) GetEntry(ctx context.Context, messageID int64) (model.ReminderLogEntry, error) {
	query := `
		SELECT message_id, email_address, reminder_count, last_reminder_sent
		FROM email_reminders
		WHERE message_id = $1`

	var entry model.ReminderLogEntry
	err := r.db.QueryRowContext(ctx, query, messageID).Scan(
		&entry.MessageID, &entry.EmailAddress, &entry.ReminderCount, &entry.LastReminderSent,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ReminderLogEntry{}, model.ErrNotFound
	}
	if err != nil {
		return model.ReminderLogEntry{}, err
	}

	return entry, nil
}

// RecordSent creates the entry on the first reminder and increments it on
// every subsequent one. The upsert is a single statement, so concurrent
// passes serialize on the row instead of producing duplicates.
func (r *ReminderRepository) RecordSent(ctx context.Context, messageID int64, emailAddress string) (model.ReminderLogEntry, error) {
	query := `
		INSERT INTO email_reminders (message_id, email_address, reminder_count, last_reminder_sent)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (message_id) DO UPDATE
		SET reminder_count = email_reminders.reminder_count + 1,
		    last_reminder_sent = now(),
		    email_address = EXCLUDED.email_address
		RETURNING message_id, email_address, reminder_count, last_reminder_sent`

	var entry model.ReminderLogEntry
	err := r.db.QueryRowContext(ctx, query, messageID, emailAddress).Scan(
		&entry.MessageID, &entry.EmailAddress, &entry.ReminderCount, &entry.LastReminderSent,
	)
	if err != nil {
		return model.ReminderLogEntry{}, err
	}

	return entry, nil
}
