package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/burnbox/server/internal/model"
)

var _ model.SecretStore = (*SecretRepository)(nil)

type SecretRepository struct {
	db *Connection
}

func NewSecretRepository(db *Connection) *SecretRepository {
	return &SecretRepository{
		db: db,
	}
}

func (r *SecretRepository) Insert(ctx context.Context, params model.InsertParams) (model.Secret, error) {
	query := `
		INSERT INTO secrets (unique_id, ciphertext, blob_key, passphrase, recipient_email, max_view_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unique_id) DO NOTHING
		RETURNING message_id, created_at`

	secret := model.Secret{
		UniqueID:       params.UniqueID,
		Ciphertext:     params.Ciphertext,
		BlobKey:        params.BlobKey,
		Passphrase:     params.Passphrase,
		RecipientEmail: params.RecipientEmail,
		MaxViewCount:   params.MaxViewCount,
	}
	err := r.db.QueryRowContext(ctx, query,
		params.UniqueID, params.Ciphertext, params.BlobKey,
		params.Passphrase, params.RecipientEmail, params.MaxViewCount,
	).Scan(&secret.MessageID, &secret.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflicting row already present; never overwrite it.
		return model.Secret{}, model.ErrAlreadyExists
	}
	if err != nil {
		return model.Secret{}, err
	}

	return secret, nil
}

// Redeem consumes one view. The conditional update is the serialization
// point: the row version each redeemer observes is the one it incremented, so
// the budget can never be overspent.
func (r *SecretRepository) Redeem(ctx context.Context, uniqueID string) (model.Secret, error) {
	query := `
		UPDATE secrets
		SET view_count = view_count + 1
		WHERE unique_id = $1 AND view_count < max_view_count
		RETURNING message_id, unique_id, ciphertext, blob_key, passphrase, recipient_email,
		          view_count, max_view_count, created_at`

	var secret model.Secret
	err := r.db.QueryRowContext(ctx, query, uniqueID).Scan(
		&secret.MessageID, &secret.UniqueID, &secret.Ciphertext, &secret.BlobKey,
		&secret.Passphrase, &secret.RecipientEmail,
		&secret.ViewCount, &secret.MaxViewCount, &secret.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the row is missing or the budget is spent; probe to tell
		// the two terminal outcomes apart.
		var exists bool
		probeErr := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM secrets WHERE unique_id = $1)`, uniqueID,
		).Scan(&exists)
		if probeErr != nil {
			return model.Secret{}, probeErr
		}
		if exists {
			return model.Secret{}, model.ErrExhausted
		}
		return model.Secret{}, model.ErrNotFound
	}
	if err != nil {
		return model.Secret{}, err
	}

	return secret, nil
}

func (r *SecretRepository) Peek(ctx context.Context, uniqueID string) (model.Secret, error) {
	query := `
		SELECT message_id, unique_id, ciphertext, blob_key, passphrase, recipient_email,
		       view_count, max_view_count, created_at, exhausted_at
		FROM secrets
		WHERE unique_id = $1`

	var secret model.Secret
	var exhaustedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, uniqueID).Scan(
		&secret.MessageID, &secret.UniqueID, &secret.Ciphertext, &secret.BlobKey,
		&secret.Passphrase, &secret.RecipientEmail,
		&secret.ViewCount, &secret.MaxViewCount, &secret.CreatedAt, &exhaustedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Secret{}, model.ErrNotFound
	}
	if err != nil {
		return model.Secret{}, err
	}
	if exhaustedAt.Valid {
		secret.ExhaustedAt = &exhaustedAt.Time
	}

	return secret, nil
}

func (r *SecretRepository) GetForReminderScan(ctx context.Context, olderThan time.Duration, maxReminders int) ([]model.ReminderCandidate, error) {
	query := `
		SELECT s.message_id, s.unique_id, s.recipient_email, s.created_at,
		       (EXTRACT(EPOCH FROM (now() - s.created_at)) / 86400)::int AS days_old
		FROM secrets s
		LEFT JOIN email_reminders er ON er.message_id = s.message_id
		WHERE s.view_count = 0
		  AND s.created_at < now() - make_interval(secs => $1)
		  AND s.recipient_email <> ''
		  AND (er.reminder_count IS NULL OR er.reminder_count < $2)
		ORDER BY s.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, olderThan.Seconds(), maxReminders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []model.ReminderCandidate
	for rows.Next() {
		var c model.ReminderCandidate
		err := rows.Scan(&c.MessageID, &c.UniqueID, &c.RecipientEmail, &c.CreatedAt, &c.DaysOld)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return candidates, nil
}

func (r *SecretRepository) ErasePayload(ctx context.Context, uniqueID string) error {
	query := `
		UPDATE secrets
		SET ciphertext = ''::bytea, blob_key = '', exhausted_at = now()
		WHERE unique_id = $1 AND view_count >= max_view_count`

	res, err := r.db.ExecContext(ctx, query, uniqueID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *SecretRepository) DeleteExhaustedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		DELETE FROM secrets
		WHERE exhausted_at IS NOT NULL AND exhausted_at < $1
		RETURNING blob_key`

	return r.deleteReturningBlobKeys(ctx, query, cutoff)
}

func (r *SecretRepository) DeleteUnclaimedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		DELETE FROM secrets
		WHERE view_count = 0 AND created_at < $1
		RETURNING blob_key`

	return r.deleteReturningBlobKeys(ctx, query, cutoff)
}

func (r *SecretRepository) deleteReturningBlobKeys(ctx context.Context, query string, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		if key != "" {
			keys = append(keys, key)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

func (r *SecretRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *SecretRepository) Close() error {
	return r.db.Close()
}
