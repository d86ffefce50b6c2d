package redis

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/burnbox/server/internal/model"
)

var _ model.ReminderLedger = (*Ledger)(nil)

type Ledger struct {
	client *redis.Client

	now func() time.Time
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{
		client: client,
		now:    time.Now,
	}
}

func (l *Ledger) GetEntry(ctx context.Context, messageID int64) (model.ReminderLogEntry, error) {
	data, err := l.client.Get(ctx, reminderKey(messageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ReminderLogEntry{}, model.ErrNotFound
	}
	if err != nil {
		return model.ReminderLogEntry{}, err
	}

	return decodeEntry(data)
}

func (l *Ledger) RecordSent(ctx context.Context, messageID int64, emailAddress string) (model.ReminderLogEntry, error) {
	key := reminderKey(messageID)
	var recorded model.ReminderLogEntry

	txf := func(tx *redis.Tx) error {
		entry := model.ReminderLogEntry{MessageID: messageID}

		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			entry, err = decodeEntry(data)
			if err != nil {
				return err
			}
		}

		entry.EmailAddress = emailAddress
		entry.ReminderCount++
		entry.LastReminderSent = l.now()
		recorded = entry

		newData, err := encodeEntry(entry)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, 0)
			return nil
		})
		return err
	}

	for i := 0; i < redeemRetries; i++ {
		err := l.client.Watch(ctx, txf, key)
		if err == nil {
			return recorded, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.ReminderLogEntry{}, err
	}

	return model.ReminderLogEntry{}, redis.TxFailedErr
}

func encodeEntry(entry model.ReminderLogEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (model.ReminderLogEntry, error) {
	var entry model.ReminderLogEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return model.ReminderLogEntry{}, err
	}
	return entry, nil
}
