package memory

import (
	"context"
	"sync"
	"time"

	"github.com/burnbox/server/internal/model"
)

var _ model.ReminderLedger = (*Ledger)(nil)

type Ledger struct {
	mu      sync.Mutex
	entries map[int64]*model.ReminderLogEntry

	now func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[int64]*model.ReminderLogEntry),
		now:     time.Now,
	}
}

func (l *Ledger) GetEntry(_ context.Context, messageID int64) (model.ReminderLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[messageID]
	if !ok {
		return model.ReminderLogEntry{}, model.ErrNotFound
	}

	return *entry, nil
}

func (l *Ledger) RecordSent(_ context.Context, messageID int64, emailAddress string) (model.ReminderLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[messageID]
	if !ok {
		entry = &model.ReminderLogEntry{MessageID: messageID}
		l.entries[messageID] = entry
	}

	entry.EmailAddress = emailAddress
	entry.ReminderCount++
	entry.LastReminderSent = l.now()

	return *entry, nil
}
