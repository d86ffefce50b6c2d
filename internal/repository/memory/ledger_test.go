package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnbox/server/internal/model"
)

func TestLedger_GetEntry_NotFound(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	_, err := ledger.GetEntry(ctx, 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLedger_RecordSent_CreatesThenIncrements(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	first, err := ledger.RecordSent(ctx, 1, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, 1, first.ReminderCount)
	assert.Equal(t, now, first.LastReminderSent)

	second, err := ledger.RecordSent(ctx, 1, "new@b.c")
	require.NoError(t, err)
	assert.Equal(t, 2, second.ReminderCount)
	assert.Equal(t, "new@b.c", second.EmailAddress)

	entry, err := ledger.GetEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.ReminderCount)
}

func TestLedger_RecordSent_Concurrent(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	const writers = 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.RecordSent(ctx, 1, "a@b.c")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entry, err := ledger.GetEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, writers, entry.ReminderCount)
}
