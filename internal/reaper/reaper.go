// Package reaper removes dead rows in the background: exhausted tombstones
// past their grace period and never-viewed secrets past retention.
package reaper

import (
	"context"
	"time"

	"github.com/burnbox/server/internal/logger"
	"github.com/burnbox/server/internal/model"
)

type Config struct {
	// Interval between cleanup runs.
	Interval time.Duration
	// ExhaustedGrace is how long exhausted tombstones stay queryable before
	// deletion. During the grace period redeemers still get a distinct
	// "already viewed" answer instead of "not found".
	ExhaustedGrace time.Duration
	// Retention deletes never-viewed secrets older than this. Zero disables
	// unclaimed cleanup entirely.
	Retention time.Duration
}

type Reaper struct {
	store  model.SecretStore
	blobs  model.Storage
	config Config
	logger *logger.Logger

	now func() time.Time
}

// New creates a reaper. blobs may be nil when payload offloading is
// disabled.
func New(store model.SecretStore, blobs model.Storage, config Config, logger *logger.Logger) *Reaper {
	return &Reaper{
		store:  store,
		blobs:  blobs,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes cleanup immediately and then on every tick until the context
// is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.runOnce(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reaper) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, r.config.Interval)
	defer cancel()

	now := r.now()

	keys, err := r.store.DeleteExhaustedBefore(runCtx, now.Add(-r.config.ExhaustedGrace))
	if err != nil {
		r.logger.Error("failed to delete exhausted secrets", "error", err)
	}
	r.deleteBlobs(runCtx, keys)

	if r.config.Retention > 0 {
		keys, err = r.store.DeleteUnclaimedBefore(runCtx, now.Add(-r.config.Retention))
		if err != nil {
			r.logger.Error("failed to delete expired secrets", "error", err)
		}
		r.deleteBlobs(runCtx, keys)
	}
}

func (r *Reaper) deleteBlobs(ctx context.Context, keys []string) {
	if r.blobs == nil {
		return
	}
	for _, key := range keys {
		if err := r.blobs.Delete(ctx, key); err != nil {
			r.logger.Error("failed to delete payload blob", "key", key, "error", err)
		}
	}
}
