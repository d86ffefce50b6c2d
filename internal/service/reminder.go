package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/burnbox/server/internal/logger"
	"github.com/burnbox/server/internal/metrics"
	"github.com/burnbox/server/internal/model"
)

// Policy bounds, in hours where applicable.
const (
	minOlderThan = time.Hour
	maxOlderThan = 8760 * time.Hour

	minMaxReminders = 1
	maxMaxReminders = 10

	minInterval = time.Hour
	maxInterval = 720 * time.Hour
)

// PassFailure records one candidate whose notification could not be
// delivered. Nothing was written to the ledger for it.
type PassFailure struct {
	MessageID int64
	Err       error
}

// PassSummary reports the outcome of a single reminder pass. Every scanned
// candidate lands in exactly one of Reminded, SkippedTooSoon,
// SkippedExhausted, Failed or NotAttempted.
type PassSummary struct {
	Candidates       int
	Reminded         []int64
	SkippedTooSoon   []int64
	SkippedExhausted []int64
	Failed           []PassFailure
	NotAttempted     []int64
}

// Reminder scans for unclaimed secrets and escalates reminders to their
// recipients, recording every delivery in the ledger.
type Reminder struct {
	store    model.SecretStore
	ledger   model.ReminderLedger
	notifier model.Notifier
	logger   *logger.Logger
	metrics  *metrics.Metrics

	// now is swappable in tests.
	now func() time.Time
}

func NewReminder(
	store model.SecretStore,
	ledger model.ReminderLedger,
	notifier model.Notifier,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Reminder {
	return &Reminder{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

func validatePolicy(policy model.ReminderPolicy) error {
	if policy.OlderThan < minOlderThan || policy.OlderThan > maxOlderThan {
		return fmt.Errorf("%w: older-than must be between %s and %s", model.ErrInvalidInput, minOlderThan, maxOlderThan)
	}
	if policy.MaxReminders < minMaxReminders || policy.MaxReminders > maxMaxReminders {
		return fmt.Errorf("%w: max reminders must be between %d and %d", model.ErrInvalidInput, minMaxReminders, maxMaxReminders)
	}
	if policy.Interval < minInterval || policy.Interval > maxInterval {
		return fmt.Errorf("%w: reminder interval must be between %s and %s", model.ErrInvalidInput, minInterval, maxInterval)
	}
	return nil
}

type verdict int

const (
	eligible verdict = iota
	skipTooSoon
	skipExhausted
)

// classify decides whether one candidate gets a reminder now. hasEntry is
// false when the candidate has never been reminded.
func classify(entry model.ReminderLogEntry, hasEntry bool, now time.Time, policy model.ReminderPolicy) verdict {
	if !hasEntry {
		return eligible
	}
	if entry.ReminderCount >= policy.MaxReminders {
		return skipExhausted
	}
	if now.Sub(entry.LastReminderSent) < policy.Interval {
		return skipTooSoon
	}
	return eligible
}

// EligibleCandidates returns the never-viewed secrets that would receive a
// reminder under the given policy right now, oldest first. It does not send
// anything and does not touch the ledger.
func (r *Reminder) EligibleCandidates(ctx context.Context, policy model.ReminderPolicy) ([]model.ReminderCandidate, error) {
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	candidates, err := r.store.GetForReminderScan(ctx, policy.OlderThan, policy.MaxReminders)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for reminder candidates: %w", err)
	}

	now := r.now()
	eligibleCandidates := make([]model.ReminderCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		entry, hasEntry, err := r.lookupEntry(ctx, candidate.MessageID)
		if err != nil {
			return nil, err
		}
		if classify(entry, hasEntry, now, policy) == eligible {
			eligibleCandidates = append(eligibleCandidates, candidate)
		}
	}

	return eligibleCandidates, nil
}

// RunPass executes one full scan-classify-notify-record cycle. Delivery
// failures do not abort the pass; the failed candidates are reported in the
// summary and stay eligible for the next pass. A cancelled context stops the
// pass and reports the remaining candidates as not attempted.
func (r *Reminder) RunPass(ctx context.Context, policy model.ReminderPolicy) (PassSummary, error) {
	if err := validatePolicy(policy); err != nil {
		return PassSummary{}, err
	}

	candidates, err := r.store.GetForReminderScan(ctx, policy.OlderThan, policy.MaxReminders)
	if err != nil {
		return PassSummary{}, fmt.Errorf("failed to scan for reminder candidates: %w", err)
	}

	summary := PassSummary{Candidates: len(candidates)}
	now := r.now()

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			for _, rest := range candidates[i:] {
				summary.NotAttempted = append(summary.NotAttempted, rest.MessageID)
			}
			return summary, ctx.Err()
		}

		entry, hasEntry, err := r.lookupEntry(ctx, candidate.MessageID)
		if err != nil {
			summary.Failed = append(summary.Failed, PassFailure{MessageID: candidate.MessageID, Err: err})
			continue
		}

		switch classify(entry, hasEntry, now, policy) {
		case skipExhausted:
			summary.SkippedExhausted = append(summary.SkippedExhausted, candidate.MessageID)
			continue
		case skipTooSoon:
			summary.SkippedTooSoon = append(summary.SkippedTooSoon, candidate.MessageID)
			continue
		}

		err = r.notifier.Notify(ctx, model.Reminder{
			MessageID:      candidate.MessageID,
			UniqueID:       candidate.UniqueID,
			RecipientEmail: candidate.RecipientEmail,
			DaysOld:        candidate.DaysOld,
			ReminderNumber: entry.ReminderCount + 1,
		})
		if err != nil {
			r.logger.Error("failed to deliver reminder",
				"message_id", candidate.MessageID,
				"email", candidate.RecipientEmail,
				"error", err)
			summary.Failed = append(summary.Failed, PassFailure{MessageID: candidate.MessageID, Err: err})
			continue
		}

		// Record only after a successful delivery; a crash between the two
		// can cause a duplicate reminder but never a silently dropped one.
		if _, err := r.ledger.RecordSent(ctx, candidate.MessageID, candidate.RecipientEmail); err != nil {
			r.logger.Error("failed to record sent reminder",
				"message_id", candidate.MessageID,
				"error", err)
			summary.Failed = append(summary.Failed, PassFailure{MessageID: candidate.MessageID, Err: err})
			continue
		}

		summary.Reminded = append(summary.Reminded, candidate.MessageID)
	}

	r.metrics.ObserveReminder(metrics.OutcomeSent, len(summary.Reminded))
	r.metrics.ObserveReminder(metrics.OutcomeFailed, len(summary.Failed))
	r.metrics.ObserveReminder(metrics.OutcomeSkippedTooSoon, len(summary.SkippedTooSoon))
	r.metrics.ObserveReminder(metrics.OutcomeSkippedExhausted, len(summary.SkippedExhausted))

	return summary, nil
}

// RecordReminder writes a ledger entry directly, for callers that deliver
// reminders through their own channel.
func (r *Reminder) RecordReminder(ctx context.Context, messageID int64, emailAddress string) (model.ReminderLogEntry, error) {
	if messageID <= 0 {
		return model.ReminderLogEntry{}, fmt.Errorf("%w: message id is required", model.ErrInvalidInput)
	}
	if emailAddress == "" {
		return model.ReminderLogEntry{}, fmt.Errorf("%w: email address is required", model.ErrInvalidInput)
	}

	entry, err := r.ledger.RecordSent(ctx, messageID, emailAddress)
	if err != nil {
		return model.ReminderLogEntry{}, fmt.Errorf("failed to record reminder: %w", err)
	}

	return entry, nil
}

// History returns the reminder log entry for one secret.
func (r *Reminder) History(ctx context.Context, messageID int64) (model.ReminderLogEntry, error) {
	return r.ledger.GetEntry(ctx, messageID)
}

func (r *Reminder) lookupEntry(ctx context.Context, messageID int64) (model.ReminderLogEntry, bool, error) {
	entry, err := r.ledger.GetEntry(ctx, messageID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ReminderLogEntry{}, false, nil
	}
	if err != nil {
		return model.ReminderLogEntry{}, false, fmt.Errorf("failed to load reminder history: %w", err)
	}
	return entry, true, nil
}
