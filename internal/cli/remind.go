package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/burnbox/server/internal/config"
	"github.com/burnbox/server/internal/logger"
	"github.com/burnbox/server/internal/model"
	"github.com/burnbox/server/internal/notify/amqp"
	"github.com/burnbox/server/internal/notify/smtp"
	"github.com/burnbox/server/internal/service"
)

func newRemindCommand() *cobra.Command {
	var every time.Duration

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send reminders for unviewed secrets",
		Long: `Scans for never-viewed secrets past the configured age, delivers a
reminder to each eligible recipient and records it in the ledger. Runs a
single pass by default; with --every it keeps running on an interval until
interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRemind(cmd, every)
		},
	}

	cmd.Flags().DurationVar(&every, "every", 0, "repeat passes on this interval instead of running once")

	return cmd
}

func runRemind(cmd *cobra.Command, every time.Duration) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	logger := logger.New(cfg.LogLevel)

	be, err := openBackend(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer be.store.Close()

	notifier, closeNotifier, err := openNotifier(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	defer closeNotifier()

	reminderService := service.NewReminder(be.store, be.ledger, notifier, logger, nil)

	policy := model.ReminderPolicy{
		OlderThan:    time.Duration(cfg.Reminder.OlderThanHours) * time.Hour,
		MaxReminders: cfg.Reminder.MaxReminders,
		Interval:     time.Duration(cfg.Reminder.IntervalHours) * time.Hour,
	}

	if err := runPass(ctx, reminderService, policy, logger); err != nil {
		return err
	}
	if every == 0 {
		return nil
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("received interruption signal, stopping")
			return nil
		case <-ticker.C:
			if err := runPass(ctx, reminderService, policy, logger); err != nil {
				logger.Error("reminder pass failed", "error", err)
			}
		}
	}
}

func runPass(ctx context.Context, reminders *service.Reminder, policy model.ReminderPolicy, logger *logger.Logger) error {
	summary, err := reminders.RunPass(ctx, policy)
	if err != nil {
		return fmt.Errorf("reminder pass failed: %w", err)
	}

	logger.Info("reminder pass complete",
		"candidates", summary.Candidates,
		"reminded", len(summary.Reminded),
		"skipped_too_soon", len(summary.SkippedTooSoon),
		"skipped_exhausted", len(summary.SkippedExhausted),
		"failed", len(summary.Failed),
	)
	for _, failure := range summary.Failed {
		logger.Error("reminder not delivered", "message_id", failure.MessageID, "error", failure.Err)
	}

	return nil
}

func openNotifier(cfg *config.Config) (model.Notifier, func() error, error) {
	switch cfg.Reminder.Notifier {
	case "smtp":
		sender := smtp.NewSender(smtp.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			LinkBase: cfg.SMTP.LinkBase,
		})
		return sender, func() error { return nil }, nil

	case "amqp":
		publisher, err := amqp.NewPublisher(cfg.Queue.URL, cfg.Queue.QueueName)
		if err != nil {
			return nil, nil, err
		}
		return publisher, publisher.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown notifier %q", cfg.Reminder.Notifier)
	}
}
