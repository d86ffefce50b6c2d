// Package amqp hands reminder deliveries to a message queue, leaving the
// actual email sending to a separate worker.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/burnbox/server/internal/model"
)

var _ model.Notifier = (*Publisher)(nil)

type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

type reminderMessage struct {
	MessageID      int64  `json:"message_id"`
	UniqueID       string `json:"unique_id"`
	RecipientEmail string `json:"recipient_email"`
	DaysOld        int    `json:"days_old"`
	ReminderNumber int    `json:"reminder_number"`
}

// NewPublisher connects to the broker and declares a durable queue.
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to message queue: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Publisher{
		conn:    conn,
		channel: channel,
		queue:   queue,
	}, nil
}

func (p *Publisher) Notify(ctx context.Context, reminder model.Reminder) error {
	body, err := json.Marshal(reminderMessage{
		MessageID:      reminder.MessageID,
		UniqueID:       reminder.UniqueID,
		RecipientEmail: reminder.RecipientEmail,
		DaysOld:        reminder.DaysOld,
		ReminderNumber: reminder.ReminderNumber,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reminder: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish reminder: %w", err)
	}

	return nil
}

func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
