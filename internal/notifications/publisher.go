package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel fired notifications are published on
const DefaultChannel = "reminders:notifications"

// Notification is a fired reminder, ready for delivery to the user's devices
type Notification struct {
	ReminderID   uuid.UUID `json:"reminder_id"`
	UserID       uuid.UUID `json:"user_id"`
	SlotID       string    `json:"slot_id,omitempty"`
	Title        string    `json:"title"`
	Body         string    `json:"body,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
	FiredAt      time.Time `json:"fired_at"`
}

// NewNotification builds the notification for a reminder firing at now. An
// empty slotID means the single-time reminder itself fired.
func NewNotification(r *models.Reminder, slot *models.TimeSlot, now time.Time) Notification {
	n := Notification{
		ReminderID:   r.ID,
		UserID:       r.UserID,
		Title:        r.Title,
		Body:         r.Description,
		ScheduledFor: r.ScheduledTime,
		FiredAt:      now,
	}
	if slot != nil {
		n.SlotID = slot.ID
		n.ScheduledFor = slot.DateTimeOn(now)
		if slot.Description != nil && *slot.Description != "" {
			n.Body = *slot.Description
		}
	}
	return n
}

// Publisher delivers fired notifications
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, n Notification) error

// Publish calls f
func (f PublisherFunc) Publish(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// RedisPublisher publishes notifications as JSON on a Redis pub/sub channel
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher creates a publisher on channel, or DefaultChannel when empty
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends n to the channel
func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Channel returns the channel notifications go to
func (p *RedisPublisher) Channel() string {
	return p.channel
}

var _ Publisher = (*RedisPublisher)(nil)
