package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/kafka"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingUpdated   Type = "booking.updated"
	BookingConfirmed Type = "booking.confirmed"
	BookingCancelled Type = "booking.cancelled"
	BookingDeleted   Type = "booking.deleted"
)

type BookingEvent struct {
	ID         uuid.UUID      `json:"id"`
	Type       Type           `json:"type"`
	BookingID  int64          `json:"bookingId"`
	Status     booking.Status `json:"status"`
	Summary    string         `json:"summary,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

func NewBookingEvent(t Type, b booking.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		ID:         uuid.New(),
		Type:       t,
		BookingID:  b.ID,
		Status:     b.Status,
		Summary:    b.Summary(),
		OccurredAt: at.UTC(),
	}
}

// Key partitions events by booking so one booking's events stay ordered.
func (e BookingEvent) Key() []byte {
	return []byte(strconv.FormatInt(e.BookingID, 10))
}

func Decode(data []byte) (BookingEvent, error) {
	var e BookingEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return BookingEvent{}, fmt.Errorf("failed to decode booking event: %w", err)
	}
	return e, nil
}

type Publisher struct {
	producer kafka.Producer
	topic    string
	log      *zap.Logger
}

func NewPublisher(producer kafka.Producer, topic string, log *zap.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		log:      log.Named("events"),
	}
}

func (p *Publisher) Publish(ctx context.Context, e BookingEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode booking event: %w", err)
	}
	if err := p.producer.SendMessage(ctx, p.topic, e.Key(), value); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	p.log.Debug("event published",
		zap.String("type", string(e.Type)),
		zap.Int64("booking_id", e.BookingID),
		zap.Stringer("event_id", e.ID),
	)
	return nil
}
