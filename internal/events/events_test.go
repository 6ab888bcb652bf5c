package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
	mock_kafka "gitlab.ozon.dev/pupkingeorgij/winetour/internal/kafka/mocks"
)

func TestNewBookingEvent(t *testing.T) {
	at := time.Date(2025, 1, 15, 9, 0, 0, 0, time.FixedZone("ART", -3*3600))
	b := booking.Booking{ID: 42, Name: "John", PartySize: "2", Date: "2025-02-01", Status: booking.StatusPending}

	e := NewBookingEvent(BookingCreated, b, at)

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, BookingCreated, e.Type)
	assert.Equal(t, int64(42), e.BookingID)
	assert.Equal(t, booking.StatusPending, e.Status)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
	assert.Equal(t, []byte("42"), e.Key())
}

func TestPublisher_Publish(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	producer := mock_kafka.NewMockProducer(ctrl)
	p := NewPublisher(producer, "booking_events", zap.NewNop())
	ctx := context.Background()

	e := NewBookingEvent(BookingConfirmed, booking.Booking{ID: 7, Status: booking.StatusConfirmed}, time.Now())

	producer.EXPECT().
		SendMessage(ctx, "booking_events", []byte("7"), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ []byte, value []byte) error {
			decoded, err := Decode(value)
			require.NoError(t, err)
			assert.Equal(t, e.ID, decoded.ID)
			assert.Equal(t, BookingConfirmed, decoded.Type)
			return nil
		})
	require.NoError(t, p.Publish(ctx, e))

	boom := errors.New("broker down")
	producer.EXPECT().SendMessage(ctx, "booking_events", gomock.Any(), gomock.Any()).Return(boom)
	assert.ErrorIs(t, p.Publish(ctx, e), boom)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("nope"))
	assert.Error(t, err)
}
