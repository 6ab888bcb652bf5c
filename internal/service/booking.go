//go:generate mockgen -source ./booking.go -destination=./mocks/booking.go -package=mock_service
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/events"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/storage"
)

type Store interface {
	SaveBooking(ctx context.Context, b booking.Booking) error
	FindBooking(ctx context.Context, id int64) (booking.Booking, error)
	UpdateBooking(ctx context.Context, id int64, patch storage.Patch) (booking.Booking, error)
	SetBookingStatus(ctx context.Context, id int64, status booking.Status) (booking.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, e events.BookingEvent) error
}

type BookingService struct {
	validator *booking.Validator
	store     Store
	events    EventPublisher
	log       *zap.Logger
	timeNow   func() time.Time
}

// NewBookingService wires validation, persistence and event publication.
// A nil publisher disables events.
func NewBookingService(v *booking.Validator, store Store, pub EventPublisher, log *zap.Logger) *BookingService {
	return &BookingService{
		validator: v,
		store:     store,
		events:    pub,
		log:       log.Named("booking_service"),
		timeNow:   time.Now,
	}
}

// Submit validates form and stores the resulting booking. Validation
// failures come back as booking.ValidationErrors and store nothing.
func (s *BookingService) Submit(ctx context.Context, form booking.Form) (booking.Booking, error) {
	b, err := s.validator.Validate(form)
	if err != nil {
		s.countViolations(err)
		return booking.Booking{}, err
	}

	if err := s.store.SaveBooking(ctx, b); err != nil {
		return booking.Booking{}, err
	}
	metrics.BookingsCreatedTotal.Inc()
	s.log.Info("booking created", zap.Int64("id", b.ID), zap.String("date", b.Date))

	s.publish(ctx, events.BookingCreated, b)
	return b, nil
}

func (s *BookingService) ValidateField(field booking.Field, value string) (string, error) {
	return s.validator.ValidateField(field, value)
}

func (s *BookingService) Confirm(ctx context.Context, id int64) (booking.Booking, error) {
	return s.changeStatus(ctx, id, booking.StatusConfirmed, events.BookingConfirmed)
}

func (s *BookingService) Cancel(ctx context.Context, id int64) (booking.Booking, error) {
	return s.changeStatus(ctx, id, booking.StatusCancelled, events.BookingCancelled)
}

func (s *BookingService) changeStatus(ctx context.Context, id int64, status booking.Status, t events.Type) (booking.Booking, error) {
	b, err := s.store.SetBookingStatus(ctx, id, status)
	if err != nil {
		return booking.Booking{}, err
	}
	metrics.BookingStatusChangesTotal.WithLabelValues(string(status)).Inc()

	s.publish(ctx, t, b)
	return b, nil
}

// Update applies patch to a stored booking. Patched form fields go through
// the same rules as a new booking and are stored normalized; a violation
// comes back as booking.ValidationErrors and nothing is written.
func (s *BookingService) Update(ctx context.Context, id int64, patch storage.Patch) (booking.Booking, error) {
	patch, err := s.checkPatch(patch)
	if err != nil {
		return booking.Booking{}, err
	}

	b, err := s.store.UpdateBooking(ctx, id, patch)
	if err != nil {
		return booking.Booking{}, err
	}
	s.publish(ctx, events.BookingUpdated, b)
	return b, nil
}

func (s *BookingService) checkPatch(patch storage.Patch) (storage.Patch, error) {
	values := make(map[booking.Field]string)
	for _, field := range booking.Fields() {
		raw, ok := patch[string(field)]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			values[field] = v
		case nil:
			values[field] = ""
		default:
			// the store rejects it as an invalid patch
		}
	}
	if len(values) == 0 {
		return patch, nil
	}

	normalized, err := s.validator.ValidateFields(values)
	if err != nil {
		s.countViolations(err)
		return nil, err
	}

	out := make(storage.Patch, len(patch))
	for name, value := range patch {
		out[name] = value
	}
	for field, value := range normalized {
		out[string(field)] = value
	}
	return out, nil
}

func (s *BookingService) countViolations(err error) {
	var verrs booking.ValidationErrors
	if !errors.As(err, &verrs) {
		return
	}
	for _, fe := range verrs {
		metrics.ValidationFailuresTotal.WithLabelValues(string(fe.Field)).Inc()
	}
	s.log.Info("booking rejected", zap.Int("violations", len(verrs)))
}

func (s *BookingService) Delete(ctx context.Context, id int64) error {
	b, err := s.store.FindBooking(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.BookingDeleted, b)
	return nil
}

type SummaryDetails struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	PartySize string `json:"partySize"`
	Contact   string `json:"contact"`
}

type Summary struct {
	Message string         `json:"message"`
	Details SummaryDetails `json:"details"`
}

func (s *BookingService) Summary(ctx context.Context, id int64) (Summary, error) {
	b, err := s.store.FindBooking(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(b), nil
}

func Summarize(b booking.Booking) Summary {
	return Summary{
		Message: b.Summary(),
		Details: SummaryDetails{
			ID:        b.ID,
			Date:      b.Date,
			PartySize: b.PartySize,
			Contact:   b.Email,
		},
	}
}

// publish never fails the caller; a lost event is logged and dropped.
func (s *BookingService) publish(ctx context.Context, t events.Type, b booking.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events.NewBookingEvent(t, b, s.timeNow())); err != nil {
		s.log.Warn("failed to publish booking event",
			zap.String("type", string(t)),
			zap.Int64("booking_id", b.ID),
			zap.Error(err),
		)
	}
}
