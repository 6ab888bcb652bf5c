package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
)

// Patch is a set of top-level booking fields keyed by their JSON names.
type Patch map[string]interface{}

var protectedFields = map[string]struct{}{
	"id":        {},
	"createdAt": {},
	"status":    {},
}

func (s *Storage) bookings(ctx context.Context) ([]booking.Booking, error) {
	list, err := read[[]booking.Booking](ctx, s, KindBookings)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []booking.Booking{}
	}
	return list, nil
}

func indexOf(list []booking.Booking, id int64) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// SaveBooking appends b to the stored bookings.
func (s *Storage) SaveBooking(ctx context.Context, b booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.bookings(ctx)
	if err != nil {
		return err
	}
	list = append(list, b)

	if err := s.write(ctx, KindBookings, list); err != nil {
		return fmt.Errorf("failed to save booking %d: %w", b.ID, err)
	}
	s.log.Info("booking saved", zap.Int64("id", b.ID), zap.Int("total", len(list)))
	return nil
}

// Bookings returns every stored booking in insertion order.
func (s *Storage) Bookings(ctx context.Context) ([]booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bookings(ctx)
}

// LastBooking returns the most recently inserted booking. The flag is false
// when nothing is stored.
func (s *Storage) LastBooking(ctx context.Context) (booking.Booking, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.bookings(ctx)
	if err != nil || len(list) == 0 {
		return booking.Booking{}, false, err
	}
	return list[len(list)-1], true, nil
}

func (s *Storage) FindBooking(ctx context.Context, id int64) (booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.bookings(ctx)
	if err != nil {
		return booking.Booking{}, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return booking.Booking{}, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return list[i], nil
}

// UpdateBooking shallow-merges patch into the stored booking. Id, creation
// time and status cannot be patched and are silently kept.
func (s *Storage) UpdateBooking(ctx context.Context, id int64, patch Patch) (booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.bookings(ctx)
	if err != nil {
		return booking.Booking{}, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return booking.Booking{}, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}

	updated, err := merge(list[i], patch)
	if err != nil {
		return booking.Booking{}, err
	}
	list[i] = updated

	if err := s.write(ctx, KindBookings, list); err != nil {
		return booking.Booking{}, fmt.Errorf("failed to update booking %d: %w", id, err)
	}
	s.log.Info("booking updated", zap.Int64("id", id))
	return updated, nil
}

func merge(b booking.Booking, patch Patch) (booking.Booking, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return b, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return b, err
	}

	for name, value := range patch {
		if _, protected := protectedFields[name]; protected {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return b, fmt.Errorf("%w: field %q: %v", ErrInvalidPatch, name, err)
		}
		fields[name] = encoded
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return b, err
	}
	var out booking.Booking
	if err := json.Unmarshal(merged, &out); err != nil {
		return b, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	out.ID, out.CreatedAt, out.Status = b.ID, b.CreatedAt, b.Status
	return out, nil
}

// SetBookingStatus moves a booking to status if the transition is allowed.
func (s *Storage) SetBookingStatus(ctx context.Context, id int64, status booking.Status) (booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.bookings(ctx)
	if err != nil {
		return booking.Booking{}, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return booking.Booking{}, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}

	updated, err := list[i].WithStatus(status)
	if err != nil {
		return booking.Booking{}, err
	}
	list[i] = updated

	if err := s.write(ctx, KindBookings, list); err != nil {
		return booking.Booking{}, fmt.Errorf("failed to update booking %d: %w", id, err)
	}
	s.log.Info("booking status changed",
		zap.Int64("id", id),
		zap.String("status", string(status)),
	)
	return updated, nil
}

func (s *Storage) DeleteBooking(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.bookings(ctx)
	if err != nil {
		return err
	}
	i := indexOf(list, id)
	if i < 0 {
		return fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	list = append(list[:i], list[i+1:]...)

	if err := s.write(ctx, KindBookings, list); err != nil {
		return fmt.Errorf("failed to delete booking %d: %w", id, err)
	}
	s.log.Info("booking deleted", zap.Int64("id", id))
	return nil
}

func (s *Storage) ClearBookings(ctx context.Context) error {
	return s.Clear(ctx, KindBookings)
}
