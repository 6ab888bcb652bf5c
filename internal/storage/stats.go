package storage

import (
	"context"
	"errors"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/kv"
)

const monthLayout = "2006-01"

type Stats struct {
	TotalBookings   int              `json:"totalBookings"`
	TotalFavorites  int              `json:"totalFavorites"`
	LastBooking     *booking.Booking `json:"lastBooking"`
	BookingsByMonth map[string]int   `json:"bookingsByMonth"`
	BytesUsed       int              `json:"bytesUsed"`
	Size            string           `json:"size"`
}

func SizeLabel(n int) string {
	return fmt.Sprintf("%.2f KB", float64(n)/1024)
}

func (s *Storage) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.bookings(ctx)
	if err != nil {
		return Stats{}, err
	}
	favorites, err := s.favorites(ctx)
	if err != nil {
		return Stats{}, err
	}
	used, err := s.bytesUsed(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalBookings:   len(bookings),
		TotalFavorites:  len(favorites),
		BookingsByMonth: make(map[string]int),
		BytesUsed:       used,
		Size:            SizeLabel(used),
	}
	if n := len(bookings); n > 0 {
		last := bookings[n-1]
		stats.LastBooking = &last
	}
	for _, b := range bookings {
		stats.BookingsByMonth[b.CreatedAt.UTC().Format(monthLayout)]++
	}
	return stats, nil
}

// bytesUsed sums key and value lengths over the collection keys of the
// namespace. Keys of other namespaces sharing the prefix are not counted.
func (s *Storage) bytesUsed(ctx context.Context) (int, error) {
	total := 0
	for _, kind := range kinds {
		key := s.key(kind)
		value, err := s.backend.Get(ctx, key)
		if errors.Is(err, kv.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return 0, s.storageError("get", key, err)
		}
		total += len(key) + len(value)
	}
	return total, nil
}
