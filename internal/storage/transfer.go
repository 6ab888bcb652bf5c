package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
)

var ErrInvalidImport = errors.New("invalid import document")

// Snapshot is the export format of a namespace.
type Snapshot struct {
	Bookings    []booking.Booking `json:"bookings"`
	Favorites   []Favorite        `json:"favorites"`
	Preferences Preferences       `json:"preferences"`
	ExportedAt  time.Time         `json:"exportedAt"`
}

// Export renders every collection as one indented JSON document.
func (s *Storage) Export(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.bookings(ctx)
	if err != nil {
		return nil, err
	}
	favorites, err := s.favorites(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := s.preferences(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(Snapshot{
		Bookings:    bookings,
		Favorites:   favorites,
		Preferences: prefs,
		ExportedAt:  s.timeNow().UTC(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

type importDocument struct {
	Bookings    json.RawMessage `json:"bookings"`
	Favorites   json.RawMessage `json:"favorites"`
	Preferences json.RawMessage `json:"preferences"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Import overwrites the collections present in data and leaves the others
// alone. Every section is decoded before the first write, so a malformed
// document changes nothing. It returns the kinds that were written.
func (s *Storage) Import(ctx context.Context, data []byte) ([]Kind, error) {
	var doc importDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	type section struct {
		kind  Kind
		value interface{}
	}
	var sections []section

	if present(doc.Bookings) {
		var list []booking.Booking
		if err := json.Unmarshal(doc.Bookings, &list); err != nil {
			return nil, fmt.Errorf("%w: bookings: %v", ErrInvalidImport, err)
		}
		sections = append(sections, section{KindBookings, list})
	}
	if present(doc.Favorites) {
		var list []Favorite
		if err := json.Unmarshal(doc.Favorites, &list); err != nil {
			return nil, fmt.Errorf("%w: favorites: %v", ErrInvalidImport, err)
		}
		sections = append(sections, section{KindFavorites, list})
	}
	if present(doc.Preferences) {
		var prefs Preferences
		if err := json.Unmarshal(doc.Preferences, &prefs); err != nil {
			return nil, fmt.Errorf("%w: preferences: %v", ErrInvalidImport, err)
		}
		sections = append(sections, section{KindPreferences, prefs})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imported := make([]Kind, 0, len(sections))
	for _, sec := range sections {
		if err := s.write(ctx, sec.kind, sec.value); err != nil {
			return imported, fmt.Errorf("failed to import %s: %w", sec.kind, err)
		}
		imported = append(imported, sec.kind)
	}

	s.log.Info("data imported", zap.Int("sections", len(imported)))
	return imported, nil
}
