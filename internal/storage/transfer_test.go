package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
)

func TestStorage_ExportImportRoundTrip(t *testing.T) {
	src, _ := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, src.SaveBooking(ctx, sampleBooking(1)))
	_, err := src.SaveFavorite(ctx, Favorite{ID: 2, Kind: FavoriteTour, Name: "Premium"})
	require.NoError(t, err)
	_, err = src.SavePreferences(ctx, Preferences{"theme": "dark"})
	require.NoError(t, err)

	data, err := src.Export(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"bookings\"")

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, fixedTime, snap.ExportedAt)

	dst, _ := newTestStorage(t)
	kinds, err := dst.Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindBookings, KindFavorites, KindPreferences}, kinds)

	bookings, err := dst.Bookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, bookingIDs(bookings))

	favorites, err := dst.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "Premium", favorites[0].Name)

	prefs, err := dst.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", prefs["theme"])
}

func TestStorage_ImportOnlyPresentSections(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBooking(ctx, sampleBooking(1)))
	_, err := s.SaveFavorite(ctx, Favorite{ID: 3, Kind: FavoriteTour})
	require.NoError(t, err)

	kinds, err := s.Import(ctx, []byte(`{"favorites": [], "preferences": null}`))
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindFavorites}, kinds)

	bookings, err := s.Bookings(ctx)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	favorites, err := s.Favorites(ctx)
	require.NoError(t, err)
	assert.Empty(t, favorites)

	prefs, err := s.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferences(), prefs)
}

func TestStorage_ImportRejectsMalformedDocument(t *testing.T) {
	s, backend := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBooking(ctx, sampleBooking(1)))
	before, err := backend.Get(ctx, "mendoza_wine_bookings")
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"bookings":`},
		{"wrong bookings type", `{"bookings": {"id": 1}}`},
		{"bad favorites after good bookings", `{"bookings": [], "favorites": "nope"}`},
		{"bad preferences", `{"preferences": [1, 2]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Import(ctx, []byte(tc.doc))
			assert.True(t, errors.Is(err, ErrInvalidImport))

			after, err := backend.Get(ctx, "mendoza_wine_bookings")
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func bookingIDs(list []booking.Booking) []int64 {
	out := make([]int64, 0, len(list))
	for _, b := range list {
		out = append(out, b.ID)
	}
	return out
}
