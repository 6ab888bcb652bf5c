package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_PreferencesDefaults(t *testing.T) {
	s, _ := newTestStorage(t)

	prefs, err := s.Preferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Preferences{"language": "es", "theme": "light", "notifications": true}, prefs)
}

func TestStorage_SavePreferencesMerges(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	saved, err := s.SavePreferences(ctx, Preferences{"theme": "dark"})
	require.NoError(t, err)
	assert.Equal(t, "dark", saved["theme"])
	assert.Equal(t, "es", saved["language"])
	assert.Equal(t, fixedTime.Format(time.RFC3339Nano), saved[LastUpdatedKey])

	_, err = s.SavePreferences(ctx, Preferences{"language": "en", "currency": "USD"})
	require.NoError(t, err)

	prefs, err := s.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", prefs["theme"])
	assert.Equal(t, "en", prefs["language"])
	assert.Equal(t, "USD", prefs["currency"])
	assert.Equal(t, true, prefs["notifications"])

	require.NoError(t, s.ClearPreferences(ctx))
	prefs, err = s.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferences(), prefs)
}

func TestStorage_PreferencesAreCopies(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	prefs, err := s.Preferences(ctx)
	require.NoError(t, err)
	prefs["theme"] = "neon"

	again, err := s.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "light", again["theme"])
}
