package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// LastUpdatedKey is stamped into the preferences on every save.
const LastUpdatedKey = "lastUpdated"

// Preferences is a flat option to value mapping.
type Preferences map[string]interface{}

func DefaultPreferences() Preferences {
	return Preferences{
		"language":      "es",
		"theme":         "light",
		"notifications": true,
	}
}

func (p Preferences) clone() Preferences {
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// preferences returns the stored options, or the defaults when nothing
// usable is stored.
func (s *Storage) preferences(ctx context.Context) (Preferences, error) {
	prefs, err := read[Preferences](ctx, s, KindPreferences)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		return DefaultPreferences(), nil
	}
	return prefs, nil
}

func (s *Storage) Preferences(ctx context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.preferences(ctx)
}

// SavePreferences merges update over the current options, later values
// winning, and stamps lastUpdated. The first save merges over the defaults.
func (s *Storage) SavePreferences(ctx context.Context, update Preferences) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.preferences(ctx)
	if err != nil {
		return nil, err
	}

	merged := current.clone()
	for k, v := range update {
		merged[k] = v
	}
	merged[LastUpdatedKey] = s.timeNow().UTC().Format(time.RFC3339Nano)

	if err := s.write(ctx, KindPreferences, merged); err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	s.log.Info("preferences saved", zap.Int("options", len(update)))
	return merged, nil
}

func (s *Storage) ClearPreferences(ctx context.Context) error {
	return s.Clear(ctx, KindPreferences)
}
