package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/metrics"
)

type FavoriteKind string

const (
	FavoriteTour FavoriteKind = "tour"
	FavoriteWine FavoriteKind = "wine"
)

// Favorite references a catalog item. Ids are unique across tours and wines,
// so the id alone identifies the entry.
type Favorite struct {
	ID      int64        `json:"id"`
	Kind    FavoriteKind `json:"kind"`
	Name    string       `json:"name"`
	AddedAt time.Time    `json:"addedAt"`
}

func (s *Storage) favorites(ctx context.Context) ([]Favorite, error) {
	list, err := read[[]Favorite](ctx, s, KindFavorites)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Favorite{}
	}
	return list, nil
}

func favoriteIndex(list []Favorite, id int64) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Storage) writeFavorites(ctx context.Context, list []Favorite) error {
	if err := s.write(ctx, KindFavorites, list); err != nil {
		return err
	}
	metrics.FavoritesItems.Set(float64(len(list)))
	return nil
}

// SaveFavorite adds f unless an entry with the same id exists, and returns
// the stored entry either way.
func (s *Storage) SaveFavorite(ctx context.Context, f Favorite) (Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveFavorite(ctx, f)
}

func (s *Storage) saveFavorite(ctx context.Context, f Favorite) (Favorite, error) {
	list, err := s.favorites(ctx)
	if err != nil {
		return Favorite{}, err
	}
	if i := favoriteIndex(list, f.ID); i >= 0 {
		return list[i], nil
	}

	f.AddedAt = s.timeNow().UTC()
	list = append(list, f)
	if err := s.writeFavorites(ctx, list); err != nil {
		return Favorite{}, fmt.Errorf("failed to save favorite %d: %w", f.ID, err)
	}
	s.log.Info("favorite added", zap.Int64("id", f.ID), zap.String("kind", string(f.Kind)))
	return f, nil
}

func (s *Storage) Favorites(ctx context.Context) ([]Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.favorites(ctx)
}

func (s *Storage) IsFavorite(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.favorites(ctx)
	if err != nil {
		return false, err
	}
	return favoriteIndex(list, id) >= 0, nil
}

func (s *Storage) DeleteFavorite(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteFavorite(ctx, id)
}

func (s *Storage) deleteFavorite(ctx context.Context, id int64) error {
	list, err := s.favorites(ctx)
	if err != nil {
		return err
	}
	i := favoriteIndex(list, id)
	if i < 0 {
		return fmt.Errorf("favorite %d: %w", id, ErrNotFound)
	}
	list = append(list[:i], list[i+1:]...)

	if err := s.writeFavorites(ctx, list); err != nil {
		return fmt.Errorf("failed to delete favorite %d: %w", id, err)
	}
	s.log.Info("favorite removed", zap.Int64("id", id))
	return nil
}

// ToggleFavorite removes f when present and adds it otherwise. It reports
// whether f is a favorite afterwards.
func (s *Storage) ToggleFavorite(ctx context.Context, f Favorite) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.favorites(ctx)
	if err != nil {
		return false, err
	}
	if favoriteIndex(list, f.ID) >= 0 {
		return false, s.deleteFavorite(ctx, f.ID)
	}
	if _, err := s.saveFavorite(ctx, f); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) ClearFavorites(ctx context.Context) error {
	return s.Clear(ctx, KindFavorites)
}
