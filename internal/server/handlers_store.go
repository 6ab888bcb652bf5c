package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/storage"
)

const maxImportBytes = 5 << 20

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Favorites(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Could not load favorites")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := s.catalog.Find(req.ID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	favorite, err := s.store.ToggleFavorite(r.Context(), storage.Favorite{
		ID:   item.ID,
		Kind: storage.FavoriteKind(item.Kind),
		Name: item.Name,
	})
	if err != nil {
		s.respondFailure(w, err, "Could not update favorites")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":       item.ID,
		"favorite": favorite,
	})
}

func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid favorite id")
		return
	}

	if err := s.store.DeleteFavorite(r.Context(), id); err != nil {
		s.respondFailure(w, err, "Could not update favorites")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Favorite removed",
	})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.Preferences(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Could not load preferences")
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var update storage.Preferences
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil || update == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	prefs, err := s.store.SavePreferences(r.Context(), update)
	if err != nil {
		s.respondFailure(w, err, "Could not save preferences")
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Could not compute statistics")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.store.Available(r.Context()) {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Export(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Could not export data")
		return
	}

	filename := fmt.Sprintf("winetour-export-%s.json", s.timeNow().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	kinds, err := s.store.Import(r.Context(), data)
	if err != nil {
		s.respondFailure(w, err, "Could not import data")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"imported": kinds,
	})
}

// handleClearData removes one collection when ?kind= is given and the whole
// namespace otherwise.
func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	var err error
	if kind := r.URL.Query().Get("kind"); kind != "" {
		err = s.store.Clear(r.Context(), storage.Kind(kind))
	} else {
		err = s.store.ClearAll(r.Context())
	}
	if err != nil {
		s.respondFailure(w, err, "Could not clear data")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Data cleared",
	})
}
