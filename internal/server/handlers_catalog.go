package server

import (
	"math"
	"net/http"
	"strconv"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/catalog"
)

func (s *Server) handleListTours(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tours := s.catalog.Tours()

	if q.Has("minPrice") || q.Has("maxPrice") {
		lo, errLo := queryInt(q.Get("minPrice"), 0)
		hi, errHi := queryInt(q.Get("maxPrice"), math.MaxInt)
		if errLo != nil || errHi != nil {
			respondError(w, http.StatusBadRequest, "Invalid price range")
			return
		}
		tours = s.catalog.ToursByPrice(lo, hi)
	}
	if service := q.Get("service"); service != "" {
		matching := make(map[int64]struct{})
		for _, t := range s.catalog.ToursWithService(service) {
			matching[t.ID] = struct{}{}
		}
		filtered := tours[:0]
		for _, t := range tours {
			if _, ok := matching[t.ID]; ok {
				filtered = append(filtered, t)
			}
		}
		tours = filtered
	}
	if tours == nil {
		tours = []catalog.Tour{}
	}

	respondJSON(w, http.StatusOK, tours)
}

func queryInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) handleGetTour(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid tour id")
		return
	}
	tour, err := s.catalog.FindTour(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tour":           tour,
		"formattedPrice": tour.FormattedPrice(),
		"details":        tour.Details(),
	})
}

func (s *Server) handleListWines(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Wines())
}

func (s *Server) handleGetWine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid wine id")
		return
	}
	wine, err := s.catalog.FindWine(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"wine":    wine,
		"summary": wine.Summary(),
	})
}

func (s *Server) handleCatalogStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Stats())
}
