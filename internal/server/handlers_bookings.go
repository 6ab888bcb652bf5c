package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/service"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/storage"
)

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var form booking.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := s.bookings.Submit(r.Context(), form)
	if err != nil {
		if respondValidation(w, err) {
			return
		}
		s.respondFailure(w, err, bookingFailureMessage)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Booking received",
		"booking": b,
		"summary": service.Summarize(b),
	})
}

// respondValidation answers 422 with the per-field messages when err
// carries validation errors.
func respondValidation(w http.ResponseWriter, err error) bool {
	var verrs booking.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"errors": verrs.ByField(),
	})
	return true
}

func (s *Server) handleValidateField(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field booking.Field `json:"field"`
		Value string        `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := s.bookings.ValidateField(req.Field, req.Value)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"field":   req.Field,
		"valid":   msg == "",
		"message": msg,
	})
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Bookings(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Could not load bookings")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid booking id")
		return
	}

	b, err := s.store.FindBooking(r.Context(), id)
	if err != nil {
		s.respondFailure(w, err, "Could not load the booking")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) handleBookingSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid booking id")
		return
	}

	summary, err := s.bookings.Summary(r.Context(), id)
	if err != nil {
		s.respondFailure(w, err, "Could not load the booking")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid booking id")
		return
	}

	var patch storage.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || patch == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := s.bookings.Update(r.Context(), id, patch)
	if err != nil {
		if respondValidation(w, err) {
			return
		}
		s.respondFailure(w, err, bookingFailureMessage)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid booking id")
		return
	}

	if err := s.bookings.Delete(r.Context(), id); err != nil {
		s.respondFailure(w, err, bookingFailureMessage)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Booking deleted",
	})
}

func (s *Server) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid booking id")
		return
	}

	b, err := s.bookings.Confirm(r.Context(), id)
	if err != nil {
		s.respondFailure(w, err, bookingFailureMessage)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid booking id")
		return
	}

	b, err := s.bookings.Cancel(r.Context(), id)
	if err != nil {
		s.respondFailure(w, err, bookingFailureMessage)
		return
	}
	respondJSON(w, http.StatusOK, b)
}
