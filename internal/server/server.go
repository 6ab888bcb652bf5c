package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/catalog"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/service"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/storage"
)

const (
	routeListTours      = "listTours"
	routeGetTour        = "getTour"
	routeListWines      = "listWines"
	routeGetWine        = "getWine"
	routeCatalogStats   = "catalogStats"
	routeCreateBooking  = "createBooking"
	routeValidateField  = "validateBookingField"
	routeListBookings   = "listBookings"
	routeGetBooking     = "getBooking"
	routeBookingSummary = "bookingSummary"
	routeUpdateBooking  = "updateBooking"
	routeDeleteBooking  = "deleteBooking"
	routeConfirmBooking = "confirmBooking"
	routeCancelBooking  = "cancelBooking"
	routeListFavorites  = "listFavorites"
	routeToggleFavorite = "toggleFavorite"
	routeDeleteFavorite = "deleteFavorite"
	routeGetPreferences = "getPreferences"
	routeSetPreferences = "savePreferences"
	routeStats          = "stats"
	routeHealth         = "health"
	routeExport         = "export"
	routeImport         = "import"
	routeClearData      = "clearData"
	routeMetrics        = "metrics"
)

// bookingFailureMessage is the only detail a client gets when a booking
// could not be stored.
const bookingFailureMessage = "Could not process the booking. Please try again."

type Bookings interface {
	Submit(ctx context.Context, form booking.Form) (booking.Booking, error)
	ValidateField(field booking.Field, value string) (string, error)
	Confirm(ctx context.Context, id int64) (booking.Booking, error)
	Cancel(ctx context.Context, id int64) (booking.Booking, error)
	Update(ctx context.Context, id int64, patch storage.Patch) (booking.Booking, error)
	Delete(ctx context.Context, id int64) error
	Summary(ctx context.Context, id int64) (service.Summary, error)
}

type Store interface {
	Bookings(ctx context.Context) ([]booking.Booking, error)
	FindBooking(ctx context.Context, id int64) (booking.Booking, error)
	Favorites(ctx context.Context) ([]storage.Favorite, error)
	ToggleFavorite(ctx context.Context, f storage.Favorite) (bool, error)
	DeleteFavorite(ctx context.Context, id int64) error
	Preferences(ctx context.Context) (storage.Preferences, error)
	SavePreferences(ctx context.Context, update storage.Preferences) (storage.Preferences, error)
	Stats(ctx context.Context) (storage.Stats, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) ([]storage.Kind, error)
	Clear(ctx context.Context, kind storage.Kind) error
	ClearAll(ctx context.Context) error
	Available(ctx context.Context) bool
}

type Server struct {
	catalog  *catalog.Catalog
	bookings Bookings
	store    Store
	audit    *AuditManager
	admin    Credentials
	log      *zap.Logger
	server   *http.Server
	timeNow  func() time.Time
}

func New(cat *catalog.Catalog, bookings Bookings, store Store, audit *AuditManager, admin Credentials, log *zap.Logger) *Server {
	return &Server{
		catalog:  cat,
		bookings: bookings,
		store:    store,
		audit:    audit,
		admin:    admin,
		log:      log.Named("http"),
		timeNow:  time.Now,
	}
}

// Run serves on addr until Shutdown is called. The audit manager follows
// ctx.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	s.audit.Start(ctx)

	s.log.Info("http server starting", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.audit.Shutdown(ctx)
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.auditLogMiddleware)

	r.HandleFunc("/tours", s.handleListTours).Methods(http.MethodGet).Name(routeListTours)
	r.HandleFunc("/tours/{id:[0-9]+}", s.handleGetTour).Methods(http.MethodGet).Name(routeGetTour)
	r.HandleFunc("/wines", s.handleListWines).Methods(http.MethodGet).Name(routeListWines)
	r.HandleFunc("/wines/{id:[0-9]+}", s.handleGetWine).Methods(http.MethodGet).Name(routeGetWine)
	r.HandleFunc("/catalog/stats", s.handleCatalogStats).Methods(http.MethodGet).Name(routeCatalogStats)

	r.HandleFunc("/bookings", s.handleCreateBooking).Methods(http.MethodPost).Name(routeCreateBooking)
	r.HandleFunc("/bookings/validate", s.handleValidateField).Methods(http.MethodPost).Name(routeValidateField)
	r.HandleFunc("/bookings", s.handleListBookings).Methods(http.MethodGet).Name(routeListBookings)
	r.HandleFunc("/bookings/{id:[0-9]+}", s.handleGetBooking).Methods(http.MethodGet).Name(routeGetBooking)
	r.HandleFunc("/bookings/{id:[0-9]+}/summary", s.handleBookingSummary).Methods(http.MethodGet).Name(routeBookingSummary)
	r.HandleFunc("/bookings/{id:[0-9]+}", s.handleUpdateBooking).Methods(http.MethodPatch).Name(routeUpdateBooking)
	r.HandleFunc("/bookings/{id:[0-9]+}", s.handleDeleteBooking).Methods(http.MethodDelete).Name(routeDeleteBooking)
	r.HandleFunc("/bookings/{id:[0-9]+}/confirm", s.handleConfirmBooking).Methods(http.MethodPost).Name(routeConfirmBooking)
	r.HandleFunc("/bookings/{id:[0-9]+}/cancel", s.handleCancelBooking).Methods(http.MethodPost).Name(routeCancelBooking)

	r.HandleFunc("/favorites", s.handleListFavorites).Methods(http.MethodGet).Name(routeListFavorites)
	r.HandleFunc("/favorites/toggle", s.handleToggleFavorite).Methods(http.MethodPost).Name(routeToggleFavorite)
	r.HandleFunc("/favorites/{id:[0-9]+}", s.handleDeleteFavorite).Methods(http.MethodDelete).Name(routeDeleteFavorite)

	r.HandleFunc("/preferences", s.handleGetPreferences).Methods(http.MethodGet).Name(routeGetPreferences)
	r.HandleFunc("/preferences", s.handleSavePreferences).Methods(http.MethodPut).Name(routeSetPreferences)

	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet).Name(routeStats)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet).Name(routeHealth)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name(routeMetrics)

	admin := r.NewRoute().Subrouter()
	admin.Use(s.basicAuthMiddleware)
	admin.HandleFunc("/export", s.handleExport).Methods(http.MethodGet).Name(routeExport)
	admin.HandleFunc("/import", s.handleImport).Methods(http.MethodPost).Name(routeImport)
	admin.HandleFunc("/data", s.handleClearData).Methods(http.MethodDelete).Name(routeClearData)

	return r
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps domain errors to status codes. Storage faults are
// logged here and reported without detail.
func (s *Server) respondFailure(w http.ResponseWriter, err error, storageMessage string) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrInvalidPatch),
		errors.Is(err, storage.ErrInvalidImport),
		errors.Is(err, storage.ErrUnknownKind):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, storageMessage)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
