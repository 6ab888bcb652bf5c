package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/catalog"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/kafka"
	mock_kafka "gitlab.ozon.dev/pupkingeorgij/winetour/internal/kafka/mocks"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/kv"
	mock_kv "gitlab.ozon.dev/pupkingeorgij/winetour/internal/kv/mocks"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/service"
	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/storage"
)

var fixedNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

const adminPassword = "s3cret"

type testEnv struct {
	handler http.Handler
	store   *storage.Storage
	server  *Server
}

func newTestEnv(t *testing.T, backend kv.Backend, producer kafka.Producer) *testEnv {
	t.Helper()

	log := zap.NewNop()
	if producer == nil {
		producer = kafka.NewConsoleProducer(log)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	store := storage.New(backend, storage.WithClock(func() time.Time { return fixedNow }))
	validator := booking.NewValidator(func() time.Time { return fixedNow }, nil)
	bookings := service.NewBookingService(validator, store, nil, log)

	audit := NewAuditManager(AuditConfig{Workers: 1, BatchSize: 1, Timeout: 10 * time.Millisecond, Topic: "audit_logs"}, producer, log)
	ctx, cancel := context.WithCancel(context.Background())
	audit.Start(ctx)
	t.Cleanup(func() {
		cancel()
		audit.Shutdown(context.Background())
	})

	srv := New(catalog.Default(), bookings, store, audit, Credentials{User: "admin", PasswordHash: string(hash)}, log)
	srv.timeNow = func() time.Time { return fixedNow }

	return &testEnv{handler: srv.Router(), store: store, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, auth bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.SetBasicAuth("admin", adminPassword)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func validForm() map[string]string {
	return map[string]string{
		"name":      "John",
		"email":     "john@example.com",
		"phone":     "1234 5678",
		"partySize": "4",
		"date":      "2025-02-01",
	}
}

func createBooking(t *testing.T, env *testEnv) booking.Booking {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/bookings", validForm(), false)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	resp := decode[struct {
		Booking booking.Booking `json:"booking"`
	}](t, rr)
	return resp.Booking
}

func TestHandleCreateBooking(t *testing.T) {
	tests := []struct {
		name           string
		mutate         func(form map[string]string)
		expectedStatus int
		expectedErrors map[string]string
	}{
		{
			name:           "valid booking",
			mutate:         func(map[string]string) {},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "short name",
			mutate:         func(f map[string]string) { f["name"] = "Jo" },
			expectedStatus: http.StatusUnprocessableEntity,
			expectedErrors: map[string]string{"name": "Name must be at least 3 characters"},
		},
		{
			name:           "yesterday",
			mutate:         func(f map[string]string) { f["date"] = "2025-01-14" },
			expectedStatus: http.StatusUnprocessableEntity,
			expectedErrors: map[string]string{"date": "Select a valid date (today or later)"},
		},
		{
			name: "several fields",
			mutate: func(f map[string]string) {
				f["email"] = "nope"
				f["phone"] = "123"
				f["partySize"] = ""
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedErrors: map[string]string{
				"email":     "Enter a valid email address",
				"phone":     "Enter a valid phone number (8-15 digits)",
				"partySize": "Select the number of people",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, kv.NewMemoryBackend(0), nil)
			form := validForm()
			tc.mutate(form)

			rr := env.do(t, http.MethodPost, "/bookings", form, false)
			assert.Equal(t, tc.expectedStatus, rr.Code, rr.Body.String())

			stored, err := env.store.Bookings(context.Background())
			require.NoError(t, err)

			if tc.expectedErrors != nil {
				resp := decode[struct {
					Errors map[string]string `json:"errors"`
				}](t, rr)
				assert.Equal(t, tc.expectedErrors, resp.Errors)
				assert.Empty(t, stored)
				return
			}

			resp := decode[struct {
				Booking booking.Booking `json:"booking"`
				Summary service.Summary `json:"summary"`
			}](t, rr)
			assert.Equal(t, "12345678", resp.Booking.Phone)
			assert.Equal(t, booking.StatusPending, resp.Booking.Status)
			assert.Equal(t, "Booking for John, 4 people on February 1, 2025", resp.Summary.Message)
			require.Len(t, stored, 1)
			assert.Equal(t, resp.Booking.ID, stored[0].ID)
		})
	}
}

func TestHandleCreateBooking_BadBody(t *testing.T) {
	env := newTestEnv(t, kv.NewMemoryBackend(0), nil)

	rr := env.do(t, http.MethodPost, "/bookings", "{not json", false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleCreateBooking_StorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := mock_kv.NewMockBackend(ctrl)
	backend.EXPECT().Get(gomock.Any(), "mendoza_wine_bookings").Return("[]", nil)
	backend.EXPECT().Set(gomock.Any(), "mendoza_wine_bookings", gomock.Any()).Return(kv.ErrQuotaExceeded)

	env := newTestEnv(t, backend, nil)

	rr := env.do(t, http.MethodPost, "/bookings", validForm(), false)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Could not process the booking. Please try again."}`, rr.Body.String())
}

func TestHandleValidateField(t *testing.T) {
	env := newTestEnv(t, kv.NewMemoryBackend(0), nil)

	rr := env.do(t, http.MethodPost, "/bookings/validate", map[string]string{"field": "name", "value": "Jo"}, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"field":"name","valid":false,"message":"Name must be at least 3 characters"}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/bookings/validate", map[string]string{"field": "name", "value": "John"}, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"field":"name","valid":true,"message":""}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/bookings/validate", map[string]string{"field": "nickname", "value": "x"}, false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBookingLifecycle(t *testing.T) {
	env := newTestEnv(t, kv.NewMemoryBackend(0), nil)
	b := createBooking(t, env)
	path := "/bookings/" + itoa(b.ID)

	rr := env.do(t, http.MethodGet, path, nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, b.ID, decode[booking.Booking](t, rr).ID)

	rr = env.do(t, http.MethodGet, path+"/summary", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "john@example.com", decode[service.Summary](t, rr).Details.Contact)

	rr = env.do(t, http.MethodPatch, path, map[string]interface{}{"message": "late lunch", "status": "confirmed"}, false)
	require.Equal(t, http.StatusOK, rr.Code)
	patched := decode[booking.Booking](t, rr)
	assert.Equal(t, "late lunch", patched.Message)
	assert.Equal(t, booking.StatusPending, patched.Status)

	rr = env.do(t, http.MethodPatch, path, map[string]interface{}{"name": 5}, false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPatch, path, map[string]interface{}{"email": "not an email", "date": "1999-01-01"}, false)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.JSONEq(t, `{"errors":{"email":"Enter a valid email address","date":"Select a valid date (today or later)"}}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, path+"/confirm", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, booking.StatusConfirmed, decode[booking.Booking](t, rr).Status)

	rr = env.do(t, http.MethodPost, path+"/confirm", nil, false)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, path+"/cancel", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, booking.StatusCancelled, decode[booking.Booking](t, rr).Status)

	rr = env.do(t, http.MethodGet, "/bookings", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]booking.Booking](t, rr), 1)

	rr = env.do(t, http.MethodDelete, path, nil, false)
	require.Equal(t, http.StatusOK, rr.Code)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, path},
		{http.MethodDelete, path},
		{http.MethodPost, path + "/confirm"},
		{http.MethodPatch, path},
	} {
		rr = env.do(t, req.method, req.path, map[string]string{"name": "Nobody"}, false)
		assert.Equal(t, http.StatusNotFound, rr.Code, req.method+" "+req.path)
	}
}

func TestFavorites(t *testing.T) {
	env := newTestEnv(t, kv.NewMemoryBackend(0), nil)

	rr := env.do(t, http.MethodPost, "/favorites/toggle", map[string]int64{"id": 101}, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":101,"favorite":true}`, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/favorites", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	favorites := decode[[]storage.Favorite](t, rr)
	require.Len(t, favorites, 1)
	assert.Equal(t, storage.FavoriteWine, favorites[0].Kind)
	assert.Equal(t, "Malbec Premium", favorites[0].Name)

	rr = env.do(t, http.MethodPost, "/favorites/toggle", map[string]int64{"id": 101}, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":101,"favorite":false}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/favorites/toggle", map[string]int64{"id": 999}, false)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodDelete, "/favorites/101", nil, false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPreferences(t *testing.T) {
	env := newTestEnv(t, kv.NewMemoryBackend(0), nil)

	rr := env.do(t, http.MethodGet, "/preferences", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"language":"es","theme":"light","notifications":true}`, rr.Body.String())

	rr = env.do(t, http.MethodPut, "/preferences", map[string]string{"theme": "dark"}, false)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/preferences", nil, false)
	prefs := decode[map[string]interface{}](t, rr)
	assert.Equal(t, "dark", prefs["theme"])
	assert.Equal(t, "es", prefs["language"])
	assert.NotEmpty(t, prefs["lastUpdated"])

	rr = env.do(t, http.MethodPut, "/preferences", "[1,2]", false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsAndHealth(t *testing.T) {
	env := newTestEnv(t, kv.NewMemoryBackend(0), nil)
	createBooking(t, env)

	rr := env.do(t, http.MethodGet, "/stats", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[storage.Stats](t, rr)
	assert.Equal(t, 1, stats.TotalBookings)
	assert.NotNil(t, stats.LastBooking)
	assert.Positive(t, stats.BytesUsed)

	rr = env.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCatalogRoutes(t *testing.T) {
	env := newTestEnv(t, kv.NewMemoryBackend(0), nil)

	rr := env.do(t, http.MethodGet, "/tours", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]catalog.Tour](t, rr), 3)

	rr = env.do(t, http.MethodGet, "/tours?maxPrice=250&service=sommelier", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	tours := decode[[]catalog.Tour](t, rr)
	require.Len(t, tours, 1)
	assert.Equal(t, int64(2), tours[0].ID)

	rr = env.do(t, http.MethodGet, "/tours?minPrice=1000", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())

	rr = env.do(t, http.MethodGet, "/tours?minPrice=cheap", nil, false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/tours/1", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"formattedPrice":"USD $100"`)

	rr = env.do(t, http.MethodGet, "/tours/101", nil, false)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/wines/102", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/catalog/stats", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 3, decode[catalog.Stats](t, rr).TotalWines)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, kv.NewMemoryBackend(0), nil)
	createBooking(t, env)

	rr := env.do(t, http.MethodGet, "/export", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))

	rr = env.do(t, http.MethodGet, "/export", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="winetour-export-2025-01-15.json"`, rr.Header().Get("Content-Disposition"))
	exported := rr.Body.String()
	assert.Contains(t, exported, `"exportedAt"`)

	rr = env.do(t, http.MethodDelete, "/data?kind=bookings", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	list, err := env.store.Bookings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	rr = env.do(t, http.MethodPost, "/import", exported, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"imported":["bookings","favorites","preferences"]}`, rr.Body.String())
	list, err = env.store.Bookings(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	rr = env.do(t, http.MethodPost, "/import", `{"bookings": 5}`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodDelete, "/data?kind=orders", nil, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodDelete, "/data", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	stats, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.BytesUsed)
}

func TestAdminRoutes_LockedWithoutHash(t *testing.T) {
	env := newTestEnv(t, kv.NewMemoryBackend(0), nil)
	env.server.admin = Credentials{User: "admin"}
	env.handler = env.server.Router()

	rr := env.do(t, http.MethodGet, "/export", nil, true)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuditMiddleware_RecordsStatusChange(t *testing.T) {
	// the controller cleanup runs after the audit manager has drained
	ctrl := gomock.NewController(t)

	var (
		mu      sync.Mutex
		entries []AuditLogEntry
	)
	producer := mock_kafka.NewMockProducer(ctrl)
	producer.EXPECT().
		SendMessage(gomock.Any(), "audit_logs", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ []byte, value []byte) error {
			var entry AuditLogEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return err
			}
			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
			return nil
		}).
		AnyTimes()

	env := newTestEnv(t, kv.NewMemoryBackend(0), producer)
	b := createBooking(t, env)

	rr := env.do(t, http.MethodPost, "/bookings/"+itoa(b.ID)+"/confirm", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)

	var confirm AuditLogEntry
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range entries {
			if e.Handler == routeConfirmBooking {
				confirm = e
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, itoa(b.ID), confirm.BookingID)
	assert.Equal(t, "pending", confirm.OldStatus)
	assert.Equal(t, "confirmed", confirm.NewStatus)
	assert.Equal(t, http.StatusOK, confirm.StatusCode)
}

func TestAuditManager_ShipFailureIsLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	shipped := make(chan struct{}, 1)
	producer := mock_kafka.NewMockProducer(ctrl)
	producer.EXPECT().
		SendMessage(gomock.Any(), "audit_logs", []byte("createBooking"), gomock.Any()).
		DoAndReturn(func(context.Context, string, []byte, []byte) error {
			shipped <- struct{}{}
			return errors.New("broker down")
		})

	m := NewAuditManager(AuditConfig{Workers: 1, BatchSize: 10, Timeout: 10 * time.Millisecond, Topic: "audit_logs"}, producer, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	m.LogEntry(ctx, AuditLogEntry{Handler: "createBooking"})

	select {
	case <-shipped:
	case <-time.After(time.Second):
		t.Fatal("batch was not flushed after the timeout")
	}
	m.Shutdown(context.Background())
	assert.Zero(t, m.Pending())
}

func TestAuditManager_ShutdownWhileLogging(t *testing.T) {
	const senders, perSender = 8, 50

	ctrl := gomock.NewController(t)
	var shipped atomic.Int64
	producer := mock_kafka.NewMockProducer(ctrl)
	producer.EXPECT().
		SendMessage(gomock.Any(), "audit_logs", gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, []byte, []byte) error {
			shipped.Add(1)
			return nil
		}).
		AnyTimes()

	m := NewAuditManager(AuditConfig{Workers: 2, BatchSize: 4, Timeout: time.Millisecond, Topic: "audit_logs"}, producer, zap.NewNop())
	ctx := context.Background()
	m.Start(ctx)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < perSender; j++ {
				m.LogEntry(ctx, AuditLogEntry{Handler: routeCreateBooking})
			}
		}()
	}

	close(start)
	m.Shutdown(ctx)
	wg.Wait()

	assert.EqualValues(t, senders*perSender, shipped.Load())
	assert.Zero(t, m.Pending())
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
