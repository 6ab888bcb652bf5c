package server

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/winetour/internal/booking"
)

// maxAuditBody caps how much of a request or response body is recorded.
const maxAuditBody = 4 << 10

var statusRoutes = map[string]booking.Status{
	routeConfirmBooking: booking.StatusConfirmed,
	routeCancelBooking:  booking.StatusCancelled,
}

func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler := "unknown"
		if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
			handler = route.GetName()
		}
		if handler == routeMetrics {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		entry := AuditLogEntry{
			Timestamp: start.UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Handler:   handler,
		}
		if username, _, ok := r.BasicAuth(); ok {
			entry.User = username
		}
		if strings.HasPrefix(r.URL.Path, "/bookings/") {
			entry.BookingID = mux.Vars(r)["id"]
		}

		if target, ok := statusRoutes[handler]; ok && entry.BookingID != "" {
			if id, err := strconv.ParseInt(entry.BookingID, 10, 64); err == nil {
				if b, err := s.store.FindBooking(r.Context(), id); err == nil {
					entry.OldStatus = string(b.Status)
					entry.NewStatus = string(target)
				}
			}
		}

		if r.Body != nil && !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			requestBody, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(requestBody))
			if handler != routeImport {
				entry.Request = truncate(requestBody)
			}
		}

		rec := newResponseRecorder(w)
		next.ServeHTTP(rec, r)

		entry.StatusCode = rec.statusCode
		entry.Duration = time.Since(start).String()
		if handler != routeExport {
			entry.Response = truncate(rec.body.Bytes())
		}
		if entry.StatusCode >= http.StatusBadRequest {
			entry.NewStatus = ""
		}

		s.audit.LogEntry(r.Context(), entry)
	})
}

func truncate(b []byte) string {
	if len(b) > maxAuditBody {
		return string(b[:maxAuditBody]) + "...(truncated)"
	}
	return string(b)
}

// responseRecorder passes the response through while keeping the status
// code and the first maxAuditBody bytes of the body.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *responseRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	if room := maxAuditBody + 1 - w.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		w.body.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}
