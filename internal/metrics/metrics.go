package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "winetour_bookings_created_total",
		Help: "Total number of bookings successfully stored.",
	})

	BookingStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winetour_booking_status_changes_total",
		Help: "Total number of booking status transitions, by target status.",
	},
		[]string{"status"},
	)

	ValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winetour_validation_failures_total",
		Help: "Total number of rejected booking fields.",
	},
		[]string{"field"},
	)

	StorageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winetour_storage_errors_total",
		Help: "Total number of failed key-value operations.",
	},
		[]string{"operation"},
	)

	MalformedDataTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winetour_malformed_data_total",
		Help: "Total number of stored values that could not be decoded.",
	},
		[]string{"key"},
	)

	FavoritesItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "winetour_favorites_items",
		Help: "Current number of favorites in the store.",
	})

	AuditEntriesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "winetour_audit_entries_dropped_total",
		Help: "Total number of audit entries that could not be shipped.",
	})
)
