package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemindersSent counts successful deliveries by channel and type
	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_sent_total",
		Help: "Total number of reminders delivered successfully",
	}, []string{"channel", "type"})

	// RemindersFailed counts failed delivery attempts by channel and type
	RemindersFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_failed_total",
		Help: "Total number of failed reminder delivery attempts",
	}, []string{"channel", "type"})

	// RemindersCancelled counts reminders cancelled before delivery
	RemindersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_cancelled_total",
		Help: "Total number of reminders cancelled before delivery",
	})

	// DeliveryDuration observes how long one send attempt takes
	DeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reminder_delivery_duration_seconds",
		Help:    "Duration of reminder delivery attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})

	// ScheduledJobs tracks reminders currently waiting in the delay queue
	ScheduledJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reminder_scheduled_jobs",
		Help: "Number of reminder jobs currently pending delivery",
	})

	// DeadLetters counts reminders parked after exhausting retries
	DeadLetters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_dead_letter_total",
		Help: "Total number of reminders moved to the dead letter store",
	})

	// SweeperRequeued counts overdue pending jobs the sweeper re-enqueued
	SweeperRequeued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_sweeper_requeued_total",
		Help: "Total number of overdue reminder jobs re-enqueued by the sweeper",
	})

	// RateLimited counts API requests rejected by the rate limiter
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_api_rate_limited_total",
		Help: "Total number of API requests rejected by rate limiting",
	})
)
