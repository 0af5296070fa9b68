package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Marketplace metrics
	AuctionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "auction_auctions_total",
			Help: "Number of auctions by status",
		},
		[]string{"status"},
	)

	BidsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_bids_accepted_total",
			Help: "Total number of accepted bids",
		},
	)

	BidsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_bids_rejected_total",
			Help: "Total number of rejected bids by reason",
		},
		[]string{"reason"},
	)

	AuctionsExtended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_extensions_total",
			Help: "Total number of anti-snipe extensions",
		},
	)

	AuctionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_closed_total",
			Help: "Total number of closed auctions by outcome",
		},
		[]string{"outcome"},
	)

	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_notifications_total",
			Help: "Total number of notifications by kind",
		},
		[]string{"kind"},
	)

	// Scheduler metrics
	SchedulerPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auction_scheduler_pending",
			Help: "Number of timers waiting to fire",
		},
	)

	SchedulerFired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_scheduler_fired_total",
			Help: "Total number of timers that fired",
		},
	)

	SchedulerLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auction_scheduler_callback_seconds",
			Help:    "Time spent in scheduled callbacks",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Broker metrics
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auction_hub_subscribers",
			Help: "Number of active event subscribers",
		},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_hub_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		},
	)

	LongPollWaiting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auction_longpoll_waiting",
			Help: "Number of long-poll requests currently waiting",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auction_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(AuctionsTotal)
	prometheus.MustRegister(BidsAccepted)
	prometheus.MustRegister(BidsRejected)
	prometheus.MustRegister(AuctionsExtended)
	prometheus.MustRegister(AuctionsClosed)
	prometheus.MustRegister(NotificationsSent)
	prometheus.MustRegister(SchedulerPending)
	prometheus.MustRegister(SchedulerFired)
	prometheus.MustRegister(SchedulerLatency)
	prometheus.MustRegister(Subscribers)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(LongPollWaiting)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observations
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds on h
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed seconds on the labelled series
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
