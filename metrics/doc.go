/*
Package metrics exposes Prometheus metrics for the auction server.

All metrics are package-level globals registered with the default
registry in init, and served by Handler:

	mux.Handle("GET /metrics", metrics.Handler())

# Metric Families

Marketplace:
  - auction_auctions_total{status}: gauge, refreshed by Collector
  - auction_bids_accepted_total, auction_bids_rejected_total{reason}
  - auction_extensions_total: anti-snipe extensions
  - auction_closed_total{outcome}: sold or unsold
  - auction_notifications_total{kind}

Scheduler:
  - auction_scheduler_pending, auction_scheduler_fired_total
  - auction_scheduler_callback_seconds

Real-time:
  - auction_hub_subscribers, auction_hub_dropped_total
  - auction_longpoll_waiting

API:
  - auction_api_requests_total{method,status}
  - auction_api_request_duration_seconds{method}

# Timer Helper

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulerLatency)

# Collector

	c := metrics.NewCollector(db, 15*time.Second)
	c.Start()
	defer c.Stop()
*/
package metrics
