package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

var auctionStatuses = []string{"draft", "open", "closed", "cancelled"}

// Collector refreshes gauges that are cheaper to read from the database
// than to track incrementally.
type Collector struct {
	db       *sql.DB
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(db *sql.DB, interval time.Duration) *Collector {
	return &Collector{
		db:       db,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		defer close(c.doneCh)
		defer ticker.Stop()

		// Collect immediately on start
		c.Collect(context.Background())

		for {
			select {
			case <-ticker.C:
				c.Collect(context.Background())
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop stops the collector and waits for it to exit
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// Collect runs one collection pass
func (c *Collector) Collect(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM auction GROUP BY status`)
	if err != nil {
		slog.Warn("metrics collection failed", "error", err)
		return
	}
	defer rows.Close()

	counts := make(map[string]int, len(auctionStatuses))
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			slog.Warn("metrics collection failed", "error", err)
			return
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		slog.Warn("metrics collection failed", "error", err)
		return
	}

	for _, s := range auctionStatuses {
		AuctionsTotal.WithLabelValues(s).Set(float64(counts[s]))
	}
}
