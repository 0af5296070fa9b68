package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/card-auction/db"
)

// TestNewTimer tests timer creation
func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())
	assert.Less(t, time.Since(timer.start), time.Second)
}

// TestTimerDuration tests duration measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	sleepDuration := 20 * time.Millisecond
	time.Sleep(sleepDuration)

	assert.GreaterOrEqual(t, timer.Duration(), sleepDuration)
}

// TestTimerObserveDuration tests histogram observation
func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	timer.ObserveDuration(histogram)

	assert.Equal(t, 1, promtest.CollectAndCount(histogram))
}

// TestTimerObserveDurationVec tests histogram vec observation
func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_vec_seconds",
			Help:    "Test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(histogramVec, "close")
	timer.ObserveDurationVec(histogramVec, "remind")

	assert.Equal(t, 2, promtest.CollectAndCount(histogramVec))
}

func TestHandler(t *testing.T) {
	BidsAccepted.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "auction_bids_accepted_total")
}

func TestCollector(t *testing.T) {
	conn, err := db.Open("sqlite", filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, db.CreateSchema(conn))

	_, err = conn.Exec(`INSERT INTO account (id, username, token_hash) VALUES ('s1', 'seller', 'h')`)
	require.NoError(t, err)

	insert := `INSERT INTO auction (id, seller_id, title, item_type, starting_price, min_increment, current_price, status, duration_seconds)
		VALUES ($1, 's1', 'Card', 'card', 100, 100, 100, $2, 60)`
	for i, status := range []string{"open", "open", "draft", "closed"} {
		_, err := conn.Exec(insert, string(rune('a'+i)), status)
		require.NoError(t, err)
	}

	c := NewCollector(conn, time.Hour)
	c.Collect(context.Background())

	assert.Equal(t, 2.0, promtest.ToFloat64(AuctionsTotal.WithLabelValues("open")))
	assert.Equal(t, 1.0, promtest.ToFloat64(AuctionsTotal.WithLabelValues("draft")))
	assert.Equal(t, 1.0, promtest.ToFloat64(AuctionsTotal.WithLabelValues("closed")))
	assert.Equal(t, 0.0, promtest.ToFloat64(AuctionsTotal.WithLabelValues("cancelled")))

	c.Start()
	c.Stop()
}
