// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/models"
	"github.com/danielhkuo/card-auction/notify"
	"github.com/danielhkuo/card-auction/testutil"
)

// testEnv bundles what most handler tests need
type testEnv struct {
	db  *sql.DB
	cfg cliparse.Config
	hub *notify.Hub
	lc  *Lifecycle
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()

	hub := notify.NewHub()
	hub.Start()
	lc := NewLifecycle(db, cfg, hub)
	t.Cleanup(func() {
		lc.Stop()
		hub.Stop()
	})

	return &testEnv{db: db, cfg: cfg, hub: hub, lc: lc}
}

func (e *testEnv) account(t *testing.T, username string) (id, token string) {
	t.Helper()
	return testutil.CreateTestAccount(t, e.db, e.cfg, username)
}

// openAuction creates an open auction ending in d
func (e *testEnv) openAuction(t *testing.T, sellerID string, d time.Duration) string {
	t.Helper()
	return testutil.CreateTestAuction(t, e.db, sellerID, models.StatusOpen, time.Now().Add(d))
}

func (e *testEnv) loadAuction(t *testing.T, id string) models.Auction {
	t.Helper()
	a, err := getAuction(t.Context(), e.db, id)
	if err != nil {
		t.Fatalf("Failed to load auction %s: %v", id, err)
	}
	return a
}

// withID sets the {id} path value the router would normally extract
func withID(r *http.Request, id string) *http.Request {
	r.SetPathValue("id", id)
	return r
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
