// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/card-auction/auth"
	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/db"
	"github.com/danielhkuo/card-auction/models"
)

// SetupTestDB creates a fresh SQLite database with the full schema.
// The database lives in the test's temp dir and is closed on cleanup.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(cliparse.DatabaseSQLite, filepath.Join(t.TempDir(), "auction_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:            3318,
		DatabaseURL:     "auction_test.db",
		DatabaseType:    cliparse.DatabaseSQLite,
		TokenSalt:       "test-token-salt",
		BaseURL:         "http://localhost:3318",
		ReminderLead:    5 * time.Minute,
		AntiSnipeWindow: 2 * time.Minute,
		LongPollTimeout: 200 * time.Millisecond,
		MinDuration:     time.Second,
		MaxDuration:     14 * 24 * time.Hour,
		LogLevel:        "error",
		LogFormat:       "text",
	}
}

// Now returns the current time the way the server stores it
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// CreateTestAccount registers an account and returns its ID and token
func CreateTestAccount(t *testing.T, conn *sql.DB, cfg cliparse.Config, username string) (accountID, token string) {
	t.Helper()

	accountID, _ = auth.GenerateID(16)
	token, err := auth.GenerateAccountToken()
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	_, err = conn.Exec(`
		INSERT INTO account (id, username, display_name, token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, accountID, username, username, auth.HashToken(token, cfg.TokenSalt), Now())
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}

	return accountID, token
}

// CreateTestAuction inserts an auction for sellerID.
// status should be "draft", "open", "closed", or "cancelled". endsAt is
// ignored for drafts.
func CreateTestAuction(t *testing.T, conn *sql.DB, sellerID, status string, endsAt time.Time) string {
	t.Helper()

	auctionID, _ := auth.GenerateID(16)
	now := Now()

	var startsAt, ends, closedAt *time.Time
	if status != models.StatusDraft {
		s := endsAt.Add(-time.Hour).UTC()
		e := endsAt.UTC()
		startsAt, ends = &s, &e
	}
	if status == models.StatusClosed {
		closedAt = &now
	}

	_, err := conn.Exec(`
		INSERT INTO auction (id, seller_id, title, description, item_type, card_set, card_condition,
			starting_price, min_increment, current_price, bid_count, status, duration_seconds,
			starts_at, ends_at, closed_at, created_at)
		VALUES ($1, $2, 'Test Card', 'A test card', $3, 'Base Set', 'near mint',
			1000, 100, 1000, 0, $4, 3600, $5, $6, $7, $8)
	`, auctionID, sellerID, models.ItemCard, status, startsAt, ends, closedAt, now)
	if err != nil {
		t.Fatalf("Failed to create test auction: %v", err)
	}

	return auctionID
}

// PlaceTestBid records a bid directly and makes bidderID the high bidder
func PlaceTestBid(t *testing.T, conn *sql.DB, auctionID, bidderID string, amount int64) string {
	t.Helper()

	bidID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO bid (id, auction_id, bidder_id, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, bidID, auctionID, bidderID, amount, Now())
	if err != nil {
		t.Fatalf("Failed to create test bid: %v", err)
	}

	_, err = conn.Exec(`
		UPDATE auction SET current_price = $1, bid_count = bid_count + 1, high_bidder_id = $2
		WHERE id = $3
	`, amount, bidderID, auctionID)
	if err != nil {
		t.Fatalf("Failed to update test auction: %v", err)
	}

	return bidID
}

// WatchTestAuction adds auctionID to accountID's watch list
func WatchTestAuction(t *testing.T, conn *sql.DB, accountID, auctionID string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO watch (account_id, auction_id, created_at) VALUES ($1, $2, $3)
	`, accountID, auctionID, Now())
	if err != nil {
		t.Fatalf("Failed to watch test auction: %v", err)
	}
}

// CountNotifications returns how many notifications of kind accountID has
func CountNotifications(t *testing.T, conn *sql.DB, accountID, kind string) int {
	t.Helper()

	var n int
	err := conn.QueryRow(`
		SELECT COUNT(*) FROM notification WHERE account_id = $1 AND kind = $2
	`, accountID, kind).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to count notifications: %v", err)
	}
	return n
}

// MakeRequest creates an HTTP test request. A non-empty token is sent in
// the account token header.
func MakeRequest(method, path string, body any, token string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
