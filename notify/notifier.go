// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/danielhkuo/card-auction/metrics"
	"github.com/danielhkuo/card-auction/models"
)

// Notifier persists notifications and pushes them to the recipient's
// account topic.
//
// Rows are stamped and inserted under one lock with strictly increasing
// created_at values, so created_at order is commit order and a poller may
// use the newest stamp it has seen as a cursor.
type Notifier struct {
	db  *sql.DB
	hub *Hub

	mu   sync.Mutex
	last time.Time
}

func NewNotifier(db *sql.DB, hub *Hub) *Notifier {
	return &Notifier{db: db, hub: hub}
}

// Hub returns the hub notifications are published on
func (n *Notifier) Hub() *Hub {
	return n.hub
}

// Notify stores one notification and publishes it
func (n *Notifier) Notify(ctx context.Context, accountID, auctionID, kind, message string) (models.Notification, error) {
	note := models.Notification{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		Message:   message,
	}
	var auctionRef sql.NullString
	if auctionID != "" {
		note.AuctionID = &auctionID
		auctionRef = sql.NullString{String: auctionID, Valid: true}
	}

	n.mu.Lock()
	note.CreatedAt = n.stamp()
	_, err := n.db.ExecContext(ctx, `
		INSERT INTO notification (id, account_id, auction_id, kind, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, note.ID, note.AccountID, auctionRef, note.Kind, note.Message, false, note.CreatedAt)
	if err == nil {
		n.last = note.CreatedAt
	}
	n.mu.Unlock()
	if err != nil {
		return models.Notification{}, fmt.Errorf("failed to insert notification: %w", err)
	}

	metrics.NotificationsSent.WithLabelValues(kind).Inc()

	n.hub.Publish(AccountTopic(accountID), &models.Event{
		Type:      models.EventNotification,
		AuctionID: auctionID,
		Data:      note,
	})

	return note, nil
}

// stamp returns the current time, bumped past the previous stamp when the
// clock has not moved. Callers hold n.mu.
func (n *Notifier) stamp() time.Time {
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(n.last) {
		t = n.last.Add(time.Microsecond)
	}
	return t
}

// NotifyMany sends the same message to each distinct account. It keeps
// going after a failure and returns the first error.
func (n *Notifier) NotifyMany(ctx context.Context, accountIDs []string, auctionID, kind, message string) error {
	var firstErr error
	seen := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := n.Notify(ctx, id, auctionID, kind, message); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FormatCents renders an amount of cents as dollars, e.g. "$1,234.50"
func FormatCents(cents int64) string {
	return "$" + humanize.FormatFloat("#,###.##", float64(cents)/100)
}

// FormatUntil renders how far away t is relative to now, e.g. "4 minutes from now"
func FormatUntil(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}
