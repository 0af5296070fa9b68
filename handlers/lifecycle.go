// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/metrics"
	"github.com/danielhkuo/card-auction/models"
	"github.com/danielhkuo/card-auction/notify"
	"github.com/danielhkuo/card-auction/scheduler"
)

const (
	closePrefix  = "close:"
	remindPrefix = "remind:"

	// closeRetryDelay is how long a failed close waits before trying again
	closeRetryDelay = 30 * time.Second
)

// Lifecycle owns the timers that close auctions and send ending-soon
// reminders. Handlers arm and disarm it; timer callbacks call back into it.
type Lifecycle struct {
	db       *sql.DB
	cfg      cliparse.Config
	sched    *scheduler.Scheduler
	notifier *notify.Notifier
	hub      *notify.Hub
}

func NewLifecycle(db *sql.DB, cfg cliparse.Config, hub *notify.Hub) *Lifecycle {
	return &Lifecycle{
		db:       db,
		cfg:      cfg,
		sched:    scheduler.New(),
		notifier: notify.NewNotifier(db, hub),
		hub:      hub,
	}
}

// Notifier returns the notifier used for lifecycle and bid notifications
func (l *Lifecycle) Notifier() *notify.Notifier {
	return l.notifier
}

// Scheduler exposes the underlying timers, mostly for tests
func (l *Lifecycle) Scheduler() *scheduler.Scheduler {
	return l.sched
}

// Stop cancels all timers and waits for running callbacks
func (l *Lifecycle) Stop() {
	l.sched.Stop()
}

// Arm schedules the close and, unless already sent, the reminder for an
// open auction. Re-arming replaces the previous timers.
func (l *Lifecycle) Arm(a models.Auction) {
	if a.Status != models.StatusOpen || a.EndsAt == nil {
		return
	}

	l.sched.Schedule(closePrefix+a.ID, *a.EndsAt, l.onClose)

	// Already reminded, or ended while nobody was watching the clock
	if a.RemindedAt != nil || !a.EndsAt.After(now()) {
		return
	}
	remindAt := a.EndsAt.Add(-l.cfg.ReminderLead)
	// Auctions shorter than the lead time get no reminder
	if a.StartsAt != nil && !remindAt.After(*a.StartsAt) {
		return
	}
	l.sched.Schedule(remindPrefix+a.ID, remindAt, l.onRemind)
}

// Extend moves the close of an auction to endsAt. A pending reminder
// moves with it.
func (l *Lifecycle) Extend(auctionID string, endsAt time.Time) {
	l.sched.Schedule(closePrefix+auctionID, endsAt, l.onClose)
	if _, ok := l.sched.When(remindPrefix + auctionID); ok {
		l.sched.Schedule(remindPrefix+auctionID, endsAt.Add(-l.cfg.ReminderLead), l.onRemind)
	}
}

// Disarm drops both timers of an auction
func (l *Lifecycle) Disarm(auctionID string) {
	l.sched.Cancel(closePrefix + auctionID)
	l.sched.Cancel(remindPrefix + auctionID)
}

// Restore re-arms every open auction from the database. Auctions whose
// end passed while the server was down close immediately.
func (l *Lifecycle) Restore(ctx context.Context) (int, error) {
	auctions, err := queryAuctions(ctx, l.db,
		`SELECT `+auctionColumns("")+` FROM auction WHERE status = $1`, models.StatusOpen)
	if err != nil {
		return 0, fmt.Errorf("failed to load open auctions: %w", err)
	}

	for _, a := range auctions {
		l.Arm(a)
	}

	slog.Info("auction timers restored", "count", len(auctions))
	return len(auctions), nil
}

func (l *Lifecycle) onClose(ctx context.Context, key string) {
	id := strings.TrimPrefix(key, closePrefix)
	if _, err := l.CloseAuction(ctx, id); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("failed to close auction, will retry", "auction_id", id, "error", err)
		l.sched.Schedule(key, time.Now().Add(closeRetryDelay), l.onClose)
	}
}

func (l *Lifecycle) onRemind(ctx context.Context, key string) {
	id := strings.TrimPrefix(key, remindPrefix)
	if _, err := l.SendReminders(ctx, id); err != nil && ctx.Err() == nil {
		slog.Error("failed to send reminders", "auction_id", id, "error", err)
	}
}

// CloseAuction moves an open auction whose end time has passed to closed
// and notifies everyone involved. It reports whether this call closed it.
// Calling it on an auction that is not open is a no-op.
func (l *Lifecycle) CloseAuction(ctx context.Context, auctionID string) (bool, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := getAuction(ctx, tx, auctionID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load auction: %w", err)
	}
	if a.Status != models.StatusOpen {
		return false, nil
	}

	closedAt := now()
	if a.EndsAt != nil && closedAt.Before(*a.EndsAt) {
		// Extended after this timer was set
		tx.Rollback()
		l.sched.Schedule(closePrefix+a.ID, *a.EndsAt, l.onClose)
		return false, nil
	}

	ok, err := markClosed(ctx, tx, a, closedAt)
	if err != nil {
		return false, err
	}
	if !ok {
		// A bid committed after the read; its ends_at and bidder win
		tx.Rollback()
		return false, l.rearm(ctx, a.ID)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit close: %w", err)
	}

	l.sched.Cancel(remindPrefix + a.ID)

	a.Status = models.StatusClosed
	a.ClosedAt = &closedAt
	a.WinnerID = a.HighBidderID

	outcome := "unsold"
	if a.WinnerID != nil {
		outcome = "sold"
	}
	metrics.AuctionsClosed.WithLabelValues(outcome).Inc()
	slog.Info("auction closed", "auction_id", a.ID, "outcome", outcome, "final_price", a.CurrentPrice)

	l.notifyClosed(ctx, a)

	l.hub.Publish(notify.AuctionTopic(a.ID), &models.Event{
		Type:      models.EventAuctionClosed,
		AuctionID: a.ID,
		Data:      a,
	})

	return true, nil
}

// markClosed closes the auction row only if it still matches the snapshot
// a, so a bid that lands in between cannot be overwritten.
func markClosed(ctx context.Context, q querier, a models.Auction, closedAt time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE auction SET status = $1, closed_at = $2, winner_id = $3
		WHERE id = $4 AND status = $5 AND bid_count = $6
	`, models.StatusClosed, closedAt, stringOrNull(a.HighBidderID), a.ID, models.StatusOpen, a.BidCount)
	if err != nil {
		return false, fmt.Errorf("failed to close auction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to close auction: %w", err)
	}
	return n == 1, nil
}

// rearm reschedules the close from the stored row
func (l *Lifecycle) rearm(ctx context.Context, auctionID string) error {
	a, err := getAuction(ctx, l.db, auctionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reload auction: %w", err)
	}
	if a.Status == models.StatusOpen && a.EndsAt != nil {
		l.sched.Schedule(closePrefix+a.ID, *a.EndsAt, l.onClose)
	}
	return nil
}

func (l *Lifecycle) notifyClosed(ctx context.Context, a models.Auction) {
	price := notify.FormatCents(a.CurrentPrice)

	if a.WinnerID != nil {
		l.send(ctx, *a.WinnerID, a.ID, models.NotifyWon,
			fmt.Sprintf("You won %q for %s", a.Title, price))
		l.send(ctx, a.SellerID, a.ID, models.NotifySold,
			fmt.Sprintf("%q sold for %s", a.Title, price))
	} else {
		l.send(ctx, a.SellerID, a.ID, models.NotifyUnsold,
			fmt.Sprintf("%q ended with no bids", a.Title))
	}

	ids, err := participants(ctx, l.db, a.ID)
	if err != nil {
		slog.Error("failed to load participants", "auction_id", a.ID, "error", err)
		return
	}

	var others []string
	for _, id := range ids {
		if a.WinnerID != nil && id == *a.WinnerID {
			continue
		}
		others = append(others, id)
	}

	msg := fmt.Sprintf("%q has ended", a.Title)
	if a.WinnerID != nil {
		msg = fmt.Sprintf("%q has ended. Winning bid: %s", a.Title, price)
	}
	if err := l.notifier.NotifyMany(ctx, others, a.ID, models.NotifyAuctionClosed, msg); err != nil {
		slog.Error("failed to notify participants", "auction_id", a.ID, "error", err)
	}
}

// SendReminders notifies bidders and watchers that an auction ends soon.
// Each auction is reminded at most once; it reports whether this call
// sent the reminders.
func (l *Lifecycle) SendReminders(ctx context.Context, auctionID string) (bool, error) {
	sentAt := now()
	res, err := l.db.ExecContext(ctx, `
		UPDATE auction SET reminded_at = $1
		WHERE id = $2 AND status = $3 AND reminded_at IS NULL AND ends_at > $1
	`, sentAt, auctionID, models.StatusOpen)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	a, err := getAuction(ctx, l.db, auctionID)
	if err != nil {
		return false, fmt.Errorf("failed to load auction: %w", err)
	}

	ids, err := participants(ctx, l.db, auctionID)
	if err != nil {
		return false, err
	}

	msg := fmt.Sprintf("%q is ending soon", a.Title)
	if a.EndsAt != nil {
		msg = fmt.Sprintf("%q ends %s. Current price: %s",
			a.Title, notify.FormatUntil(*a.EndsAt, sentAt), notify.FormatCents(a.CurrentPrice))
	}
	if err := l.notifier.NotifyMany(ctx, ids, auctionID, models.NotifyEndingSoon, msg); err != nil {
		return true, err
	}

	slog.Info("auction reminders sent", "auction_id", auctionID, "recipients", len(ids))
	return true, nil
}

// send delivers one notification, logging failures
func (l *Lifecycle) send(ctx context.Context, accountID, auctionID, kind, message string) {
	if _, err := l.notifier.Notify(ctx, accountID, auctionID, kind, message); err != nil {
		slog.Error("failed to send notification", "account_id", accountID, "kind", kind, "error", err)
	}
}
