// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/metrics"
	"github.com/danielhkuo/card-auction/middleware"
	"github.com/danielhkuo/card-auction/models"
	"github.com/danielhkuo/card-auction/notify"
)

// maxNotifications caps how many notifications one response carries
const maxNotifications = 100

type NotificationHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	hub *notify.Hub
}

func NewNotificationHandler(db *sql.DB, cfg cliparse.Config, hub *notify.Hub) *NotificationHandler {
	return &NotificationHandler{db: db, cfg: cfg, hub: hub}
}

// ListNotifications handles GET /notifications
// ?unread=true limits the list to unread notifications.
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	query := `SELECT id, account_id, auction_id, kind, message, is_read, created_at
		FROM notification WHERE account_id = $1`
	if r.URL.Query().Get("unread") == "true" {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id LIMIT $2`

	notes, err := queryNotifications(r.Context(), h.db, query, acc.ID, maxNotifications)
	if err != nil {
		slog.Error("failed to query notifications", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.NotificationsResponse{Notifications: notes})
}

// MarkRead handles POST /notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	res, err := h.db.ExecContext(r.Context(), `
		UPDATE notification SET is_read = TRUE WHERE id = $1 AND account_id = $2
	`, r.PathValue("id"), acc.ID)
	if err != nil {
		slog.Error("failed to mark notification read", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Notification not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	res, err := h.db.ExecContext(r.Context(), `
		UPDATE notification SET is_read = TRUE WHERE account_id = $1 AND is_read = FALSE
	`, acc.ID)
	if err != nil {
		slog.Error("failed to mark notifications read", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	n, _ := res.RowsAffected()

	middleware.JSONResponse(w, http.StatusOK, map[string]int64{"updated": n})
}

// Poll handles GET /notifications/poll?since=<RFC3339>
// Answers at once when something newer than since exists (unread
// notifications when since is omitted), otherwise waits for the next
// notification, the long-poll timeout, or the client to go away.
func (h *NotificationHandler) Poll(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	since, hasSince, err := middleware.Since(r, "since")
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
		return
	}

	ctx := r.Context()

	// Subscribe before reading so nothing published in between is missed
	topic := notify.AccountTopic(acc.ID)
	sub := h.hub.Subscribe(topic)
	defer h.hub.Unsubscribe(topic, sub)

	cursor := since
	if !hasSince {
		cursor, err = latestStamp(ctx, h.db, acc.ID)
		if err != nil {
			slog.Error("failed to read poll cursor", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	notes, err := h.pollFetch(ctx, acc.ID, since, hasSince)
	if err != nil {
		slog.Error("failed to poll notifications", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if len(notes) > 0 {
		middleware.JSONResponse(w, http.StatusOK, pollResponse(notes, cursor))
		return
	}

	metrics.LongPollWaiting.Inc()
	defer metrics.LongPollWaiting.Dec()

	timer := time.NewTimer(h.cfg.LongPollTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				middleware.JSONResponse(w, http.StatusOK, pollResponse(nil, cursor))
				return
			}
			if ev.Type != models.EventNotification {
				continue
			}
			notes, err := h.pollFetch(ctx, acc.ID, since, hasSince)
			if err != nil {
				slog.Error("failed to poll notifications", "error", err)
				middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}
			if len(notes) == 0 {
				continue
			}
			middleware.JSONResponse(w, http.StatusOK, pollResponse(notes, cursor))
			return
		case <-timer.C:
			middleware.JSONResponse(w, http.StatusOK, pollResponse(nil, cursor))
			return
		case <-ctx.Done():
			slog.Debug("long poll abandoned", "account_id", acc.ID)
			return
		}
	}
}

func (h *NotificationHandler) pollFetch(ctx context.Context, accountID string, since time.Time, hasSince bool) ([]models.Notification, error) {
	if hasSince {
		return queryNotifications(ctx, h.db, `
			SELECT id, account_id, auction_id, kind, message, is_read, created_at
			FROM notification WHERE account_id = $1 AND created_at > $2
			ORDER BY created_at ASC, id LIMIT $3
		`, accountID, since, maxNotifications)
	}
	return queryNotifications(ctx, h.db, `
		SELECT id, account_id, auction_id, kind, message, is_read, created_at
		FROM notification WHERE account_id = $1 AND is_read = FALSE
		ORDER BY created_at ASC, id LIMIT $2
	`, accountID, maxNotifications)
}

// latestStamp returns the newest created_at stored for an account, or the
// zero time when it has none. Notifications committed later always carry
// a newer stamp, so it is a safe starting cursor.
func latestStamp(ctx context.Context, q querier, accountID string) (time.Time, error) {
	var ts time.Time
	err := q.QueryRowContext(ctx, `
		SELECT created_at FROM notification WHERE account_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, accountID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	return ts, err
}

// pollResponse sets the cursor to the newest notification returned
func pollResponse(notes []models.Notification, cursor time.Time) models.PollResponse {
	if notes == nil {
		notes = []models.Notification{}
	}
	// A full page may have more behind it; resume right after it
	if len(notes) == maxNotifications {
		return models.PollResponse{Notifications: notes, Cursor: notes[len(notes)-1].CreatedAt}
	}
	for _, n := range notes {
		if n.CreatedAt.After(cursor) {
			cursor = n.CreatedAt
		}
	}
	return models.PollResponse{Notifications: notes, Cursor: cursor}
}

func queryNotifications(ctx context.Context, q querier, query string, args ...any) ([]models.Notification, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var auctionID sql.NullString
		if err := rows.Scan(&n.ID, &n.AccountID, &auctionID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.AuctionID = nullString(auctionID)
		n.CreatedAt = n.CreatedAt.UTC()
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
