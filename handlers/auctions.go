// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielhkuo/card-auction/auth"
	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/metrics"
	"github.com/danielhkuo/card-auction/middleware"
	"github.com/danielhkuo/card-auction/models"
	"github.com/danielhkuo/card-auction/notify"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type AuctionHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	lc  *Lifecycle
}

func NewAuctionHandler(db *sql.DB, cfg cliparse.Config, lc *Lifecycle) *AuctionHandler {
	return &AuctionHandler{db: db, cfg: cfg, lc: lc}
}

// CreateAuction handles POST /auctions
// Creates a draft owned by the caller.
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	var req models.CreateAuctionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.MinIncrement == 0 {
		req.MinIncrement = models.DefaultMinIncrement
	}
	if msg := h.validateAuction(req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	auctionID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate auction ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create auction")
		return
	}

	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO auction (id, seller_id, title, description, item_type, card_set, card_condition,
			starting_price, min_increment, current_price, bid_count, status, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13)
	`, auctionID, acc.ID, req.Title, req.Description, req.ItemType, req.CardSet, req.CardCondition,
		req.StartingPrice, req.MinIncrement, req.StartingPrice, models.StatusDraft, req.DurationSeconds, now())
	if err != nil {
		slog.Error("failed to insert auction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create auction")
		return
	}

	slog.Info("auction created", "auction_id", auctionID, "seller_id", acc.ID)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateAuctionResponse{
		AuctionID: auctionID,
	})
}

// likeEscaper makes a search term match literally inside a LIKE pattern
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (h *AuctionHandler) validateAuction(req models.CreateAuctionRequest) string {
	if req.Title == "" {
		return "title is required"
	}
	if req.ItemType != models.ItemCard && req.ItemType != models.ItemBundle {
		return "item_type must be card or bundle"
	}
	if req.StartingPrice <= 0 {
		return "starting_price must be positive"
	}
	if req.MinIncrement < 0 {
		return "min_increment must be positive"
	}
	// Bound the seconds before converting so the multiplication cannot wrap
	if req.DurationSeconds <= 0 || req.DurationSeconds > int64(h.cfg.MaxDuration/time.Second) ||
		time.Duration(req.DurationSeconds)*time.Second < h.cfg.MinDuration {
		return fmt.Sprintf("duration_seconds must be between %d and %d",
			int64(h.cfg.MinDuration.Seconds()), int64(h.cfg.MaxDuration.Seconds()))
	}
	return ""
}

// loadOwned loads an auction and checks the caller is its seller.
// On failure the error response has already been written.
func (h *AuctionHandler) loadOwned(w http.ResponseWriter, r *http.Request, q querier, acc models.Account) (models.Auction, bool) {
	a, err := getAuction(r.Context(), q, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Auction not found")
		return models.Auction{}, false
	}
	if err != nil {
		slog.Error("failed to load auction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.Auction{}, false
	}
	if a.SellerID != acc.ID {
		if a.Status == models.StatusDraft {
			middleware.ErrorResponse(w, http.StatusNotFound, "Auction not found")
		} else {
			middleware.ErrorResponse(w, http.StatusForbidden, "Only the seller can do that")
		}
		return models.Auction{}, false
	}
	return a, true
}

// PublishAuction handles POST /auctions/{id}/publish
// Opens a draft and starts its clock.
func (h *AuctionHandler) PublishAuction(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	tx, err := h.db.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	a, ok := h.loadOwned(w, r, tx, acc)
	if !ok {
		return
	}
	if a.Status != models.StatusDraft {
		middleware.ErrorResponse(w, http.StatusConflict, "Only draft auctions can be published")
		return
	}

	startsAt := now()
	endsAt := startsAt.Add(time.Duration(a.DurationSeconds) * time.Second)

	_, err = tx.ExecContext(r.Context(), `
		UPDATE auction SET status = $1, starts_at = $2, ends_at = $3
		WHERE id = $4 AND status = $5
	`, models.StatusOpen, startsAt, endsAt, a.ID, models.StatusDraft)
	if err != nil {
		slog.Error("failed to publish auction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish auction")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	a.Status = models.StatusOpen
	a.StartsAt = &startsAt
	a.EndsAt = &endsAt
	h.lc.Arm(a)

	slog.Info("auction published", "auction_id", a.ID, "ends_at", endsAt)

	middleware.JSONResponse(w, http.StatusOK, models.PublishAuctionResponse{
		EndsAt: endsAt,
		URL:    fmt.Sprintf("%s/auctions/%s", h.cfg.BaseURL, a.ID),
	})
}

// CancelAuction handles POST /auctions/{id}/cancel
// Drafts and open auctions without bids can be cancelled.
func (h *AuctionHandler) CancelAuction(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	tx, err := h.db.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	a, ok := h.loadOwned(w, r, tx, acc)
	if !ok {
		return
	}

	switch {
	case a.Status == models.StatusOpen && a.BidCount > 0:
		middleware.ErrorResponse(w, http.StatusConflict, "Auctions with bids cannot be cancelled")
		return
	case a.Status != models.StatusDraft && a.Status != models.StatusOpen:
		middleware.ErrorResponse(w, http.StatusConflict, "Auction is already "+a.Status)
		return
	}

	closedAt := now()
	res, err := tx.ExecContext(r.Context(), `
		UPDATE auction SET status = $1, closed_at = $2
		WHERE id = $3 AND status = $4 AND bid_count = 0
	`, models.StatusCancelled, closedAt, a.ID, a.Status)
	if err != nil {
		slog.Error("failed to cancel auction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cancel auction")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Auction changed, try again")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	h.lc.Disarm(a.ID)

	a.Status = models.StatusCancelled
	a.ClosedAt = &closedAt
	metrics.AuctionsClosed.WithLabelValues("cancelled").Inc()
	slog.Info("auction cancelled", "auction_id", a.ID)

	watchers, err := participants(r.Context(), h.db, a.ID)
	if err != nil {
		slog.Error("failed to load watchers", "auction_id", a.ID, "error", err)
	} else if err := h.lc.Notifier().NotifyMany(r.Context(), watchers, a.ID,
		models.NotifyAuctionCancelled, fmt.Sprintf("%q was cancelled by the seller", a.Title)); err != nil {
		slog.Error("failed to notify watchers", "auction_id", a.ID, "error", err)
	}

	h.lc.Notifier().Hub().Publish(notify.AuctionTopic(a.ID), &models.Event{
		Type:      models.EventAuctionCancelled,
		AuctionID: a.ID,
		Data:      a,
	})

	middleware.JSONResponse(w, http.StatusOK, a)
}

// ListAuctions handles GET /auctions
// Query params: status, item_type, seller, q, limit, offset
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	status := query.Get("status")
	if status == "" {
		status = models.StatusOpen
	}
	switch status {
	case models.StatusOpen, models.StatusClosed, models.StatusCancelled:
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "status must be open, closed, or cancelled")
		return
	}

	limit, err := intParam(query.Get("limit"), defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	offset, err := intParam(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "offset must not be negative")
		return
	}

	where := []string{"status = $1"}
	args := []any{status}
	if itemType := query.Get("item_type"); itemType != "" {
		if itemType != models.ItemCard && itemType != models.ItemBundle {
			middleware.ErrorResponse(w, http.StatusBadRequest, "item_type must be card or bundle")
			return
		}
		args = append(args, itemType)
		where = append(where, fmt.Sprintf("item_type = $%d", len(args)))
	}
	if seller := query.Get("seller"); seller != "" {
		args = append(args, seller)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if q := strings.TrimSpace(query.Get("q")); q != "" {
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(q))+"%")
		where = append(where, fmt.Sprintf("LOWER(title) LIKE $%d ESCAPE '\\'", len(args)))
	}

	order := "created_at DESC, id"
	if status == models.StatusOpen {
		order = "ends_at ASC, id"
	}

	args = append(args, limit, offset)
	sqlQuery := fmt.Sprintf(`SELECT %s FROM auction WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		auctionColumns(""), strings.Join(where, " AND "), order, len(args)-1, len(args))

	auctions, err := queryAuctions(r.Context(), h.db, sqlQuery, args...)
	if err != nil {
		slog.Error("failed to list auctions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListAuctionsResponse{
		Auctions: auctions,
		Limit:    limit,
		Offset:   offset,
	})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// GetAuction handles GET /auctions/{id}
// Drafts are only visible to their seller.
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	a, err := getAuction(ctx, h.db, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Auction not found")
		return
	}
	if err != nil {
		slog.Error("failed to load auction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	caller, authed := optionalAccount(r, h.db, h.cfg.TokenSalt)
	if a.Status == models.StatusDraft && (!authed || caller.ID != a.SellerID) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Auction not found")
		return
	}

	detail := models.AuctionDetail{Auction: a}
	err = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM watch WHERE auction_id = $1`, a.ID).
		Scan(&detail.WatcherCount)
	if err != nil {
		slog.Error("failed to count watchers", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if authed {
		var n int
		err = h.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM watch WHERE auction_id = $1 AND account_id = $2
		`, a.ID, caller.ID).Scan(&n)
		if err != nil {
			slog.Error("failed to check watch", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		detail.Watching = n > 0
	}

	middleware.JSONResponse(w, http.StatusOK, detail)
}
