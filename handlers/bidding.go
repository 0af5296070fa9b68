// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/card-auction/auth"
	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/metrics"
	"github.com/danielhkuo/card-auction/middleware"
	"github.com/danielhkuo/card-auction/models"
	"github.com/danielhkuo/card-auction/notify"
)

// bidError is a rejected bid: the status to return and the metric reason
type bidError struct {
	status  int
	reason  string
	message string
}

func (e *bidError) Error() string {
	return e.message
}

func rejectBid(status int, reason, message string) *bidError {
	return &bidError{status: status, reason: reason, message: message}
}

// bidResult describes an accepted bid
type bidResult struct {
	bid            models.Bid
	auction        models.Auction
	previousLeader *string
	extended       bool
}

type BidHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	lc  *Lifecycle
}

func NewBidHandler(db *sql.DB, cfg cliparse.Config, lc *Lifecycle) *BidHandler {
	return &BidHandler{db: db, cfg: cfg, lc: lc}
}

// PlaceBid handles POST /auctions/{id}/bids
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	var req models.PlaceBidRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Amount <= 0 {
		metrics.BidsRejected.WithLabelValues("invalid").Inc()
		middleware.ErrorResponse(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.TokenSalt)
	result, err := h.placeBid(r.Context(), r.PathValue("id"), acc, req.Amount, ipHash)
	if err != nil {
		var be *bidError
		if errors.As(err, &be) {
			metrics.BidsRejected.WithLabelValues(be.reason).Inc()
			middleware.ErrorResponse(w, be.status, be.message)
			return
		}
		slog.Error("failed to place bid", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to place bid")
		return
	}

	metrics.BidsAccepted.Inc()
	slog.Info("bid placed",
		"auction_id", result.auction.ID,
		"bidder_id", acc.ID,
		"amount", req.Amount,
		"extended", result.extended,
	)

	h.afterBid(r.Context(), result)

	middleware.JSONResponse(w, http.StatusCreated, models.PlaceBidResponse{
		BidID:    result.bid.ID,
		Amount:   result.bid.Amount,
		EndsAt:   *result.auction.EndsAt,
		Extended: result.extended,
	})
}

// placeBid validates and records a bid in one transaction. The auction
// row is updated only if nobody else bid since it was read.
func (h *BidHandler) placeBid(ctx context.Context, auctionID string, bidder models.Account, amount int64, ipHash string) (bidResult, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return bidResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := getAuction(ctx, tx, auctionID)
	if errors.Is(err, sql.ErrNoRows) {
		return bidResult{}, rejectBid(http.StatusNotFound, "not_found", "Auction not found")
	}
	if err != nil {
		return bidResult{}, fmt.Errorf("failed to load auction: %w", err)
	}

	placedAt := now()
	switch {
	case a.Status == models.StatusDraft:
		return bidResult{}, rejectBid(http.StatusNotFound, "not_found", "Auction not found")
	case a.Status != models.StatusOpen, a.EndsAt == nil, !placedAt.Before(*a.EndsAt):
		return bidResult{}, rejectBid(http.StatusConflict, "not_open", "Auction is not open for bidding")
	case a.SellerID == bidder.ID:
		return bidResult{}, rejectBid(http.StatusForbidden, "own_auction", "You cannot bid on your own auction")
	case a.HighBidderID != nil && *a.HighBidderID == bidder.ID:
		return bidResult{}, rejectBid(http.StatusConflict, "already_leading", "You are already the high bidder")
	case amount < a.MinimumBid():
		return bidResult{}, rejectBid(http.StatusBadRequest, "too_low",
			fmt.Sprintf("Bid must be at least %s", notify.FormatCents(a.MinimumBid())))
	}

	endsAt := *a.EndsAt
	extended := false
	if h.cfg.AntiSnipeWindow > 0 && endsAt.Sub(placedAt) < h.cfg.AntiSnipeWindow {
		endsAt = placedAt.Add(h.cfg.AntiSnipeWindow)
		extended = true
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE auction
		SET current_price = $1, bid_count = bid_count + 1, high_bidder_id = $2, ends_at = $3
		WHERE id = $4 AND status = $5 AND bid_count = $6
	`, amount, bidder.ID, endsAt, a.ID, models.StatusOpen, a.BidCount)
	if err != nil {
		return bidResult{}, fmt.Errorf("failed to update auction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return bidResult{}, fmt.Errorf("failed to update auction: %w", err)
	}
	if n == 0 {
		return bidResult{}, rejectBid(http.StatusConflict, "conflict", "Another bid was placed first, try again")
	}

	bidID, err := auth.GenerateID(16)
	if err != nil {
		return bidResult{}, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bid (id, auction_id, bidder_id, amount, placed_at, ip_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, bidID, a.ID, bidder.ID, amount, placedAt, ipHash)
	if err != nil {
		return bidResult{}, fmt.Errorf("failed to insert bid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return bidResult{}, fmt.Errorf("failed to commit bid: %w", err)
	}

	previous := a.HighBidderID
	a.CurrentPrice = amount
	a.BidCount++
	a.HighBidderID = &bidder.ID
	a.EndsAt = &endsAt

	return bidResult{
		bid: models.Bid{
			ID:             bidID,
			AuctionID:      a.ID,
			BidderID:       bidder.ID,
			BidderUsername: bidder.Username,
			Amount:         amount,
			PlacedAt:       placedAt,
		},
		auction:        a,
		previousLeader: previous,
		extended:       extended,
	}, nil
}

// afterBid runs the side effects of an accepted bid
func (h *BidHandler) afterBid(ctx context.Context, res bidResult) {
	a := res.auction
	hub := h.lc.Notifier().Hub()

	if res.extended {
		metrics.AuctionsExtended.Inc()
		h.lc.Extend(a.ID, *a.EndsAt)
		hub.Publish(notify.AuctionTopic(a.ID), &models.Event{
			Type:      models.EventAuctionExtended,
			AuctionID: a.ID,
			Data:      map[string]time.Time{"ends_at": *a.EndsAt},
		})
	}

	hub.Publish(notify.AuctionTopic(a.ID), &models.Event{
		Type:      models.EventBidPlaced,
		AuctionID: a.ID,
		Data:      res.bid,
	})

	price := notify.FormatCents(res.bid.Amount)
	if res.previousLeader != nil {
		h.lc.send(ctx, *res.previousLeader, a.ID, models.NotifyOutbid,
			fmt.Sprintf("You were outbid on %q. Current price: %s", a.Title, price))
	}
	h.lc.send(ctx, a.SellerID, a.ID, models.NotifyNewBid,
		fmt.Sprintf("New bid of %s on %q", price, a.Title))
}

// ListBids handles GET /auctions/{id}/bids
// Returns bid history, newest first.
func (h *BidHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	a, err := getAuction(ctx, h.db, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && a.Status == models.StatusDraft) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Auction not found")
		return
	}
	if err != nil {
		slog.Error("failed to load auction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT b.id, b.auction_id, b.bidder_id, acc.username, b.amount, b.placed_at
		FROM bid b
		JOIN account acc ON acc.id = b.bidder_id
		WHERE b.auction_id = $1
		ORDER BY b.amount DESC, b.placed_at DESC
	`, a.ID)
	if err != nil {
		slog.Error("failed to query bids", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	bids := []models.Bid{}
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.BidderUsername, &b.Amount, &b.PlacedAt); err != nil {
			slog.Error("failed to scan bid", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		b.PlacedAt = b.PlacedAt.UTC()
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate bids", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.BidHistoryResponse{Bids: bids})
}
