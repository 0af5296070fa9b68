// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/middleware"
	"github.com/danielhkuo/card-auction/models"
)

type WatchHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewWatchHandler(db *sql.DB, cfg cliparse.Config) *WatchHandler {
	return &WatchHandler{db: db, cfg: cfg}
}

// Watch handles POST /auctions/{id}/watch
// Returns 201 when added and 200 when the caller was already watching.
func (h *WatchHandler) Watch(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	a, err := getAuction(r.Context(), h.db, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Auction not found")
		return
	}
	if err != nil {
		slog.Error("failed to load auction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	switch {
	case a.SellerID == acc.ID:
		middleware.ErrorResponse(w, http.StatusForbidden, "You cannot watch your own auction")
		return
	case a.Status == models.StatusDraft:
		middleware.ErrorResponse(w, http.StatusNotFound, "Auction not found")
		return
	case a.Status != models.StatusOpen:
		middleware.ErrorResponse(w, http.StatusConflict, "Auction is "+a.Status)
		return
	}

	res, err := h.db.ExecContext(r.Context(), `
		INSERT INTO watch (account_id, auction_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, auction_id) DO NOTHING
	`, acc.ID, a.ID, now())
	if err != nil {
		slog.Error("failed to insert watch", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to watch auction")
		return
	}

	status := http.StatusCreated
	if n, _ := res.RowsAffected(); n == 0 {
		status = http.StatusOK
	} else {
		slog.Info("auction watched", "auction_id", a.ID, "account_id", acc.ID)
	}

	middleware.JSONResponse(w, status, map[string]string{
		"auction_id": a.ID,
		"status":     "watching",
	})
}

// Unwatch handles DELETE /auctions/{id}/watch
func (h *WatchHandler) Unwatch(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	res, err := h.db.ExecContext(r.Context(), `
		DELETE FROM watch WHERE account_id = $1 AND auction_id = $2
	`, acc.ID, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to delete watch", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to unwatch auction")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Not watching this auction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetWatchlist handles GET /watchlist
// Open auctions come first, soonest ending first.
func (h *WatchHandler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	auctions, err := queryAuctions(r.Context(), h.db, `
		SELECT `+auctionColumns("a")+`
		FROM auction a
		JOIN watch wt ON wt.auction_id = a.id
		WHERE wt.account_id = $1
		ORDER BY CASE WHEN a.status = $2 THEN 0 ELSE 1 END, a.ends_at ASC, a.id
	`, acc.ID, models.StatusOpen)
	if err != nil {
		slog.Error("failed to query watchlist", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.WatchlistResponse{Auctions: auctions})
}
