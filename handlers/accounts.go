// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/danielhkuo/card-auction/auth"
	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/db"
	"github.com/danielhkuo/card-auction/middleware"
	"github.com/danielhkuo/card-auction/models"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
)

type AccountHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewAccountHandler(db *sql.DB, cfg cliparse.Config) *AccountHandler {
	return &AccountHandler{db: db, cfg: cfg}
}

// CreateAccount handles POST /accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	username := strings.TrimSpace(req.Username)
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username must be 3-32 characters")
		return
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	accountID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate account ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	token, err := auth.GenerateAccountToken()
	if err != nil {
		slog.Error("failed to generate account token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO account (id, username, display_name, token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, accountID, username, displayName, auth.HashToken(token, h.cfg.TokenSalt), now())
	if err != nil {
		if db.IsUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "Username already taken")
			return
		}
		slog.Error("failed to insert account", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	slog.Info("account created", "account_id", accountID, "username", username)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateAccountResponse{
		AccountID:    accountID,
		AccountToken: token,
	})
}

// GetMe handles GET /accounts/me
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}
	middleware.JSONResponse(w, http.StatusOK, acc)
}

// GetMyAuctions handles GET /accounts/me/auctions
// Lists auctions the caller sells, has bid on, or watches.
func (h *AccountHandler) GetMyAuctions(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.db, h.cfg.TokenSalt)
	if !ok {
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT `+auctionColumns("a")+`,
			EXISTS (SELECT 1 FROM bid b WHERE b.auction_id = a.id AND b.bidder_id = $1),
			EXISTS (SELECT 1 FROM watch wt WHERE wt.auction_id = a.id AND wt.account_id = $1)
		FROM auction a
		WHERE a.seller_id = $1
			OR EXISTS (SELECT 1 FROM bid b WHERE b.auction_id = a.id AND b.bidder_id = $1)
			OR EXISTS (SELECT 1 FROM watch wt WHERE wt.auction_id = a.id AND wt.account_id = $1)
		ORDER BY a.created_at DESC
	`, acc.ID)
	if err != nil {
		slog.Error("failed to query account auctions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	summaries := []models.MyAuctionSummary{}
	for rows.Next() {
		var bid, watching bool
		a, err := scanAuction(rows, &bid, &watching)
		if err != nil {
			slog.Error("failed to scan account auction", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		var roles []string
		if a.SellerID == acc.ID {
			roles = append(roles, models.RoleSeller)
		}
		if bid {
			roles = append(roles, models.RoleBidder)
		}
		if watching {
			roles = append(roles, models.RoleWatcher)
		}

		summaries = append(summaries, models.MyAuctionSummary{
			Auction: a,
			Roles:   roles,
			Leading: a.HighBidderID != nil && *a.HighBidderID == acc.ID,
		})
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate account auctions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MyAuctionsResponse{Auctions: summaries})
}
