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
	"strings"
	"time"

	"github.com/danielhkuo/card-auction/auth"
	"github.com/danielhkuo/card-auction/middleware"
	"github.com/danielhkuo/card-auction/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// now returns the current time at the precision both databases store
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

var auctionFields = []string{
	"id", "seller_id", "title", "description", "item_type", "card_set", "card_condition",
	"starting_price", "min_increment", "current_price", "bid_count", "high_bidder_id",
	"status", "duration_seconds", "starts_at", "ends_at", "closed_at", "winner_id",
	"reminded_at", "created_at",
}

// auctionColumns returns the select list scanAuction expects, optionally
// qualified with a table alias.
func auctionColumns(alias string) string {
	if alias == "" {
		return strings.Join(auctionFields, ", ")
	}
	cols := make([]string, len(auctionFields))
	for i, f := range auctionFields {
		cols[i] = alias + "." + f
	}
	return strings.Join(cols, ", ")
}

func scanAuction(row rowScanner, extra ...any) (models.Auction, error) {
	var a models.Auction
	var highBidder, winner sql.NullString
	var startsAt, endsAt, closedAt, remindedAt sql.NullTime

	dest := []any{
		&a.ID, &a.SellerID, &a.Title, &a.Description, &a.ItemType, &a.CardSet, &a.CardCondition,
		&a.StartingPrice, &a.MinIncrement, &a.CurrentPrice, &a.BidCount, &highBidder,
		&a.Status, &a.DurationSeconds, &startsAt, &endsAt, &closedAt, &winner,
		&remindedAt, &a.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return models.Auction{}, err
	}

	a.HighBidderID = nullString(highBidder)
	a.WinnerID = nullString(winner)
	a.StartsAt = nullTime(startsAt)
	a.EndsAt = nullTime(endsAt)
	a.ClosedAt = nullTime(closedAt)
	a.RemindedAt = nullTime(remindedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

func stringOrNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// getAuction loads one auction; sql.ErrNoRows when it does not exist
func getAuction(ctx context.Context, q querier, id string) (models.Auction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+auctionColumns("")+` FROM auction WHERE id = $1`, id)
	return scanAuction(row)
}

// queryAuctions runs a query whose select list is auctionColumns
func queryAuctions(ctx context.Context, q querier, query string, args ...any) ([]models.Auction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	auctions := []models.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

// participants returns everyone who bid on or watches an auction
func participants(ctx context.Context, q querier, auctionID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT bidder_id FROM bid WHERE auction_id = $1
		UNION
		SELECT account_id FROM watch WHERE auction_id = $1
	`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// authenticate resolves the caller from the account token header
func authenticate(ctx context.Context, q querier, r *http.Request, salt string) (models.Account, error) {
	token := r.Header.Get(auth.TokenHeader)
	if token == "" {
		return models.Account{}, auth.ErrMissingToken
	}

	var acc models.Account
	err := q.QueryRowContext(ctx, `
		SELECT id, username, display_name, token_hash, created_at
		FROM account WHERE token_hash = $1
	`, auth.HashToken(token, salt)).Scan(&acc.ID, &acc.Username, &acc.DisplayName, &acc.TokenHash, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, auth.ErrInvalidToken
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := auth.ValidateToken(token, acc.TokenHash, salt); err != nil {
		return models.Account{}, err
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	return acc, nil
}

// requireAccount authenticates the caller or writes the error response.
// The bool is false when the handler should return.
func requireAccount(w http.ResponseWriter, r *http.Request, q querier, salt string) (models.Account, bool) {
	acc, err := authenticate(r.Context(), q, r, salt)
	switch {
	case err == nil:
		return acc, true
	case errors.Is(err, auth.ErrMissingToken):
		middleware.ErrorResponse(w, http.StatusUnauthorized, auth.TokenHeader+" header required")
	case errors.Is(err, auth.ErrInvalidToken):
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid account token")
	default:
		slog.Error("failed to authenticate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
	}
	return models.Account{}, false
}

// optionalAccount returns the caller if a valid token was sent
func optionalAccount(r *http.Request, q querier, salt string) (models.Account, bool) {
	acc, err := authenticate(r.Context(), q, r, salt)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingToken) && !errors.Is(err, auth.ErrInvalidToken) {
			slog.Warn("failed to authenticate optional caller", "error", err)
		}
		return models.Account{}, false
	}
	return acc, true
}
