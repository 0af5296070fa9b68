// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL is shared between PostgreSQL and SQLite.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

var schema = []string{
	// Accounts
	`CREATE TABLE IF NOT EXISTS account (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    token_hash TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,

	// Auctions
	`CREATE TABLE IF NOT EXISTS auction (
    id TEXT PRIMARY KEY,
    seller_id TEXT NOT NULL REFERENCES account(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    item_type TEXT NOT NULL CHECK (item_type IN ('card', 'bundle')),
    card_set TEXT NOT NULL DEFAULT '',
    card_condition TEXT NOT NULL DEFAULT '',
    starting_price BIGINT NOT NULL CHECK (starting_price > 0),
    min_increment BIGINT NOT NULL CHECK (min_increment > 0),
    current_price BIGINT NOT NULL,
    bid_count INTEGER NOT NULL DEFAULT 0,
    high_bidder_id TEXT REFERENCES account(id),
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'open', 'closed', 'cancelled')),
    duration_seconds BIGINT NOT NULL CHECK (duration_seconds > 0),
    starts_at TIMESTAMP,
    ends_at TIMESTAMP,
    closed_at TIMESTAMP,
    winner_id TEXT REFERENCES account(id),
    reminded_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_auction_status ON auction(status)`,
	`CREATE INDEX IF NOT EXISTS idx_auction_seller_id ON auction(seller_id)`,
	`CREATE INDEX IF NOT EXISTS idx_auction_ends_at ON auction(status, ends_at)`,

	// Bids
	`CREATE TABLE IF NOT EXISTS bid (
    id TEXT PRIMARY KEY,
    auction_id TEXT NOT NULL REFERENCES auction(id) ON DELETE CASCADE,
    bidder_id TEXT NOT NULL REFERENCES account(id) ON DELETE CASCADE,
    amount BIGINT NOT NULL CHECK (amount > 0),
    placed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ip_hash TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_bid_auction_id ON bid(auction_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bid_bidder_id ON bid(bidder_id)`,

	// Watch list
	`CREATE TABLE IF NOT EXISTS watch (
    account_id TEXT NOT NULL REFERENCES account(id) ON DELETE CASCADE,
    auction_id TEXT NOT NULL REFERENCES auction(id) ON DELETE CASCADE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (account_id, auction_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_watch_auction_id ON watch(auction_id)`,

	// Notifications
	`CREATE TABLE IF NOT EXISTS notification (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL REFERENCES account(id) ON DELETE CASCADE,
    auction_id TEXT REFERENCES auction(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    message TEXT NOT NULL,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_account ON notification(account_id, created_at)`,
}
