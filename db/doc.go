// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Connections

Open selects the driver from the configured database type:

	conn, err := db.Open("postgres", "postgres://...")   // lib/pq
	conn, err := db.Open("sqlite", "auction.db")         // modernc.org/sqlite

SQLite DSNs get foreign keys, a busy timeout, WAL and immediate
transactions unless the caller already set them.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on PostgreSQL and SQLite.

# Tables

  - account: participants and their token hashes
  - auction: listing, lifecycle state and current high bid
  - bid: accepted bids
  - watch: account watch lists
  - notification: per-account messages

# Relationships

	account 1──* auction (seller)
	auction 1──* bid
	account *──* auction (via watch)
	account 1──* notification

All foreign keys to auction use ON DELETE CASCADE.

# Errors

IsUniqueViolation recognizes duplicate-key errors from both drivers by
error code.
*/
package db
