// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the card auction API server.

Sellers list trading cards and card bundles as timed auctions; buyers bid,
watch auctions, and get notified when they are outbid, when an auction is
about to end, and when it closes.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=auction.db TOKEN_SALT=... go run .

Or against PostgreSQL with flags:

	go run . serve -t postgres -d "postgres://..." --token-salt ...

Create the schema without serving:

	go run . migrate -d auction.db --token-salt ...

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - TOKEN_SALT (--token-salt): Secret for account token HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - BASE_URL, REMINDER_LEAD, ANTI_SNIPE_WINDOW, LONG_POLL_TIMEOUT
  - LOG_LEVEL, LOG_FORMAT

Values can also come from a .env file or an auction.yaml config file (-c).

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers and the auction Lifecycle
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response and domain types
  - auth: Token generation and validation
  - db: Connections and schema creation
  - notify: Event hub and persisted notifications
  - scheduler: Keyed one-shot timers
  - metrics: Prometheus metrics
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
