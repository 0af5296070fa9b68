// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the card auction API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - AccountHandler: Registration and the caller's own auctions
  - AuctionHandler: Auction lifecycle (create, publish, cancel) and browsing
  - BidHandler: Bid placement and history
  - WatchHandler: Watch list
  - NotificationHandler: Notification inbox and long-polling
  - StreamHandler: Per-auction WebSocket event stream

Handlers that change auction state also take the shared Lifecycle:

	lc := handlers.NewLifecycle(db, cfg, hub)
	auctionHandler := handlers.NewAuctionHandler(db, cfg, lc)

# Authentication

POST /accounts returns an account token once. Every other write, and the
caller-specific reads, require it in the X-Account-Token header. Only an
HMAC of the token is stored.

# Auction Lifecycle

Auctions progress draft → open → closed, or to cancelled:

	POST /auctions              → CreateAuction (draft)
	POST /auctions/{id}/publish → PublishAuction (starts the clock)
	POST /auctions/{id}/cancel  → CancelAuction (draft, or open with no bids)

Publishing arms two timers in the Lifecycle: the close at ends_at and an
ending-soon reminder reminder_lead before it. Restore re-arms every open
auction at startup; auctions that ended while the server was down close
immediately.

# Bidding

	POST /auctions/{id}/bids → PlaceBid

A bid is accepted with a conditional UPDATE on the bid count read in the
same transaction, so of two concurrent bids at most one wins and the other
gets 409. A bid inside the anti-snipe window moves ends_at to now+window.

# Notifications

Notifications are stored per account and also published on the account's
hub topic. GET /notifications/poll waits on that topic.
*/
package handlers
