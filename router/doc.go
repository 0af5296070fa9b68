// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the card auction API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg, lifecycle)

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Accounts (X-Account-Token except registration):

	POST /accounts               - Register, returns the account token
	GET  /accounts/me            - Caller's account
	GET  /accounts/me/auctions   - Auctions the caller sells, bid on, or watches

Auction management (seller):

	POST /auctions              - Create draft
	POST /auctions/{id}/publish - Open for bidding
	POST /auctions/{id}/cancel  - Cancel (draft, or open with no bids)

Browsing (public):

	GET /auctions             - List, filtered by status, item_type, seller, q
	GET /auctions/{id}        - Auction detail and watcher count
	GET /auctions/{id}/bids   - Bid history
	GET /auctions/{id}/stream - WebSocket event stream

Bidding and watching:

	POST   /auctions/{id}/bids  - Place bid
	POST   /auctions/{id}/watch - Watch
	DELETE /auctions/{id}/watch - Unwatch
	GET    /watchlist           - Caller's watched auctions

Notifications:

	GET  /notifications           - Inbox, ?unread=true for unread only
	GET  /notifications/poll      - Long-poll, ?since=<cursor>
	POST /notifications/{id}/read - Mark one read
	POST /notifications/read-all  - Mark all read

# Handler Initialization

Handlers that change auction state share the Lifecycle, which owns the
close and reminder timers and the notification hub.
*/
package router
