// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateAccountRequest: username, display_name
  - CreateAuctionRequest: title, item_type, starting_price, min_increment, duration_seconds
  - PlaceBidRequest: amount (cents)

# Response Types

  - CreateAccountResponse: account_id, account_token
  - CreateAuctionResponse: auction_id
  - PublishAuctionResponse: ends_at, url
  - PlaceBidResponse: bid_id, amount, ends_at, extended
  - PollResponse: notifications, cursor
  - ErrorResponse: error, message

# Domain Types

  - Account: marketplace participant, identified by a token hash
  - Auction: a card or bundle listing and its bidding state
  - Bid: an accepted bid
  - Notification: a persisted message for one account
  - Event: a real-time message pushed to subscribers

# Money

All amounts are integer cents. Auction.MinimumBid reports the lowest
acceptable next bid:

	first bid:  StartingPrice
	later bids: CurrentPrice + MinIncrement

# Constants

Status values:

	StatusDraft     = "draft"
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"

Item types:

	ItemCard   = "card"
	ItemBundle = "bundle"
*/
package models
