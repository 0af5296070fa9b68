package models

import "time"

// Auction status constants
const (
	StatusDraft     = "draft"
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"
)

// Item type constants
const (
	ItemCard   = "card"
	ItemBundle = "bundle"
)

// Notification kinds
const (
	NotifyOutbid           = "outbid"
	NotifyNewBid           = "new_bid"
	NotifyEndingSoon       = "ending_soon"
	NotifyWon              = "won"
	NotifySold             = "sold"
	NotifyUnsold           = "unsold"
	NotifyAuctionClosed    = "auction_closed"
	NotifyAuctionCancelled = "auction_cancelled"
)

// Event types pushed to real-time subscribers
const (
	EventBidPlaced        = "bid.placed"
	EventAuctionExtended  = "auction.extended"
	EventAuctionClosed    = "auction.closed"
	EventAuctionCancelled = "auction.cancelled"
	EventNotification     = "notification"
	EventSnapshot         = "auction.snapshot"
)

// DefaultMinIncrement is one dollar, in cents.
const DefaultMinIncrement int64 = 100

// Request types

type CreateAccountRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type CreateAuctionRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	ItemType        string `json:"item_type"`
	CardSet         string `json:"card_set"`
	CardCondition   string `json:"card_condition"`
	StartingPrice   int64  `json:"starting_price"`
	MinIncrement    int64  `json:"min_increment"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// Amount is in cents
type PlaceBidRequest struct {
	Amount int64 `json:"amount"`
}

// Response types

type CreateAccountResponse struct {
	AccountID    string `json:"account_id"`
	AccountToken string `json:"account_token"`
}

type CreateAuctionResponse struct {
	AuctionID string `json:"auction_id"`
}

type PublishAuctionResponse struct {
	EndsAt time.Time `json:"ends_at"`
	URL    string    `json:"url"`
}

type PlaceBidResponse struct {
	BidID    string    `json:"bid_id"`
	Amount   int64     `json:"amount"`
	EndsAt   time.Time `json:"ends_at"`
	Extended bool      `json:"extended"`
}

type ListAuctionsResponse struct {
	Auctions []Auction `json:"auctions"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

type AuctionDetail struct {
	Auction      Auction `json:"auction"`
	WatcherCount int     `json:"watcher_count"`
	Watching     bool    `json:"watching"`
}

type BidHistoryResponse struct {
	Bids []Bid `json:"bids"`
}

type WatchlistResponse struct {
	Auctions []Auction `json:"auctions"`
}

type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
}

// PollResponse is returned by the long-poll endpoint. Cursor is passed
// back as ?since= on the next call.
type PollResponse struct {
	Notifications []Notification `json:"notifications"`
	Cursor        time.Time      `json:"cursor"`
}

type MyAuctionsResponse struct {
	Auctions []MyAuctionSummary `json:"auctions"`
}

// Domain types

type Account struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	TokenHash   string    `json:"-"` // Never expose in JSON
	CreatedAt   time.Time `json:"created_at"`
}

type Auction struct {
	ID              string     `json:"id"`
	SellerID        string     `json:"seller_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ItemType        string     `json:"item_type"`
	CardSet         string     `json:"card_set,omitempty"`
	CardCondition   string     `json:"card_condition,omitempty"`
	StartingPrice   int64      `json:"starting_price"`
	MinIncrement    int64      `json:"min_increment"`
	CurrentPrice    int64      `json:"current_price"`
	BidCount        int        `json:"bid_count"`
	HighBidderID    *string    `json:"high_bidder_id,omitempty"`
	Status          string     `json:"status"`
	DurationSeconds int64      `json:"duration_seconds"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	WinnerID        *string    `json:"winner_id,omitempty"`
	RemindedAt      *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MinimumBid returns the lowest amount the next bid may carry.
func (a Auction) MinimumBid() int64 {
	if a.BidCount == 0 {
		return a.StartingPrice
	}
	return a.CurrentPrice + a.MinIncrement
}

type Bid struct {
	ID             string    `json:"id"`
	AuctionID      string    `json:"auction_id"`
	BidderID       string    `json:"bidder_id"`
	BidderUsername string    `json:"bidder_username"`
	Amount         int64     `json:"amount"`
	PlacedAt       time.Time `json:"placed_at"`
	IPHash         *string   `json:"-"` // Never expose in JSON
}

type Notification struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	AuctionID *string   `json:"auction_id,omitempty"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is pushed over the auction and account topics.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	AuctionID string    `json:"auction_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Roles reported by GET /accounts/me/auctions
const (
	RoleSeller  = "seller"
	RoleBidder  = "bidder"
	RoleWatcher = "watcher"
)

type MyAuctionSummary struct {
	Auction Auction  `json:"auction"`
	Roles   []string `json:"roles"`
	Leading bool     `json:"leading"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
