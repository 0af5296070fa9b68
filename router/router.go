// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/handlers"
	"github.com/danielhkuo/card-auction/metrics"
	"github.com/danielhkuo/card-auction/middleware"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, lc *handlers.Lifecycle) *http.ServeMux {
	mux := http.NewServeMux()
	hub := lc.Notifier().Hub()

	// Initialize handlers
	accountHandler := handlers.NewAccountHandler(db, cfg)
	auctionHandler := handlers.NewAuctionHandler(db, cfg, lc)
	bidHandler := handlers.NewBidHandler(db, cfg, lc)
	watchHandler := handlers.NewWatchHandler(db, cfg)
	notificationHandler := handlers.NewNotificationHandler(db, cfg, hub)
	streamHandler := handlers.NewStreamHandler(db, cfg, hub)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("GET /metrics", metrics.Handler())

	// Accounts
	mux.HandleFunc("POST /accounts", middleware.WithLogging(accountHandler.CreateAccount))
	mux.HandleFunc("GET /accounts/me", middleware.WithLogging(accountHandler.GetMe))
	mux.HandleFunc("GET /accounts/me/auctions", middleware.WithLogging(accountHandler.GetMyAuctions))

	// Auction management (seller)
	mux.HandleFunc("POST /auctions", middleware.WithLogging(auctionHandler.CreateAuction))
	mux.HandleFunc("POST /auctions/{id}/publish", middleware.WithLogging(auctionHandler.PublishAuction))
	mux.HandleFunc("POST /auctions/{id}/cancel", middleware.WithLogging(auctionHandler.CancelAuction))

	// Browsing (public)
	mux.HandleFunc("GET /auctions", middleware.WithLogging(auctionHandler.ListAuctions))
	mux.HandleFunc("GET /auctions/{id}", middleware.WithLogging(auctionHandler.GetAuction))
	mux.HandleFunc("GET /auctions/{id}/bids", middleware.WithLogging(bidHandler.ListBids))
	mux.HandleFunc("GET /auctions/{id}/stream", middleware.WithLogging(streamHandler.Stream))

	// Bidding
	mux.HandleFunc("POST /auctions/{id}/bids", middleware.WithLogging(bidHandler.PlaceBid))

	// Watch list
	mux.HandleFunc("POST /auctions/{id}/watch", middleware.WithLogging(watchHandler.Watch))
	mux.HandleFunc("DELETE /auctions/{id}/watch", middleware.WithLogging(watchHandler.Unwatch))
	mux.HandleFunc("GET /watchlist", middleware.WithLogging(watchHandler.GetWatchlist))

	// Notifications
	mux.HandleFunc("GET /notifications", middleware.WithLogging(notificationHandler.ListNotifications))
	mux.HandleFunc("GET /notifications/poll", middleware.WithLogging(notificationHandler.Poll))
	mux.HandleFunc("POST /notifications/read-all", middleware.WithLogging(notificationHandler.MarkAllRead))
	mux.HandleFunc("POST /notifications/{id}/read", middleware.WithLogging(notificationHandler.MarkRead))

	// Root endpoint, exact match only
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("card-auction API v1"))
	})

	return mux
}
