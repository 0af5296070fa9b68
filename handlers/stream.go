// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/danielhkuo/card-auction/cliparse"
	"github.com/danielhkuo/card-auction/middleware"
	"github.com/danielhkuo/card-auction/models"
	"github.com/danielhkuo/card-auction/notify"
)

type StreamHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	hub *notify.Hub
}

func NewStreamHandler(db *sql.DB, cfg cliparse.Config, hub *notify.Hub) *StreamHandler {
	return &StreamHandler{db: db, cfg: cfg, hub: hub}
}

// Stream handles GET /auctions/{id}/stream
// Upgrades to a WebSocket and sends the auction's events as JSON, starting
// with a snapshot of the auction. The stream ends when the auction closes
// or is cancelled.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	a, err := getAuction(r.Context(), h.db, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && a.Status == models.StatusDraft) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Auction not found")
		return
	}
	if err != nil {
		slog.Error("failed to load auction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	websocket.Handler(func(ws *websocket.Conn) {
		h.serve(ws, a)
	}).ServeHTTP(w, r)
}

func (h *StreamHandler) serve(ws *websocket.Conn, a models.Auction) {
	defer ws.Close()

	topic := notify.AuctionTopic(a.ID)
	sub := h.hub.Subscribe(topic)
	defer h.hub.Unsubscribe(topic, sub)

	// Re-read after subscribing so the snapshot is not older than the
	// first event sent.
	if fresh, err := getAuction(ws.Request().Context(), h.db, a.ID); err == nil {
		a = fresh
	}

	snapshot := &models.Event{Type: models.EventSnapshot, AuctionID: a.ID, Timestamp: now(), Data: a}
	if err := websocket.JSON.Send(ws, snapshot); err != nil {
		return
	}
	if a.Status == models.StatusClosed || a.Status == models.StatusCancelled {
		return
	}

	// Clients do not send anything; reading only detects the disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var msg []byte
		for {
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				if !errors.Is(err, io.EOF) {
					slog.Debug("stream read ended", "auction_id", a.ID, "error", err)
				}
				return
			}
		}
	}()

	slog.Info("stream opened", "auction_id", a.ID, "remote", ws.Request().RemoteAddr)
	defer slog.Info("stream closed", "auction_id", a.ID)

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, ev); err != nil {
				return
			}
			if ev.Type == models.EventAuctionClosed || ev.Type == models.EventAuctionCancelled {
				return
			}
		case <-gone:
			return
		case <-ws.Request().Context().Done():
			return
		}
	}
}
