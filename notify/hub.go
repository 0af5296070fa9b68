// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/card-auction/metrics"
	"github.com/danielhkuo/card-auction/models"
)

const (
	eventBuffer      = 256
	subscriberBuffer = 32
)

// Subscriber is a channel that receives events for one topic
type Subscriber chan *models.Event

// AccountTopic is the topic carrying an account's notifications
func AccountTopic(accountID string) string {
	return "account:" + accountID
}

// AuctionTopic is the topic carrying an auction's public events
func AuctionTopic(auctionID string) string {
	return "auction:" + auctionID
}

type envelope struct {
	topic string
	event *models.Event
}

// Hub fans events out to topic subscribers. Delivery never blocks the
// publisher's caller on a slow subscriber: full buffers drop the event.
type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[Subscriber]struct{}
	eventCh  chan envelope
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub; call Start before publishing
func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]map[Subscriber]struct{}),
		eventCh: make(chan envelope, eventBuffer),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the distribution loop
func (h *Hub) Start() {
	go h.run()
}

// Stop ends the distribution loop and waits for it to exit.
// Events still queued are discarded.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	<-h.doneCh
}

// Subscribe registers a new buffered subscriber on topic
func (h *Hub) Subscribe(topic string) Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := make(Subscriber, subscriberBuffer)
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	metrics.Subscribers.Inc()
	return sub
}

// Unsubscribe removes and closes sub. Calling it twice is harmless.
func (h *Hub) Unsubscribe(topic string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
	close(sub)
	metrics.Subscribers.Dec()
}

// Publish queues event for delivery to every subscriber of topic
func (h *Hub) Publish(topic string, event *models.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case h.eventCh <- envelope{topic: topic, event: event}:
	case <-h.stopCh:
	}
}

// SubscriberCount returns the number of subscribers on topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) run() {
	defer close(h.doneCh)
	for {
		select {
		case env := <-h.eventCh:
			h.broadcast(env)
		case <-h.stopCh:
			return
		}
	}
}

func (h *Hub) broadcast(env envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[env.topic] {
		select {
		case sub <- env.event:
		default:
			metrics.EventsDropped.Inc()
		}
	}
}
