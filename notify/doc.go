// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify fans auction events out to live listeners and records
per-account notifications.

A Hub is an in-process publish/subscribe broker keyed by topic. Auction
streams subscribe to AuctionTopic(id) and long-poll requests subscribe to
AccountTopic(id):

	hub := notify.NewHub()
	hub.Start()
	defer hub.Stop()

	sub := hub.Subscribe(notify.AuctionTopic(id))
	defer hub.Unsubscribe(notify.AuctionTopic(id), sub)

Delivery is best effort. A subscriber whose buffer is full misses the event;
the database remains the source of truth and clients re-read on reconnect.

A Notifier inserts a notification row and then publishes it on the
recipient's account topic, which is what wakes a waiting long poll.
*/
package notify
