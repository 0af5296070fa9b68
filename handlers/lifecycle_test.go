// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/card-auction/models"
	"github.com/danielhkuo/card-auction/notify"
	"github.com/danielhkuo/card-auction/testutil"
)

func TestCloseAuction_Sold(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	sellerID, _ := env.account(t, "seller")
	winnerID, _ := env.account(t, "winner")
	loserID, _ := env.account(t, "loser")
	watcherID, _ := env.account(t, "watcher")

	auctionID := env.openAuction(t, sellerID, -time.Second)
	testutil.PlaceTestBid(t, env.db, auctionID, loserID, 1000)
	testutil.PlaceTestBid(t, env.db, auctionID, winnerID, 1100)
	testutil.WatchTestAuction(t, env.db, watcherID, auctionID)
	testutil.WatchTestAuction(t, env.db, winnerID, auctionID)

	events := env.hub.Subscribe(notify.AuctionTopic(auctionID))
	defer env.hub.Unsubscribe(notify.AuctionTopic(auctionID), events)

	closed, err := env.lc.CloseAuction(ctx, auctionID)
	require.NoError(t, err)
	assert.True(t, closed)

	a := env.loadAuction(t, auctionID)
	assert.Equal(t, models.StatusClosed, a.Status)
	require.NotNil(t, a.WinnerID)
	assert.Equal(t, winnerID, *a.WinnerID)
	assert.NotNil(t, a.ClosedAt)

	assert.Equal(t, 1, testutil.CountNotifications(t, env.db, winnerID, models.NotifyWon))
	assert.Equal(t, 0, testutil.CountNotifications(t, env.db, winnerID, models.NotifyAuctionClosed))
	assert.Equal(t, 1, testutil.CountNotifications(t, env.db, sellerID, models.NotifySold))
	assert.Equal(t, 1, testutil.CountNotifications(t, env.db, loserID, models.NotifyAuctionClosed))
	assert.Equal(t, 1, testutil.CountNotifications(t, env.db, watcherID, models.NotifyAuctionClosed))

	select {
	case ev := <-events:
		assert.Equal(t, models.EventAuctionClosed, ev.Type)
		assert.Equal(t, auctionID, ev.AuctionID)
	case <-time.After(time.Second):
		t.Fatal("no auction.closed event")
	}

	// Closing again does nothing
	closed, err = env.lc.CloseAuction(ctx, auctionID)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Equal(t, 1, testutil.CountNotifications(t, env.db, winnerID, models.NotifyWon))
}

func TestCloseAuction_Unsold(t *testing.T) {
	env := newTestEnv(t)

	sellerID, _ := env.account(t, "seller")
	auctionID := env.openAuction(t, sellerID, -time.Second)

	closed, err := env.lc.CloseAuction(t.Context(), auctionID)
	require.NoError(t, err)
	assert.True(t, closed)

	a := env.loadAuction(t, auctionID)
	assert.Equal(t, models.StatusClosed, a.Status)
	assert.Nil(t, a.WinnerID)
	assert.Equal(t, 1, testutil.CountNotifications(t, env.db, sellerID, models.NotifyUnsold))
	assert.Equal(t, 0, testutil.CountNotifications(t, env.db, sellerID, models.NotifySold))
}

func TestCloseAuction_NotYetEnded(t *testing.T) {
	env := newTestEnv(t)

	sellerID, _ := env.account(t, "seller")
	auctionID := env.openAuction(t, sellerID, time.Hour)

	// A stale timer after an extension must not close early
	closed, err := env.lc.CloseAuction(t.Context(), auctionID)
	require.NoError(t, err)
	assert.False(t, closed)

	a := env.loadAuction(t, auctionID)
	assert.Equal(t, models.StatusOpen, a.Status)

	at, ok := env.lc.Scheduler().When(closePrefix + auctionID)
	require.True(t, ok, "close should be re-armed at the new end")
	assert.True(t, at.Equal(*a.EndsAt))
}

func TestCloseAuction_Missing(t *testing.T) {
	env := newTestEnv(t)

	closed, err := env.lc.CloseAuction(t.Context(), "missing")
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestSendReminders(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	sellerID, _ := env.account(t, "seller")
	bidderID, _ := env.account(t, "bidder")
	watcherID, _ := env.account(t, "watcher")

	auctionID := env.openAuction(t, sellerID, 4*time.Minute)
	testutil.PlaceTestBid(t, env.db, auctionID, bidderID, 1000)
	testutil.WatchTestAuction(t, env.db, watcherID, auctionID)

	sent, err := env.lc.SendReminders(ctx, auctionID)
	require.NoError(t, err)
	assert.True(t, sent)

	assert.Equal(t, 1, testutil.CountNotifications(t, env.db, bidderID, models.NotifyEndingSoon))
	assert.Equal(t, 1, testutil.CountNotifications(t, env.db, watcherID, models.NotifyEndingSoon))
	assert.Equal(t, 0, testutil.CountNotifications(t, env.db, sellerID, models.NotifyEndingSoon))

	var message string
	require.NoError(t, env.db.QueryRow(`
		SELECT message FROM notification WHERE account_id = $1 AND kind = $2
	`, watcherID, models.NotifyEndingSoon).Scan(&message))
	assert.Contains(t, message, "from now")
	assert.Contains(t, message, "$10")

	// Reminders go out once
	sent, err = env.lc.SendReminders(ctx, auctionID)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, 1, testutil.CountNotifications(t, env.db, watcherID, models.NotifyEndingSoon))

	a := env.loadAuction(t, auctionID)
	assert.NotNil(t, a.RemindedAt)
}

func TestArm(t *testing.T) {
	env := newTestEnv(t)
	sellerID, _ := env.account(t, "seller")

	t.Run("schedules close and reminder", func(t *testing.T) {
		id := env.openAuction(t, sellerID, time.Hour)
		a := env.loadAuction(t, id)
		env.lc.Arm(a)

		at, ok := env.lc.Scheduler().When(closePrefix + id)
		require.True(t, ok)
		assert.True(t, at.Equal(*a.EndsAt))

		at, ok = env.lc.Scheduler().When(remindPrefix + id)
		require.True(t, ok)
		assert.True(t, at.Equal(a.EndsAt.Add(-env.cfg.ReminderLead)))
	})

	t.Run("already reminded", func(t *testing.T) {
		id := env.openAuction(t, sellerID, time.Hour)
		a := env.loadAuction(t, id)
		now := time.Now()
		a.RemindedAt = &now
		env.lc.Arm(a)

		_, ok := env.lc.Scheduler().When(remindPrefix + id)
		assert.False(t, ok)
	})

	t.Run("auction shorter than reminder lead", func(t *testing.T) {
		id := env.openAuction(t, sellerID, time.Hour)
		a := env.loadAuction(t, id)
		starts := a.EndsAt.Add(-time.Minute)
		a.StartsAt = &starts
		env.lc.Arm(a)

		_, ok := env.lc.Scheduler().When(remindPrefix + id)
		assert.False(t, ok)
	})

	t.Run("drafts are ignored", func(t *testing.T) {
		id := testutil.CreateTestAuction(t, env.db, sellerID, models.StatusDraft, time.Time{})
		env.lc.Arm(env.loadAuction(t, id))

		_, ok := env.lc.Scheduler().When(closePrefix + id)
		assert.False(t, ok)
	})
}

func TestLifecycle_TimerClosesAuction(t *testing.T) {
	env := newTestEnv(t)

	sellerID, _ := env.account(t, "seller")
	bidderID, _ := env.account(t, "bidder")
	auctionID := env.openAuction(t, sellerID, 200*time.Millisecond)
	testutil.PlaceTestBid(t, env.db, auctionID, bidderID, 1000)

	env.lc.Arm(env.loadAuction(t, auctionID))

	closed := waitFor(t, 3*time.Second, func() bool {
		return env.loadAuction(t, auctionID).Status == models.StatusClosed
	})
	require.True(t, closed, "auction should close when its timer fires")
	assert.True(t, waitFor(t, time.Second, func() bool {
		return testutil.CountNotifications(t, env.db, bidderID, models.NotifyWon) == 1
	}))
}

func TestRestore(t *testing.T) {
	env := newTestEnv(t)

	sellerID, _ := env.account(t, "seller")
	running := env.openAuction(t, sellerID, time.Hour)
	overdue := env.openAuction(t, sellerID, -time.Minute)
	testutil.CreateTestAuction(t, env.db, sellerID, models.StatusDraft, time.Time{})
	testutil.CreateTestAuction(t, env.db, sellerID, models.StatusClosed, time.Now().Add(-time.Hour))

	n, err := env.lc.Restore(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok := env.lc.Scheduler().When(closePrefix + running)
	assert.True(t, ok, "running auction should be re-armed")

	// Overdue auctions close right away
	assert.True(t, waitFor(t, 3*time.Second, func() bool {
		return env.loadAuction(t, overdue).Status == models.StatusClosed
	}))
	assert.Equal(t, models.StatusOpen, env.loadAuction(t, running).Status)
}

func TestCloseAuction_BidLandsAfterRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	sellerID, _ := env.account(t, "seller")
	earlyID, _ := env.account(t, "early")
	lateID, _ := env.account(t, "late")

	auctionID := env.openAuction(t, sellerID, -time.Second)
	testutil.PlaceTestBid(t, env.db, auctionID, earlyID, 1000)
	stale := env.loadAuction(t, auctionID)

	// Commits between the close reading the row and updating it
	testutil.PlaceTestBid(t, env.db, auctionID, lateID, 1100)

	tx, err := env.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	ok, err := markClosed(ctx, tx, stale, now())
	require.NoError(t, err)
	assert.False(t, ok, "a stale snapshot must not close the auction")
	require.NoError(t, tx.Rollback())

	assert.Equal(t, models.StatusOpen, env.loadAuction(t, auctionID).Status)

	require.NoError(t, env.lc.rearm(ctx, auctionID))
	_, armed := env.lc.Scheduler().When(closePrefix + auctionID)
	assert.True(t, armed, "close should be re-armed from the stored row")

	// The re-armed close picks the late bidder
	assert.True(t, waitFor(t, 3*time.Second, func() bool {
		return env.loadAuction(t, auctionID).Status == models.StatusClosed
	}))
	a := env.loadAuction(t, auctionID)
	require.NotNil(t, a.WinnerID)
	assert.Equal(t, lateID, *a.WinnerID)
}

func TestRestore_OverdueAuctionGetsNoReminder(t *testing.T) {
	env := newTestEnv(t)

	sellerID, _ := env.account(t, "seller")
	watcherID, _ := env.account(t, "watcher")
	auctionID := env.openAuction(t, sellerID, -10*time.Minute)
	testutil.WatchTestAuction(t, env.db, watcherID, auctionID)

	_, err := env.lc.Restore(t.Context())
	require.NoError(t, err)

	_, ok := env.lc.Scheduler().When(remindPrefix + auctionID)
	assert.False(t, ok, "no reminder for an auction that already ended")

	require.True(t, waitFor(t, 3*time.Second, func() bool {
		return testutil.CountNotifications(t, env.db, watcherID, models.NotifyAuctionClosed) == 1
	}))
	assert.Zero(t, testutil.CountNotifications(t, env.db, watcherID, models.NotifyEndingSoon))
}

func TestSendReminders_AfterEnd(t *testing.T) {
	env := newTestEnv(t)

	sellerID, _ := env.account(t, "seller")
	watcherID, _ := env.account(t, "watcher")
	auctionID := env.openAuction(t, sellerID, -time.Minute)
	testutil.WatchTestAuction(t, env.db, watcherID, auctionID)

	sent, err := env.lc.SendReminders(t.Context(), auctionID)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Zero(t, testutil.CountNotifications(t, env.db, watcherID, models.NotifyEndingSoon))
	assert.Nil(t, env.loadAuction(t, auctionID).RemindedAt)
}

func TestExtend_MovesReminder(t *testing.T) {
	env := newTestEnv(t)

	sellerID, _ := env.account(t, "seller")
	auctionID := env.openAuction(t, sellerID, time.Hour)
	a := env.loadAuction(t, auctionID)
	env.lc.Arm(a)

	newEnd := a.EndsAt.Add(10 * time.Minute)
	env.lc.Extend(auctionID, newEnd)

	at, ok := env.lc.Scheduler().When(closePrefix + auctionID)
	require.True(t, ok)
	assert.True(t, at.Equal(newEnd))

	at, ok = env.lc.Scheduler().When(remindPrefix + auctionID)
	require.True(t, ok)
	assert.True(t, at.Equal(newEnd.Add(-env.cfg.ReminderLead)))

	// Nothing to move once the reminder has gone out
	env.lc.Scheduler().Cancel(remindPrefix + auctionID)
	env.lc.Extend(auctionID, newEnd.Add(time.Minute))
	_, ok = env.lc.Scheduler().When(remindPrefix + auctionID)
	assert.False(t, ok)
}
