package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goahead/predtracker/internal/contracts"
)

func TestLock_SBINPersistentSurvivesHorizon(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))

	ack := h.tracker.Lock("SBIN", contracts.Horizon5D, true)
	require.True(t, ack.Success)
	assert.True(t, h.tracker.IsLocked("SBIN", contracts.Horizon5D))

	h.clock.AdvanceTradingDays(5)
	assert.True(t, h.tracker.IsLocked("SBIN", contracts.Horizon5D))

	h.clock.AdvanceTradingDays(1000)
	state, err := h.tracker.LockState("SBIN", contracts.Horizon5D)
	require.NoError(t, err)
	assert.Equal(t, contracts.LockPersistent, state.Kind)
	assert.Equal(t, "2026-10-12", state.Anchor.Format(contracts.DateLayout))
}

func TestLock_SBINTemporaryExpiresAtHorizon(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon5D, false).Success)

	h.clock.AdvanceTradingDays(4)
	assert.True(t, h.tracker.IsLocked("SBIN", contracts.Horizon5D))
	assert.True(t, h.store.Load()["SBIN"].Track5D.Lock.IsLocked())

	h.clock.AdvanceTradingDays(1)
	assert.False(t, h.tracker.IsLocked("SBIN", contracts.Horizon5D))

	// the expiry is persisted as a side effect of the read
	stored := h.store.Load()["SBIN"].Track5D.Lock
	assert.Equal(t, contracts.LockUnlocked, stored.Kind)
}

func TestLock_Temporary30DExpiresAfterThirtyTradingDays(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon30D, false).Success)

	h.clock.AdvanceTradingDays(29)
	assert.True(t, h.tracker.IsLocked("SBIN", contracts.Horizon30D))

	h.clock.AdvanceTradingDays(1)
	assert.False(t, h.tracker.IsLocked("SBIN", contracts.Horizon30D))
}

func TestLock_NotIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))

	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon5D, true).Success)
	first, err := h.tracker.LockState("SBIN", contracts.Horizon5D)
	require.NoError(t, err)

	h.clock.AdvanceTradingDays(1)
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon5D, true).Success)
	second, err := h.tracker.LockState("SBIN", contracts.Horizon5D)
	require.NoError(t, err)

	assert.Equal(t, "2026-10-12", first.Anchor.Format(contracts.DateLayout))
	assert.Equal(t, "2026-10-13", second.Anchor.Format(contracts.DateLayout))
	assert.True(t, second.LockedAt.After(first.LockedAt))
}

func TestLock_ReLockSwitchesKind(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))

	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon5D, true).Success)
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon5D, false).Success)

	state, err := h.tracker.LockState("SBIN", contracts.Horizon5D)
	require.NoError(t, err)
	assert.Equal(t, contracts.LockTemporary, state.Kind)
}

func TestUnlock(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon30D, true).Success)

	ack := h.tracker.Unlock("SBIN", contracts.Horizon30D)
	assert.True(t, ack.Success)

	state, err := h.tracker.LockState("SBIN", contracts.Horizon30D)
	require.NoError(t, err)
	assert.Equal(t, contracts.Unlocked(), state)
}

func TestUnlock_NeverLockedIsNoop(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))
	saves := h.store.Saves()

	ack := h.tracker.Unlock("SBIN", contracts.Horizon5D)

	assert.True(t, ack.Success)
	assert.Contains(t, ack.Message, "already unlocked")
	assert.Equal(t, saves, h.store.Saves())
}

func TestLock_AutoInitializesFromSnapshot(t *testing.T) {
	src := &fakeSnapshots{stocks: []contracts.ScoredSnapshot{sbin()}}
	h := newHarness(t, WithSnapshots(src))

	ack := h.tracker.Lock("SBIN", contracts.Horizon5D, true)
	require.True(t, ack.Success)

	rec, ok := h.tracker.Get("SBIN")
	require.True(t, ok)
	assert.Equal(t, 815.25, rec.CurrentPrice)
	assert.Equal(t, 82.0, rec.Confidence)
	assert.True(t, rec.Track5D.Lock.IsPersistent())
}

func TestLock_AutoInitializesFromFallback(t *testing.T) {
	h := newHarness(t)

	ack := h.tracker.Unlock("RELIANCE", contracts.Horizon30D)
	require.True(t, ack.Success)

	rec, ok := h.tracker.Get("RELIANCE")
	require.True(t, ok)
	assert.Equal(t, 100.0, rec.CurrentPrice)
	assert.Equal(t, 2.0, rec.Pred5D)
	assert.Equal(t, 8.0, rec.Pred1Mo)
	assert.Equal(t, 75.0, rec.Confidence)
	assert.Equal(t, 65.0, rec.Score)
	assert.Equal(t, 1, h.store.Saves())
}

func TestLock_UnknownHorizon(t *testing.T) {
	h := newHarness(t)

	ack := h.tracker.Lock("SBIN", contracts.Horizon("7d"), true)

	assert.False(t, ack.Success)
	assert.False(t, h.tracker.Exists("SBIN"))
}

func TestLockedDateLabels(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))

	assert.Empty(t, h.tracker.LockedDateLabels("SBIN", contracts.Horizon5D))

	// Thursday anchor spans the weekend
	h.clock.AdvanceTradingDays(3)
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon5D, false).Success)

	labels := h.tracker.LockedDateLabels("SBIN", contracts.Horizon5D)
	assert.Equal(t, []string{"Oct 15", "Oct 16", "Oct 19", "Oct 20", "Oct 21"}, labels)

	labels30 := h.tracker.LockedDateLabels("SBIN", contracts.Horizon30D)
	assert.Empty(t, labels30)

	h.clock.AdvanceTradingDays(5)
	assert.Empty(t, h.tracker.LockedDateLabels("SBIN", contracts.Horizon5D))
}

func TestRefreshLocks(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tracker.Initialize(sbin()))
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon5D, false).Success)
	require.True(t, h.tracker.Lock("SBIN", contracts.Horizon30D, false).Success)

	h.clock.AdvanceTradingDays(5)
	n, err := h.tracker.RefreshLocks()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = h.tracker.RefreshLocks()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
