package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/Spok95/podvest/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Params {
	return Params{
		MaxImmediateUnlockFraction: 200,
		MinVestingDuration:         1000,
		MinSubscriptionDuration:    100,
		PodExitFee:                 50,
		PodExitSmallFee:            100,
		SmallFeeDuration:           500,
		SubscriptionCancelFee:      1,
	}
}

func u64(v uint64) *uint64 { return &v }

func TestUpdateRequiresPlatformCap(t *testing.T) {
	r, err := New(defaults(), "root-secret")
	require.NoError(t, err)

	err = r.Update(NewPlatformAdminCap("guess"), Update{PodExitFee: u64(10)}, 1)
	assert.ErrorIs(t, err, ErrNotPlatformAdmin)
	assert.Equal(t, uint64(50), r.PodExitFee)
	assert.Empty(t, r.Events())
}

func TestUpdateOnlyTouchesGivenFields(t *testing.T) {
	r, err := New(defaults(), "root-secret")
	require.NoError(t, err)

	err = r.Update(NewPlatformAdminCap("root-secret"), Update{PodExitFee: u64(70), SmallFeeDuration: u64(9)}, 42)
	require.NoError(t, err)

	want := defaults()
	want.PodExitFee = 70
	want.SmallFeeDuration = 9
	assert.Equal(t, want, r.Params)

	evs := r.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, event.SettingsUpdated, evs[0].Type)
	assert.Equal(t, uint64(42), evs[0].At)
	assert.Equal(t, uint64(70), evs[0].Data.(event.SettingsUpdatedData).PodExitFee)
}

func TestUpdateRejectsFractionAbovePrecision(t *testing.T) {
	r, err := New(defaults(), "root-secret")
	require.NoError(t, err)

	err = r.Update(NewPlatformAdminCap("root-secret"), Update{SubscriptionCancelFee: u64(1001)}, 1)
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, uint64(1), r.SubscriptionCancelFee)
}

func TestUpdateRejectsDurationBeyondStorage(t *testing.T) {
	r, err := New(defaults(), "root-secret")
	require.NoError(t, err)

	err = r.Update(NewPlatformAdminCap("root-secret"), Update{SmallFeeDuration: u64(1 << 63)}, 1)
	assert.ErrorIs(t, err, ErrInvalidSettings)
	err = r.Update(NewPlatformAdminCap("root-secret"), Update{MinVestingDuration: u64(1<<63 - 1)}, 1)
	assert.NoError(t, err)
}

func TestMemStoreUpdateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	outbox := event.NewMemoryOutbox()
	store := NewMemStore(outbox)

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	r, err := New(defaults(), "root-secret")
	require.NoError(t, err)
	_, err = store.Init(ctx, r)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = store.Update(ctx, func(r *Registry) error {
		r.PodExitFee = 999
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), got.PodExitFee)

	_, err = store.Update(ctx, func(r *Registry) error {
		return r.Update(NewPlatformAdminCap("root-secret"), Update{PodExitFee: u64(60)}, 5)
	})
	require.NoError(t, err)

	pending, err := outbox.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, event.SettingsUpdated, pending[0].Type)
	assert.Equal(t, Subject, pending[0].Subject)
}

func TestInitKeepsExistingRegistry(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(event.NewMemoryOutbox())

	first, err := New(defaults(), "a")
	require.NoError(t, err)
	_, err = store.Init(ctx, first)
	require.NoError(t, err)

	p := defaults()
	p.PodExitFee = 1
	second, err := New(p, "b")
	require.NoError(t, err)
	got, err := store.Init(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), got.PodExitFee)
}
