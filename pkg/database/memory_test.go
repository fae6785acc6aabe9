package database

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

var (
	token  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	holder = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	other  = common.HexToAddress("0x00000000000000000000000000000000000000b0")

	nowForTest = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func bankBalance(t *testing.T, m *Memory, addr common.Address) *uint256.Int {
	t.Helper()

	var bal *uint256.Int
	require.NoError(t, m.Atomic(context.Background(), func(tx Tx) (err error) {
		bal, err = tx.Bank().BalanceOf(context.Background(), addr)
		return err
	}))

	return bal
}

func TestMemoryAtomicRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Fund(ctx, holder, uint256.NewInt(100)))

	errBoom := errors.New("boom")
	err := m.Atomic(ctx, func(tx Tx) error {
		require.NoError(t, tx.Bank().Transfer(ctx, holder, other, uint256.NewInt(60)))
		require.NoError(t, tx.PutSale(ctx, model.SaleConfig{AvailableForSale: 5}))
		require.NoError(t, tx.Emit(ctx, model.NewPriceEvent(uint256.NewInt(1), nowForTest)))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	require.Equal(t, uint64(100), bankBalance(t, m, holder).Uint64())
	require.True(t, bankBalance(t, m, other).IsZero())

	_, total, err := m.EventPage(ctx, 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)

	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		cfg, err := tx.Sale(ctx)
		require.NoError(t, err)
		require.False(t, cfg.Initialized())
		require.Zero(t, cfg.AvailableForSale)
		return nil
	}))
}

func TestMemoryTransfers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Fund(ctx, holder, uint256.NewInt(100)))
	require.NoError(t, m.Mint(ctx, token, holder, 1, 3))

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.Bank().Transfer(ctx, holder, other, uint256.NewInt(101))
	})
	require.ErrorIs(t, err, model.ErrTransferFailed)

	err = m.Atomic(ctx, func(tx Tx) error {
		return tx.Custodian(token).Transfer(ctx, holder, other, 1, 4)
	})
	require.ErrorIs(t, err, model.ErrTransferFailed)

	m.RefuseDeposits(other)
	err = m.Atomic(ctx, func(tx Tx) error {
		return tx.Bank().Transfer(ctx, holder, other, uint256.NewInt(1))
	})
	require.ErrorIs(t, err, model.ErrTransferFailed)

	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		if err := tx.Custodian(token).Transfer(ctx, holder, other, 1, 2); err != nil {
			return err
		}

		left, err := tx.Custodian(token).BalanceOf(ctx, holder, 1)
		require.NoError(t, err)
		require.Equal(t, uint64(1), left)

		got, err := tx.Custodian(token).BalanceOf(ctx, other, 1)
		require.NoError(t, err)
		require.Equal(t, uint64(2), got)

		return nil
	}))
}

func TestMemoryRoyalties(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	entries := []model.RoyaltyEntry{{Recipient: holder, BPS: 10}, {Recipient: other, BPS: 100}}

	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		return tx.PutRoyalties(ctx, 7, entries)
	}))

	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		got, err := tx.Royalties(ctx, 7)
		require.NoError(t, err)
		require.Equal(t, entries, got)

		got, err = tx.Royalties(ctx, 8)
		require.NoError(t, err)
		require.Empty(t, got)

		return nil
	}))
}

func TestMemoryEventPage(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
			return tx.Emit(ctx, model.NewPriceEvent(uint256.NewInt(uint64(i+1)), nowForTest))
		}))
	}

	page, total, err := m.EventPage(ctx, 2, 2)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, page, 2)
	require.Equal(t, 3, page[0].ID)
	require.Equal(t, 4, page[1].ID)

	page, total, err = m.EventPage(ctx, 3, 2)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, page, 1)
	require.Equal(t, 5, page[0].ID)

	page, _, err = m.EventPage(ctx, 4, 2)
	require.NoError(t, err)
	require.Empty(t, page)

	page, _, err = m.EventPage(ctx, math.MaxInt, 1000)
	require.NoError(t, err)
	require.Empty(t, page)
}

func TestMemoryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemory().Atomic(ctx, func(Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
