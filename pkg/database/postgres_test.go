package database

import (
	"context"
	"database/sql"
	"math"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

// newTestPostgres connects to the database named by TEST_POSTGRES_ADDR (host:port, with
// develop/develop credentials and a tokensale database). Tests are skipped without it.
func newTestPostgres(t *testing.T, contract common.Address) *Postgres {
	t.Helper()

	addr := os.Getenv("TEST_POSTGRES_ADDR")
	if addr == "" {
		t.Skip("TEST_POSTGRES_ADDR is not set")
	}

	db, closeDB, err := New(addr, "tokensale", "develop", "develop")
	require.NoError(t, err)
	t.Cleanup(func() { closeDB() })

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))

	cleanup(t, db, contract)
	t.Cleanup(func() { cleanup(t, db, contract) })

	return &Postgres{DB: db, Contract: contract}
}

func cleanup(t *testing.T, db *sql.DB, contract common.Address) {
	for _, q := range []string{
		`delete from sales where contract = $1`,
		`delete from royalties where contract = $1`,
		`delete from events where contract = $1`,
	} {
		_, err := db.Exec(q, contract.Hex())
		require.NoError(t, err)
	}
}

func TestPostgresSaleRoundTrip(t *testing.T) {
	p := newTestPostgres(t, common.HexToAddress("0x00000000000000000000000000000000000c0001"))
	ctx := context.Background()

	cfg := model.SaleConfig{
		Duration:         time.Hour,
		StartTime:        nowForTest,
		UnitPrice:        *uint256.MustFromDecimal("1000000000000000000"),
		TokenAddress:     token,
		TokenID:          1,
		AvailableForSale: 10,
	}
	entries := []model.RoyaltyEntry{{Recipient: holder, BPS: 10}, {Recipient: other, BPS: 100}}

	require.NoError(t, p.Atomic(ctx, func(tx Tx) error {
		empty, err := tx.Sale(ctx)
		require.NoError(t, err)
		require.False(t, empty.Initialized())

		if err := tx.PutSale(ctx, cfg); err != nil {
			return err
		}
		if err := tx.PutRoyalties(ctx, 1, entries); err != nil {
			return err
		}
		return tx.Emit(ctx, model.SaleStartedEvent(cfg, nowForTest))
	}))

	require.NoError(t, p.Atomic(ctx, func(tx Tx) error {
		got, err := tx.Sale(ctx)
		require.NoError(t, err)
		require.Equal(t, cfg.UnitPrice.Dec(), got.UnitPrice.Dec())
		require.Equal(t, cfg.AvailableForSale, got.AvailableForSale)
		require.Equal(t, cfg.Duration, got.Duration)
		require.True(t, cfg.StartTime.Equal(got.StartTime))

		royalties, err := tx.Royalties(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, entries, royalties)

		return nil
	}))

	page, total, err := p.EventPage(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, model.EventSaleStarted, page[0].Name)
}

func TestPostgresBankRollback(t *testing.T) {
	p := newTestPostgres(t, common.HexToAddress("0x00000000000000000000000000000000000c0002"))
	ctx := context.Background()

	a := common.HexToAddress("0x00000000000000000000000000000000000a0002")
	b := common.HexToAddress("0x00000000000000000000000000000000000b0002")

	require.NoError(t, p.Fund(ctx, a, uint256.NewInt(100)))

	balance := func(addr common.Address) uint64 {
		var bal *uint256.Int
		require.NoError(t, p.Atomic(ctx, func(tx Tx) (err error) {
			bal, err = tx.Bank().BalanceOf(ctx, addr)
			return err
		}))
		return bal.Uint64()
	}

	startA, startB := balance(a), balance(b)

	err := p.Atomic(ctx, func(tx Tx) error {
		if err := tx.Bank().Transfer(ctx, a, b, uint256.NewInt(40)); err != nil {
			return err
		}
		return tx.Bank().Transfer(ctx, a, b, new(uint256.Int).SetAllOne())
	})
	require.ErrorIs(t, err, model.ErrTransferFailed)

	require.Equal(t, startA, balance(a))
	require.Equal(t, startB, balance(b))
}

func TestPostgresEventPageBounds(t *testing.T) {
	p := newTestPostgres(t, common.HexToAddress("0x00000000000000000000000000000000000c0003"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Atomic(ctx, func(tx Tx) error {
			return tx.Emit(ctx, model.NewPriceEvent(uint256.NewInt(uint64(i+1)), nowForTest))
		}))
	}

	page, total, err := p.EventPage(ctx, 1, 1<<40)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, page, 3)

	page, total, err = p.EventPage(ctx, math.MaxInt, 1000)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Empty(t, page)
}
