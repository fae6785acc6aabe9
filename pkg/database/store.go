package database

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

// Store persists a single sale instance together with the balances it moves.
type Store interface {
	// Atomic runs fn in one serialized transaction. If fn returns an error nothing it did is kept.
	Atomic(ctx context.Context, fn func(Tx) error) error
	EventPage(ctx context.Context, num, size int) ([]model.Event, int, error)
}

type Tx interface {
	Sale(ctx context.Context) (model.SaleConfig, error)
	PutSale(ctx context.Context, cfg model.SaleConfig) error

	// Royalties returns an empty list for unknown token ids.
	Royalties(ctx context.Context, tokenID uint64) ([]model.RoyaltyEntry, error)
	PutRoyalties(ctx context.Context, tokenID uint64, entries []model.RoyaltyEntry) error

	Bank() Bank
	Custodian(token common.Address) Custodian

	Emit(ctx context.Context, evt model.Event) error
}

// Bank moves native currency between identities.
type Bank interface {
	BalanceOf(ctx context.Context, holder common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
}

// Custodian holds the units of one multi-token contract.
type Custodian interface {
	BalanceOf(ctx context.Context, holder common.Address, tokenID uint64) (uint64, error)
	Transfer(ctx context.Context, from, to common.Address, tokenID, quantity uint64) error
}

// Seeder provisions balances outside of the sale flow.
type Seeder interface {
	Mint(ctx context.Context, token, holder common.Address, tokenID, quantity uint64) error
	Fund(ctx context.Context, holder common.Address, amount *uint256.Int) error
}
