package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/database"
	"github.com/IlyushaZ/token-sale/pkg/model"
)

const (
	DefaultPageNum  = 1
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

type Sale interface {
	Start(ctx context.Context, caller common.Address, params model.StartParams) (model.SaleConfig, error)
	SetItemPrice(ctx context.Context, caller common.Address, price *uint256.Int) error

	Buy(ctx context.Context, caller common.Address, amount uint64, paid *uint256.Int) (model.Receipt, error)
	// Pay buys as many whole units as paid covers and refunds the rest.
	Pay(ctx context.Context, caller common.Address, paid *uint256.Int) (model.Receipt, error)
	Dispatch(ctx context.Context, caller common.Address, calldata []byte, paid *uint256.Int) (model.Receipt, error)

	Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) error
	WithdrawAll(ctx context.Context, caller common.Address) (*uint256.Int, error)

	Info(ctx context.Context) (model.SaleInfo, error)
	Royalties(ctx context.Context, tokenID uint64) ([]model.RoyaltyEntry, error)
	Events(ctx context.Context, pageNum, pageSize int) ([]model.Event, int, error)
}

// SaleGeneric represents an implementation of Sale interface containing core logics
// which can be wrapped in other implementations contained in sale_*.go.
//
// Contract is the identity of the sale instance: it holds the units being sold and
// the proceeds until the owner withdraws them.
type SaleGeneric struct {
	Store     database.Store
	Contract  common.Address
	Ownership Ownership
	Attempts  database.AttemptRepository
	Now       func() time.Time
}

func (sg *SaleGeneric) now() time.Time {
	if sg.Now == nil {
		return time.Now()
	}
	return sg.Now()
}

func (sg *SaleGeneric) Info(ctx context.Context) (info model.SaleInfo, err error) {
	info.Contract = sg.Contract
	info.Owner = sg.Ownership.Owner

	err = sg.Store.Atomic(ctx, func(tx database.Tx) error {
		cfg, err := tx.Sale(ctx)
		if err != nil {
			return err
		}

		bal, err := tx.Bank().BalanceOf(ctx, sg.Contract)
		if err != nil {
			return err
		}

		info.Config = cfg
		info.Active = cfg.Active(sg.now())
		info.Balance = *bal

		return nil
	})

	return info, err
}

func (sg *SaleGeneric) Events(ctx context.Context, pageNum, pageSize int) ([]model.Event, int, error) {
	pageSize = min(pageSize, MaxPageSize)
	return sg.Store.EventPage(ctx, pageNum, pageSize)
}

func (sg *SaleGeneric) recordAttempt(ctx context.Context, caller common.Address, route string, amount uint64, paid *uint256.Int, err error) {
	if sg.Attempts == nil {
		return
	}

	a := model.Attempt{
		Base:   model.Base{CreatedAt: sg.now()},
		Caller: caller,
		Route:  route,
		Amount: amount,
		Paid:   *paid,
	}

	if err != nil {
		a.Error = err.Error()
	}

	if err := sg.Attempts.Add(ctx, a); err != nil {
		slog.Error("can't save purchase attempt", slog.Any("error", err))
	}
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
