package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

var ErrLimitExceeded = errors.New("caller exceeded purchases limit")

// PurchaseLimiter is satisfied by limiter.Limiter.
type PurchaseLimiter interface {
	Reserve(ctx context.Context, caller common.Address) (bool, error)
	Release(ctx context.Context, caller common.Address) error
}

// SaleLimiting is a wrapper over Sale service
// which makes sure that a caller can make no more than Limiter's limit purchases per window.
// A slot is reserved before the purchase runs, so concurrent purchases of one caller can't
// all slip under the limit. Rejected purchases give their slot back.
//
// If failed to check limits, the behavior depends on FailOpen flag. If set, current request is allowed.
// Otherwise, an error will be returned.
type SaleLimiting struct {
	Sale

	Limiter  PurchaseLimiter
	FailOpen bool
}

func (sl *SaleLimiting) Buy(ctx context.Context, caller common.Address, amount uint64, paid *uint256.Int) (model.Receipt, error) {
	return sl.limited(ctx, caller, func() (model.Receipt, error) {
		return sl.Sale.Buy(ctx, caller, amount, paid)
	})
}

func (sl *SaleLimiting) Pay(ctx context.Context, caller common.Address, paid *uint256.Int) (model.Receipt, error) {
	return sl.limited(ctx, caller, func() (model.Receipt, error) {
		return sl.Sale.Pay(ctx, caller, paid)
	})
}

func (sl *SaleLimiting) Dispatch(ctx context.Context, caller common.Address, calldata []byte, paid *uint256.Int) (model.Receipt, error) {
	return sl.limited(ctx, caller, func() (model.Receipt, error) {
		return sl.Sale.Dispatch(ctx, caller, calldata, paid)
	})
}

func (sl *SaleLimiting) limited(ctx context.Context, caller common.Address, purchase func() (model.Receipt, error)) (model.Receipt, error) {
	reserved, err := sl.Limiter.Reserve(ctx, caller)
	if err != nil {
		if !sl.FailOpen {
			return model.Receipt{}, fmt.Errorf("can't reserve caller's purchase: %w", err)
		}

		slog.Error("can't reserve caller's purchase", slog.Any("error", err))
		return purchase()
	}

	if !reserved {
		return model.Receipt{}, ErrLimitExceeded
	}

	r, err := purchase()
	if err != nil {
		if relErr := sl.Limiter.Release(ctx, caller); relErr != nil {
			slog.Error("can't release caller's purchase", slog.Any("error", relErr))
		}
		return r, err
	}

	return r, nil
}
