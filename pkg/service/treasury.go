package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/database"
	"github.com/IlyushaZ/token-sale/pkg/model"
)

// Withdraw pays amount of the proceeds to the owner. Royalties are paid out at purchase
// time, so the whole balance of the sale instance is spendable.
func (sg *SaleGeneric) Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	if err := sg.Ownership.Authorize(caller); err != nil {
		return err
	}

	if amount == nil || amount.IsZero() {
		return model.ErrInvalidAmount
	}

	return sg.Store.Atomic(ctx, func(tx database.Tx) error {
		bank := tx.Bank()

		bal, err := bank.BalanceOf(ctx, sg.Contract)
		if err != nil {
			return err
		}

		if bal.Lt(amount) {
			return model.ErrInsufficientBalance
		}

		return bank.Transfer(ctx, sg.Contract, caller, amount)
	})
}

// WithdrawAll pays the whole balance to the owner. An empty balance is not an error.
func (sg *SaleGeneric) WithdrawAll(ctx context.Context, caller common.Address) (withdrawn *uint256.Int, err error) {
	if err := sg.Ownership.Authorize(caller); err != nil {
		return nil, err
	}

	err = sg.Store.Atomic(ctx, func(tx database.Tx) error {
		bank := tx.Bank()

		withdrawn, err = bank.BalanceOf(ctx, sg.Contract)
		if err != nil {
			return err
		}

		if withdrawn.IsZero() {
			return nil
		}

		return bank.Transfer(ctx, sg.Contract, caller, withdrawn)
	})
	if err != nil {
		return nil, err
	}

	return withdrawn, nil
}
