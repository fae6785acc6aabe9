package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/database"
	"github.com/IlyushaZ/token-sale/pkg/model"
)

// amountFunc resolves how many units a purchase asks for once the sale is known to be active.
type amountFunc func(cfg model.SaleConfig, paid *uint256.Int) (uint64, error)

func fixedAmount(amount uint64) amountFunc {
	return func(model.SaleConfig, *uint256.Int) (uint64, error) {
		return amount, nil
	}
}

// affordableAmount is used by direct payments: as many whole units as paid covers.
func affordableAmount(cfg model.SaleConfig, paid *uint256.Int) (uint64, error) {
	if paid.Lt(&cfg.UnitPrice) {
		return 0, model.ErrNotEnoughEth
	}

	amount := new(uint256.Int).Div(paid, &cfg.UnitPrice)
	if !amount.IsUint64() {
		return 0, model.ErrAmountExceedsAvailable
	}

	return amount.Uint64(), nil
}

func (sg *SaleGeneric) Buy(ctx context.Context, caller common.Address, amount uint64, paid *uint256.Int) (model.Receipt, error) {
	return sg.purchase(ctx, caller, model.RouteBuy, orZero(paid), fixedAmount(amount))
}

func (sg *SaleGeneric) Pay(ctx context.Context, caller common.Address, paid *uint256.Int) (model.Receipt, error) {
	return sg.purchase(ctx, caller, model.RouteDirect, orZero(paid), affordableAmount)
}

// purchase executes one purchase in a single transaction. Once the sale is known to be
// active, the attached value is moved to the sale instance; any failure afterwards rolls
// that back together with the rest of the changes. A caller whose balance doesn't cover
// the attached value gets InsufficientFunds.
func (sg *SaleGeneric) purchase(ctx context.Context, caller common.Address, route string, paid *uint256.Int, resolve amountFunc) (receipt model.Receipt, err error) {
	var amount uint64

	defer func() {
		sg.recordAttempt(ctx, caller, route, amount, paid, err)
	}()

	err = sg.Store.Atomic(ctx, func(tx database.Tx) error {
		cfg, err := tx.Sale(ctx)
		if err != nil {
			return err
		}

		now := sg.now()
		if !cfg.Active(now) {
			return model.ErrSaleNotActive
		}

		bank := tx.Bank()

		callerBal, err := bank.BalanceOf(ctx, caller)
		if err != nil {
			return err
		}

		if callerBal.Lt(paid) {
			return model.ErrInsufficientFunds
		}

		if err := bank.Transfer(ctx, caller, sg.Contract, paid); err != nil {
			return err
		}

		amount, err = resolve(cfg, paid)
		if err != nil {
			return err
		}

		if amount == 0 || amount > cfg.AvailableForSale {
			return model.ErrAmountExceedsAvailable
		}

		cost, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(amount), &cfg.UnitPrice)
		if overflow {
			return model.ErrOverflow
		}

		if paid.Lt(cost) {
			return model.ErrInsufficientFunds
		}

		cfg.AvailableForSale -= amount
		if err := tx.PutSale(ctx, cfg); err != nil {
			return err
		}

		if err := tx.Custodian(cfg.TokenAddress).Transfer(ctx, sg.Contract, caller, cfg.TokenID, amount); err != nil {
			return err
		}

		entries, err := tx.Royalties(ctx, cfg.TokenID)
		if err != nil {
			return err
		}

		fees, dust := splitRoyalties(cost, entries)
		if err := payRoyalties(ctx, bank, sg.Contract, fees); err != nil {
			return err
		}

		change := new(uint256.Int).Sub(paid, cost)
		if !change.IsZero() {
			if err := bank.Transfer(ctx, sg.Contract, caller, change); err != nil {
				return err
			}
		}

		evts := []model.Event{
			model.SoldEvent(caller, amount, cost, now),
			model.SecondarySaleFeesEvent(cfg.TokenID, fees, now),
		}
		for _, evt := range evts {
			if err := tx.Emit(ctx, evt); err != nil {
				return err
			}
		}

		receipt = model.Receipt{
			Buyer:  caller,
			Amount: amount,
			Cost:   *cost,
			Change: *change,
			Fees:   fees,
			Dust:   *dust,
			Events: evts,
		}

		return nil
	})
	if err != nil {
		return model.Receipt{}, err
	}

	return receipt, nil
}
