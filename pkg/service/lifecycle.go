package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/database"
	"github.com/IlyushaZ/token-sale/pkg/model"
)

// Start initializes the sale exactly once. The whole balance the sale instance holds
// of the token at this moment becomes available for sale.
func (sg *SaleGeneric) Start(ctx context.Context, caller common.Address, p model.StartParams) (cfg model.SaleConfig, err error) {
	if err := sg.Ownership.Authorize(caller); err != nil {
		return cfg, err
	}

	duration := p.Duration.Truncate(time.Second)
	if duration <= 0 {
		return cfg, model.ErrInvalidDuration
	}

	if p.TokenAddress == (common.Address{}) {
		return cfg, model.ErrInvalidCustodian
	}

	err = sg.Store.Atomic(ctx, func(tx database.Tx) error {
		inventory, err := tx.Custodian(p.TokenAddress).BalanceOf(ctx, sg.Contract, p.TokenID)
		if err != nil {
			return err
		}

		if inventory < 1 {
			return model.ErrInsufficientInventory
		}

		if p.UnitPrice == nil || p.UnitPrice.IsZero() {
			return model.ErrInvalidPrice
		}

		current, err := tx.Sale(ctx)
		if err != nil {
			return err
		}

		if current.Initialized() {
			return model.ErrAlreadyStarted
		}

		entries, err := newRoyaltyEntries(p.Recipients, p.BPS)
		if err != nil {
			return err
		}

		now := sg.now()
		cfg = model.SaleConfig{
			Duration:         duration,
			StartTime:        now,
			UnitPrice:        *p.UnitPrice,
			TokenAddress:     p.TokenAddress,
			TokenID:          p.TokenID,
			AvailableForSale: inventory,
		}

		if err := tx.PutSale(ctx, cfg); err != nil {
			return err
		}

		if err := tx.PutRoyalties(ctx, p.TokenID, entries); err != nil {
			return err
		}

		return tx.Emit(ctx, model.SaleStartedEvent(cfg, now))
	})
	if err != nil {
		return model.SaleConfig{}, err
	}

	return cfg, nil
}

func (sg *SaleGeneric) SetItemPrice(ctx context.Context, caller common.Address, price *uint256.Int) error {
	if err := sg.Ownership.Authorize(caller); err != nil {
		return err
	}

	if price == nil || price.IsZero() {
		return model.ErrInvalidPrice
	}

	return sg.Store.Atomic(ctx, func(tx database.Tx) error {
		cfg, err := tx.Sale(ctx)
		if err != nil {
			return err
		}

		if cfg.UnitPrice.Eq(price) {
			return model.ErrPriceAlreadySet
		}

		cfg.UnitPrice = *price
		if err := tx.PutSale(ctx, cfg); err != nil {
			return err
		}

		return tx.Emit(ctx, model.NewPriceEvent(price, sg.now()))
	})
}
