package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/database"
	"github.com/IlyushaZ/token-sale/pkg/model"
)

var basisPoints = uint256.NewInt(model.BasisPoints)

// newRoyaltyEntries validates recipients and their shares. Every share and the sum of
// all shares must stay below model.BasisPoints.
func newRoyaltyEntries(recipients []common.Address, bps []uint64) ([]model.RoyaltyEntry, error) {
	if len(recipients) != len(bps) {
		return nil, model.ErrSharesMismatch
	}

	entries := make([]model.RoyaltyEntry, 0, len(recipients))

	var sum uint64
	for i, r := range recipients {
		if r == (common.Address{}) {
			return nil, model.ErrInvalidRecipient
		}

		if bps[i] >= model.BasisPoints {
			return nil, model.ErrInvalidShare
		}

		sum += bps[i]
		if sum >= model.BasisPoints {
			return nil, model.ErrShareOverflow
		}

		entries = append(entries, model.RoyaltyEntry{Recipient: r, BPS: bps[i]})
	}

	return entries, nil
}

// splitRoyalties computes cost*bps/10000 for every entry. dust is what truncating each
// share separately keeps on top of truncating the aggregate share once.
func splitRoyalties(cost *uint256.Int, entries []model.RoyaltyEntry) (fees []model.RoyaltyPayment, dust *uint256.Int) {
	fees = make([]model.RoyaltyPayment, 0, len(entries))

	var (
		paid     = new(uint256.Int)
		totalBPS uint64
	)

	for _, e := range entries {
		// bps < 10000, so the share never exceeds cost
		share, _ := new(uint256.Int).MulDivOverflow(cost, uint256.NewInt(e.BPS), basisPoints)

		fees = append(fees, model.RoyaltyPayment{Recipient: e.Recipient, Amount: *share})
		paid.Add(paid, share)
		totalBPS += e.BPS
	}

	aggregate, _ := new(uint256.Int).MulDivOverflow(cost, uint256.NewInt(totalBPS), basisPoints)

	return fees, new(uint256.Int).Sub(aggregate, paid)
}

func payRoyalties(ctx context.Context, bank database.Bank, from common.Address, fees []model.RoyaltyPayment) error {
	for _, f := range fees {
		if f.Amount.IsZero() {
			continue
		}

		if err := bank.Transfer(ctx, from, f.Recipient, &f.Amount); err != nil {
			return err
		}
	}

	return nil
}

func (sg *SaleGeneric) Royalties(ctx context.Context, tokenID uint64) (entries []model.RoyaltyEntry, err error) {
	err = sg.Store.Atomic(ctx, func(tx database.Tx) error {
		entries, err = tx.Royalties(ctx, tokenID)
		return err
	})

	return entries, err
}
