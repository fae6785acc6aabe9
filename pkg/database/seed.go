package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Funding credits Amount of native currency to Holder.
type Funding struct {
	Holder common.Address
	Amount *uint256.Int
}

// SeedPlan describes the inventory and balances a fresh environment starts with.
type SeedPlan struct {
	Token    common.Address
	TokenID  uint64
	Holder   common.Address
	Quantity uint64
	Funds    []Funding
}

// ParseFunds parses comma separated address=wei pairs.
func ParseFunds(s string) ([]Funding, error) {
	if s == "" {
		return nil, nil
	}

	var funds []Funding

	for _, pair := range strings.Split(s, ",") {
		addr, wei, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid funding %q, expected address=wei", pair)
		}

		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid funding address %q", addr)
		}

		amount, err := uint256.FromDecimal(wei)
		if err != nil {
			return nil, fmt.Errorf("can't parse funding amount %q: %w", wei, err)
		}

		funds = append(funds, Funding{Holder: common.HexToAddress(addr), Amount: amount})
	}

	return funds, nil
}

func Seed(ctx context.Context, s Seeder, plan SeedPlan) error {
	if plan.Quantity > 0 {
		if err := s.Mint(ctx, plan.Token, plan.Holder, plan.TokenID, plan.Quantity); err != nil {
			return fmt.Errorf("can't mint %d of token %d: %w", plan.Quantity, plan.TokenID, err)
		}
	}

	for _, f := range plan.Funds {
		if err := s.Fund(ctx, f.Holder, f.Amount); err != nil {
			return fmt.Errorf("can't fund %s: %w", f.Holder.Hex(), err)
		}
	}

	return nil
}
