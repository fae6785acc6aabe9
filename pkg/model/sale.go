package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BasisPoints is the denominator royalty shares are expressed in.
const BasisPoints = 10000

// SaleConfig is the persisted state of the sale instance. A zero Duration means the sale
// has never been started.
type SaleConfig struct {
	Duration         time.Duration
	StartTime        time.Time
	UnitPrice        uint256.Int
	TokenAddress     common.Address
	TokenID          uint64
	AvailableForSale uint64
}

func (c SaleConfig) Initialized() bool {
	return c.Duration > 0
}

func (c SaleConfig) EndTime() time.Time {
	return c.StartTime.Add(c.Duration)
}

// Active is computed from the persisted fields on every call: expiry by time or by
// exhausted supply is never written down.
func (c SaleConfig) Active(now time.Time) bool {
	return c.Initialized() && now.Before(c.EndTime()) && c.AvailableForSale > 0
}

type StartParams struct {
	Duration     time.Duration
	UnitPrice    *uint256.Int
	TokenAddress common.Address
	TokenID      uint64
	Recipients   []common.Address
	BPS          []uint64
}

// SaleInfo is a read view of the sale instance.
type SaleInfo struct {
	Contract common.Address
	Owner    common.Address
	Config   SaleConfig
	Active   bool
	Balance  uint256.Int
}

type RoyaltyEntry struct {
	Recipient common.Address
	BPS       uint64
}

type RoyaltyPayment struct {
	Recipient common.Address
	Amount    uint256.Int
}

// Receipt describes a committed purchase.
type Receipt struct {
	Buyer  common.Address
	Amount uint64
	Cost   uint256.Int
	Change uint256.Int
	Fees   []RoyaltyPayment
	Dust   uint256.Int
	Events []Event
}

func Recipients(entries []RoyaltyEntry) []common.Address {
	out := make([]common.Address, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Recipient)
	}
	return out
}

func Shares(entries []RoyaltyEntry) []uint64 {
	out := make([]uint64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.BPS)
	}
	return out
}
