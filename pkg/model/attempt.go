package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	RouteBuy      = "buy"
	RouteDirect   = "direct"
	RouteDispatch = "dispatch"
)

// Attempt is a single purchase attempt, committed or rejected.
type Attempt struct {
	Base
	Caller common.Address
	Route  string
	Amount uint64
	Paid   uint256.Int
	Error  string
}
