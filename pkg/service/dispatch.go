package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

// saleABI describes the operations a calldata payload may name. Only the operations in
// dispatchable can actually be reached through Dispatch.
const saleABI = `[
	{"type":"function","name":"buy","stateMutability":"payable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdrawAll","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"setItemPrice","stateMutability":"nonpayable","inputs":[{"name":"newItemPrice","type":"uint256"}],"outputs":[]}
]`

type operation int

const (
	opUnknown operation = iota
	opBuy
	opWithdraw
	opWithdrawAll
	opSetItemPrice
)

var (
	parsedABI = mustParseABI(saleABI)

	operations = map[string]operation{
		"buy":          opBuy,
		"withdraw":     opWithdraw,
		"withdrawAll":  opWithdrawAll,
		"setItemPrice": opSetItemPrice,
	}

	dispatchable = map[operation]bool{
		opBuy: true,
	}
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid sale ABI: %v", err))
	}
	return parsed
}

// EncodeCall builds calldata for one of the sale operations, e.g. EncodeCall("buy", big.NewInt(1)).
func EncodeCall(name string, args ...any) ([]byte, error) {
	return parsedABI.Pack(name, args...)
}

func lookupOperation(calldata []byte) (operation, *abi.Method) {
	if len(calldata) < 4 {
		return opUnknown, nil
	}

	method, err := parsedABI.MethodById(calldata[:4])
	if err != nil {
		return opUnknown, nil
	}

	return operations[method.Name], method
}

// Dispatch runs an encoded operation on behalf of the owner. The operation is checked
// against dispatchable before its arguments are decoded.
func (sg *SaleGeneric) Dispatch(ctx context.Context, caller common.Address, calldata []byte, paid *uint256.Int) (model.Receipt, error) {
	if err := sg.Ownership.Authorize(caller); err != nil {
		return model.Receipt{}, model.ErrNoMagic
	}

	op, method := lookupOperation(calldata)
	if !dispatchable[op] {
		return model.Receipt{}, model.ErrNoMagic
	}

	args, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return model.Receipt{}, fmt.Errorf("%w: %v", model.ErrNoMagic, err)
	}

	switch op {
	case opBuy:
		amount, ok := args[0].(*big.Int)
		if !ok {
			return model.Receipt{}, model.ErrNoMagic
		}

		if !amount.IsUint64() {
			return model.Receipt{}, model.ErrAmountExceedsAvailable
		}

		return sg.purchase(ctx, caller, model.RouteDispatch, orZero(paid), fixedAmount(amount.Uint64()))
	default:
		return model.Receipt{}, model.ErrNoMagic
	}
}
