package model

// Kind identifies the class of a rejected operation. Callers match on kinds with errors.Is,
// while Reason keeps the exact message reported to the client.
type Kind string

const (
	KindAccessDenied           Kind = "AccessDenied"
	KindInvalidDuration        Kind = "InvalidDuration"
	KindInvalidCustodian       Kind = "InvalidCustodian"
	KindInsufficientInventory  Kind = "InsufficientInventory"
	KindInvalidPrice           Kind = "InvalidPrice"
	KindAlreadyStarted         Kind = "AlreadyStarted"
	KindInvalidShare           Kind = "InvalidShare"
	KindShareOverflow          Kind = "ShareOverflow"
	KindSaleNotActive          Kind = "SaleNotActive"
	KindAmountExceedsAvailable Kind = "AmountExceedsAvailable"
	KindInsufficientFunds      Kind = "InsufficientFunds"
	KindInvalidAmount          Kind = "InvalidAmount"
	KindInsufficientBalance    Kind = "InsufficientBalance"
	KindTransferFailed         Kind = "TransferFailed"
	KindNoMagic                Kind = "NoMagic"
	KindOverflow               Kind = "Overflow"
)

type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Is reports whether target is an *Error of the same kind, so every reason of a kind
// matches the kind's sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

var (
	ErrAccessDenied           = NewError(KindAccessDenied, "access denied")
	ErrInvalidDuration        = NewError(KindInvalidDuration, "sale duration must be != 0")
	ErrInvalidCustodian       = NewError(KindInvalidCustodian, "incorrect tokenToSale address")
	ErrInsufficientInventory  = NewError(KindInsufficientInventory, "not enough tokens")
	ErrInvalidPrice           = NewError(KindInvalidPrice, "invalid newItemPrice")
	ErrPriceAlreadySet        = NewError(KindInvalidPrice, "this itemPrice already set")
	ErrAlreadyStarted         = NewError(KindAlreadyStarted, "sale has already started")
	ErrInvalidShare           = NewError(KindInvalidShare, "fee bps must be < 10000")
	ErrSharesMismatch         = NewError(KindInvalidShare, "recipients and bps length mismatch")
	ErrInvalidRecipient       = NewError(KindInvalidShare, "invalid fee recipient")
	ErrShareOverflow          = NewError(KindShareOverflow, "fees sum must be < 10000")
	ErrSaleNotActive          = NewError(KindSaleNotActive, "sale is not active")
	ErrAmountExceedsAvailable = NewError(KindAmountExceedsAvailable, "amount exceeds available")
	ErrInsufficientFunds      = NewError(KindInsufficientFunds, "not enough funds")
	ErrNotEnoughEth           = NewError(KindInsufficientFunds, "not enough eth")
	ErrInvalidAmount          = NewError(KindInvalidAmount, "amount must be != 0")
	ErrInsufficientBalance    = NewError(KindInsufficientBalance, "not enough balance")
	ErrTransferFailed         = NewError(KindTransferFailed, "transfer failed")
	ErrNoMagic                = NewError(KindNoMagic, "no magic")
	ErrOverflow               = NewError(KindOverflow, "arithmetic overflow")
)
