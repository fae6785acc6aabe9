package service

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

// Ownership is the single privileged identity of a sale instance. Every privileged
// operation calls Authorize before touching state.
type Ownership struct {
	Owner common.Address
}

func (o Ownership) Authorize(caller common.Address) error {
	if o.Owner == (common.Address{}) || caller != o.Owner {
		return model.ErrAccessDenied
	}
	return nil
}
