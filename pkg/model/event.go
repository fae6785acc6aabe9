package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	EventSaleStarted       = "SaleStarted"
	EventNewPrice          = "NewPrice"
	EventSold              = "Sold"
	EventSecondarySaleFees = "SecondarySaleFees"
)

type Event struct {
	Base
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
}

func SaleStartedEvent(cfg SaleConfig, at time.Time) Event {
	return Event{
		Base: Base{CreatedAt: at},
		Name: EventSaleStarted,
		Attributes: map[string]string{
			"token":     cfg.TokenAddress.Hex(),
			"tokenId":   strconv.FormatUint(cfg.TokenID, 10),
			"price":     cfg.UnitPrice.Dec(),
			"available": strconv.FormatUint(cfg.AvailableForSale, 10),
			"duration":  strconv.FormatInt(int64(cfg.Duration.Seconds()), 10),
		},
	}
}

func NewPriceEvent(price *uint256.Int, at time.Time) Event {
	return Event{
		Base:       Base{CreatedAt: at},
		Name:       EventNewPrice,
		Attributes: map[string]string{"price": price.Dec()},
	}
}

func SoldEvent(buyer common.Address, amount uint64, cost *uint256.Int, at time.Time) Event {
	return Event{
		Base: Base{CreatedAt: at},
		Name: EventSold,
		Attributes: map[string]string{
			"buyer":  buyer.Hex(),
			"amount": strconv.FormatUint(amount, 10),
			"paid":   cost.Dec(),
		},
	}
}

// SecondarySaleFeesEvent lists recipients and amounts as comma separated values in the
// same order as the royalty ledger.
func SecondarySaleFeesEvent(tokenID uint64, fees []RoyaltyPayment, at time.Time) Event {
	recipients := make([]string, 0, len(fees))
	amounts := make([]string, 0, len(fees))
	for _, f := range fees {
		recipients = append(recipients, f.Recipient.Hex())
		amounts = append(amounts, f.Amount.Dec())
	}

	return Event{
		Base: Base{CreatedAt: at},
		Name: EventSecondarySaleFees,
		Attributes: map[string]string{
			"tokenId":    strconv.FormatUint(tokenID, 10),
			"recipients": strings.Join(recipients, ","),
			"amounts":    strings.Join(amounts, ","),
		},
	}
}
