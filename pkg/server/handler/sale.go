package handler

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/model"
	"github.com/IlyushaZ/token-sale/pkg/service"
)

// maxDurationSec is the longest duration_sec that still fits a time.Duration.
const maxDurationSec = math.MaxInt64 / int64(time.Second)

type StartReq struct {
	DurationSec  int64            `json:"duration_sec"`
	Price        string           `json:"price"`
	TokenAddress common.Address   `json:"token_address"`
	TokenID      uint64           `json:"token_id"`
	Recipients   []common.Address `json:"recipients"`
	BPS          []uint64         `json:"bps"`
}

type ConfigResp struct {
	DurationSec      int64          `json:"duration_sec"`
	StartTime        time.Time      `json:"start_time"`
	Price            string         `json:"price"`
	TokenAddress     common.Address `json:"token_address"`
	TokenID          uint64         `json:"token_id"`
	AvailableForSale uint64         `json:"available_for_sale"`
}

type SaleResp struct {
	Contract common.Address `json:"contract"`
	Owner    common.Address `json:"owner"`
	Config   ConfigResp     `json:"config"`
	Active   bool           `json:"active"`
	Balance  string         `json:"balance"`
}

type RoyaltyResp struct {
	Recipient common.Address `json:"recipient"`
	BPS       uint64         `json:"bps,omitempty"`
	Amount    string         `json:"amount,omitempty"`
}

type ReceiptResp struct {
	Buyer  common.Address `json:"buyer"`
	Amount uint64         `json:"amount"`
	Cost   string         `json:"cost"`
	Change string         `json:"change"`
	Fees   []RoyaltyResp  `json:"fees"`
	Dust   string         `json:"dust"`
}

type WithdrawResp struct {
	Withdrawn string `json:"withdrawn"`
}

func configResp(c model.SaleConfig) ConfigResp {
	return ConfigResp{
		DurationSec:      int64(c.Duration / time.Second),
		StartTime:        c.StartTime,
		Price:            c.UnitPrice.Dec(),
		TokenAddress:     c.TokenAddress,
		TokenID:          c.TokenID,
		AvailableForSale: c.AvailableForSale,
	}
}

func receiptResp(r model.Receipt) ReceiptResp {
	resp := ReceiptResp{
		Buyer:  r.Buyer,
		Amount: r.Amount,
		Cost:   r.Cost.Dec(),
		Change: r.Change.Dec(),
		Fees:   make([]RoyaltyResp, 0, len(r.Fees)),
		Dust:   r.Dust.Dec(),
	}

	for _, f := range r.Fees {
		resp.Fees = append(resp.Fees, RoyaltyResp{Recipient: f.Recipient, Amount: f.Amount.Dec()})
	}

	return resp
}

// post wraps handlers of mutating operations: every one of them is POST and names its caller.
func post(fn func(w http.ResponseWriter, r *http.Request, caller common.Address)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "only POST method allowed", http.StatusMethodNotAllowed)
			return
		}

		caller, err := parseAddress(r.URL.Query(), "caller")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		fn(w, r, caller)
	}
}

func get(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "only GET method allowed", http.StatusMethodNotAllowed)
			return
		}

		fn(w, r)
	}
}

func SaleStart(svc service.Sale) http.HandlerFunc {
	return post(func(w http.ResponseWriter, r *http.Request, caller common.Address) {
		var req StartReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("can't decode request: %v", err), http.StatusBadRequest)
			return
		}

		if req.DurationSec <= 0 || req.DurationSec > maxDurationSec {
			writeError(w, model.ErrInvalidDuration)
			return
		}

		price, err := uint256.FromDecimal(req.Price)
		if err != nil {
			http.Error(w, fmt.Sprintf("can't parse price: %v", err), http.StatusBadRequest)
			return
		}

		cfg, err := svc.Start(r.Context(), caller, model.StartParams{
			Duration:     time.Duration(req.DurationSec) * time.Second,
			UnitPrice:    price,
			TokenAddress: req.TokenAddress,
			TokenID:      req.TokenID,
			Recipients:   req.Recipients,
			BPS:          req.BPS,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, configResp(cfg))
	})
}

func SaleSetPrice(svc service.Sale) http.HandlerFunc {
	return post(func(w http.ResponseWriter, r *http.Request, caller common.Address) {
		price, err := parseWei(r.URL.Query(), "price")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := svc.SetItemPrice(r.Context(), caller, price); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func SaleBuy(svc service.Sale) http.HandlerFunc {
	return post(func(w http.ResponseWriter, r *http.Request, caller common.Address) {
		q := r.URL.Query()

		amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("can't parse amount: %v", err), http.StatusBadRequest)
			return
		}

		value, err := parseWei(q, "value")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		receipt, err := svc.Buy(r.Context(), caller, amount, value)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, receiptResp(receipt))
	})
}

func SalePay(svc service.Sale) http.HandlerFunc {
	return post(func(w http.ResponseWriter, r *http.Request, caller common.Address) {
		value, err := parseWei(r.URL.Query(), "value")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		receipt, err := svc.Pay(r.Context(), caller, value)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, receiptResp(receipt))
	})
}

func SaleDispatch(svc service.Sale) http.HandlerFunc {
	return post(func(w http.ResponseWriter, r *http.Request, caller common.Address) {
		q := r.URL.Query()

		calldata, err := hexutil.Decode(q.Get("data"))
		if err != nil {
			http.Error(w, fmt.Sprintf("can't decode data: %v", err), http.StatusBadRequest)
			return
		}

		value, err := parseWei(q, "value")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		receipt, err := svc.Dispatch(r.Context(), caller, calldata, value)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, receiptResp(receipt))
	})
}

func SaleWithdraw(svc service.Sale) http.HandlerFunc {
	return post(func(w http.ResponseWriter, r *http.Request, caller common.Address) {
		amount, err := parseWei(r.URL.Query(), "amount")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := svc.Withdraw(r.Context(), caller, amount); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, WithdrawResp{Withdrawn: amount.Dec()})
	})
}

func SaleWithdrawAll(svc service.Sale) http.HandlerFunc {
	return post(func(w http.ResponseWriter, r *http.Request, caller common.Address) {
		withdrawn, err := svc.WithdrawAll(r.Context(), caller)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, WithdrawResp{Withdrawn: withdrawn.Dec()})
	})
}

func SaleInfo(svc service.Sale) http.HandlerFunc {
	return get(func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.Info(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, SaleResp{
			Contract: info.Contract,
			Owner:    info.Owner,
			Config:   configResp(info.Config),
			Active:   info.Active,
			Balance:  info.Balance.Dec(),
		})
	})
}

func SaleRoyalties(svc service.Sale) http.HandlerFunc {
	return get(func(w http.ResponseWriter, r *http.Request) {
		tokenID, err := strconv.ParseUint(r.URL.Query().Get("token_id"), 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("can't parse token_id: %v", err), http.StatusBadRequest)
			return
		}

		entries, err := svc.Royalties(r.Context(), tokenID)
		if err != nil {
			writeError(w, err)
			return
		}

		resp := make([]RoyaltyResp, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, RoyaltyResp{Recipient: e.Recipient, BPS: e.BPS})
		}

		writeJSON(w, resp)
	})
}

func SaleEventsListPage(svc service.Sale) http.HandlerFunc {
	return get(func(w http.ResponseWriter, r *http.Request) {
		pageNum, pageSize, err := parsePage(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var resp ListPageResp[model.Event]

		resp.Page, resp.Total, err = svc.Events(r.Context(), pageNum, pageSize)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, resp)
	})
}
