package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/model"
	"github.com/IlyushaZ/token-sale/pkg/service"
)

type ListPageResp[T any] struct {
	Page  []T `json:"page"`
	Total int `json:"total"`
}

type errorResp struct {
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason"`
}

func parseAddress(q url.Values, key string) (common.Address, error) {
	v := q.Get(key)
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%s is not a hex address: %q", key, v)
	}
	return common.HexToAddress(v), nil
}

// parseWei parses an optional decimal amount, absent means zero.
func parseWei(q url.Values, key string) (*uint256.Int, error) {
	v := q.Get(key)
	if v == "" {
		return new(uint256.Int), nil
	}

	amount, err := uint256.FromDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("can't parse %s: %w", key, err)
	}

	return amount, nil
}

func parsePage(q url.Values) (pageNum, pageSize int, err error) {
	pageNum, pageSize = service.DefaultPageNum, service.DefaultPageSize

	if pn := q.Get("page_num"); pn != "" {
		pageNum, err = strconv.Atoi(pn)
		if err != nil {
			return 0, 0, fmt.Errorf("can't parse page_num: %w", err)
		}
	}

	if ps := q.Get("page_size"); ps != "" {
		pageSize, err = strconv.Atoi(ps)
		if err != nil {
			return 0, 0, fmt.Errorf("can't parse page_size: %w", err)
		}
	}

	if pageNum < 1 || pageSize < 1 {
		return 0, 0, errors.New("page_num and page_size must be positive")
	}

	if pageSize > service.MaxPageSize {
		return 0, 0, fmt.Errorf("page_size must not exceed %d", service.MaxPageSize)
	}

	return pageNum, pageSize, nil
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrAccessDenied), errors.Is(err, model.ErrNoMagic):
		return http.StatusForbidden
	case errors.Is(err, model.ErrSaleNotActive), errors.Is(err, model.ErrAlreadyStarted):
		return http.StatusPreconditionFailed
	case errors.Is(err, model.ErrInsufficientFunds), errors.Is(err, model.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrTransferFailed):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidDuration),
		errors.Is(err, model.ErrInvalidCustodian),
		errors.Is(err, model.ErrInsufficientInventory),
		errors.Is(err, model.ErrInvalidPrice),
		errors.Is(err, model.ErrInvalidShare),
		errors.Is(err, model.ErrShareOverflow),
		errors.Is(err, model.ErrAmountExceedsAvailable),
		errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrOverflow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResp{Reason: err.Error()}

	var e *model.Error
	if errors.As(err, &e) {
		resp.Kind = string(e.Kind)
		resp.Reason = e.Reason
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errorStatus(err))
	json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("can't encode response: %v", err), http.StatusInternalServerError)
		return
	}
}
