package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

const (
	royaltiesKeyPrefix = "royalties:"
)

// SaleCaching caches royalty lists in redis. A list never changes once the sale has
// started, so only non-empty lists are cached and nothing has to be invalidated.
// Errors occurring when calling redis are not returned.
type SaleCaching struct {
	Sale

	Redis    *redis.Client
	Contract common.Address
	TTL      time.Duration
}

func (sc *SaleCaching) Royalties(ctx context.Context, tokenID uint64) ([]model.RoyaltyEntry, error) {
	key := royaltiesCacheKey(sc.Contract, tokenID)

	val, err := sc.Redis.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// do nothing
	case err != nil:
		slog.Error("can't get royalties from redis", slog.Any("error", err))

	default:
		entries, err := parseRoyaltiesCacheVal(val)
		if err == nil {
			return entries, nil
		}

		slog.Error("can't parse royalties cache value", slog.String("val", val), slog.Any("error", err))
	}

	entries, err := sc.Sale.Royalties(ctx, tokenID)
	if err != nil || len(entries) == 0 {
		return entries, err
	}

	if err := sc.Redis.Set(ctx, key, formatRoyaltiesCacheVal(entries), sc.TTL).Err(); err != nil {
		slog.Error("can't set royalties in redis", slog.Any("error", err))
	}

	return entries, nil
}

// royalties:contract:token_id
func royaltiesCacheKey(contract common.Address, tokenID uint64) string {
	return royaltiesKeyPrefix + contract.Hex() + ":" + strconv.FormatUint(tokenID, 10)
}

// recipient|bps,recipient|bps
func formatRoyaltiesCacheVal(entries []model.RoyaltyEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Recipient.Hex()+"|"+strconv.FormatUint(e.BPS, 10))
	}
	return strings.Join(parts, ",")
}

func parseRoyaltiesCacheVal(val string) ([]model.RoyaltyEntry, error) {
	if val == "" {
		return nil, errors.New("empty value")
	}

	parts := strings.Split(val, ",")
	entries := make([]model.RoyaltyEntry, 0, len(parts))

	for _, p := range parts {
		split := strings.Split(p, "|")
		if len(split) != 2 {
			return nil, fmt.Errorf("expected entry to consist of 2 parts, got %d", len(split))
		}

		if !common.IsHexAddress(split[0]) {
			return nil, fmt.Errorf("can't parse recipient %q", split[0])
		}

		bps, err := strconv.ParseUint(split[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("can't parse bps: %w", err)
		}

		entries = append(entries, model.RoyaltyEntry{Recipient: common.HexToAddress(split[0]), BPS: bps})
	}

	return entries, nil
}
