package service

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

type SaleLogging struct {
	Sale
}

func logResult(log *slog.Logger, err error, failMsg, okMsg string) {
	if err != nil {
		log.Error(failMsg, slog.Any("error", err))
	} else {
		log.Debug(okMsg)
	}
}

func (sl *SaleLogging) Start(ctx context.Context, caller common.Address, p model.StartParams) (cfg model.SaleConfig, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("caller", caller.Hex()),
			slog.String("token", p.TokenAddress.Hex()),
			slog.Uint64("token_id", p.TokenID),
			slog.Duration("duration", p.Duration),
			slog.String("price", orZero(p.UnitPrice).Dec()),
			slog.Int("royalties", len(p.Recipients)),
			slog.Uint64("available", cfg.AvailableForSale),
			slog.String("delay", time.Since(t0).String()),
		)

		logResult(log, err, "failed to start sale", "sale started")
	}(time.Now())

	return sl.Sale.Start(ctx, caller, p)
}

func (sl *SaleLogging) SetItemPrice(ctx context.Context, caller common.Address, price *uint256.Int) (err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("caller", caller.Hex()),
			slog.String("price", orZero(price).Dec()),
			slog.String("delay", time.Since(t0).String()),
		)

		logResult(log, err, "failed to set item price", "item price set")
	}(time.Now())

	return sl.Sale.SetItemPrice(ctx, caller, price)
}

func (sl *SaleLogging) Buy(ctx context.Context, caller common.Address, amount uint64, paid *uint256.Int) (r model.Receipt, err error) {
	defer func(t0 time.Time) {
		log := purchaseLog(caller, paid, r, t0).With(slog.Uint64("amount", amount))
		logResult(log, err, "failed to buy", "bought")
	}(time.Now())

	return sl.Sale.Buy(ctx, caller, amount, paid)
}

func (sl *SaleLogging) Pay(ctx context.Context, caller common.Address, paid *uint256.Int) (r model.Receipt, err error) {
	defer func(t0 time.Time) {
		log := purchaseLog(caller, paid, r, t0)
		logResult(log, err, "failed to buy via direct payment", "bought via direct payment")
	}(time.Now())

	return sl.Sale.Pay(ctx, caller, paid)
}

func (sl *SaleLogging) Dispatch(ctx context.Context, caller common.Address, calldata []byte, paid *uint256.Int) (r model.Receipt, err error) {
	defer func(t0 time.Time) {
		log := purchaseLog(caller, paid, r, t0).With(slog.String("calldata", hex.EncodeToString(calldata)))
		logResult(log, err, "failed to dispatch", "dispatched")
	}(time.Now())

	return sl.Sale.Dispatch(ctx, caller, calldata, paid)
}

func purchaseLog(caller common.Address, paid *uint256.Int, r model.Receipt, t0 time.Time) *slog.Logger {
	return slog.With(
		slog.String("caller", caller.Hex()),
		slog.String("paid", orZero(paid).Dec()),
		slog.String("cost", r.Cost.Dec()),
		slog.String("change", r.Change.Dec()),
		slog.String("delay", time.Since(t0).String()),
	)
}

func (sl *SaleLogging) Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) (err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("caller", caller.Hex()),
			slog.String("amount", orZero(amount).Dec()),
			slog.String("delay", time.Since(t0).String()),
		)

		logResult(log, err, "failed to withdraw", "withdrawn")
	}(time.Now())

	return sl.Sale.Withdraw(ctx, caller, amount)
}

func (sl *SaleLogging) WithdrawAll(ctx context.Context, caller common.Address) (withdrawn *uint256.Int, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("caller", caller.Hex()),
			slog.String("amount", orZero(withdrawn).Dec()),
			slog.String("delay", time.Since(t0).String()),
		)

		logResult(log, err, "failed to withdraw all", "withdrawn all")
	}(time.Now())

	return sl.Sale.WithdrawAll(ctx, caller)
}
