package service

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	sold       prometheus.Counter
}

// NewMetrics creates sale metrics and registers them in reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "token_sale",
			Name:      "operations_total",
			Help:      "Sale operations segmented by operation and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "token_sale",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution of sale operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		sold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "token_sale",
			Name:      "units_sold_total",
			Help:      "Units transferred to buyers.",
		}),
	}

	reg.MustRegister(m.operations, m.latency, m.sold)

	return m
}

func (m *Metrics) observe(op string, t0 time.Time, err error) {
	m.operations.WithLabelValues(op, outcome(err)).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(t0).Seconds())
}

// outcome is "ok" or the kind of the rejection.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}

	var se *model.Error
	if errors.As(err, &se) {
		return string(se.Kind)
	}

	if errors.Is(err, ErrLimitExceeded) {
		return "LimitExceeded"
	}

	return "error"
}

type SaleMetrics struct {
	Sale

	Metrics *Metrics
}

func (sm *SaleMetrics) Start(ctx context.Context, caller common.Address, p model.StartParams) (cfg model.SaleConfig, err error) {
	defer func(t0 time.Time) { sm.Metrics.observe("start", t0, err) }(time.Now())
	return sm.Sale.Start(ctx, caller, p)
}

func (sm *SaleMetrics) SetItemPrice(ctx context.Context, caller common.Address, price *uint256.Int) (err error) {
	defer func(t0 time.Time) { sm.Metrics.observe("set_item_price", t0, err) }(time.Now())
	return sm.Sale.SetItemPrice(ctx, caller, price)
}

func (sm *SaleMetrics) Buy(ctx context.Context, caller common.Address, amount uint64, paid *uint256.Int) (r model.Receipt, err error) {
	defer func(t0 time.Time) { sm.purchased("buy", t0, r, err) }(time.Now())
	return sm.Sale.Buy(ctx, caller, amount, paid)
}

func (sm *SaleMetrics) Pay(ctx context.Context, caller common.Address, paid *uint256.Int) (r model.Receipt, err error) {
	defer func(t0 time.Time) { sm.purchased("pay", t0, r, err) }(time.Now())
	return sm.Sale.Pay(ctx, caller, paid)
}

func (sm *SaleMetrics) Dispatch(ctx context.Context, caller common.Address, calldata []byte, paid *uint256.Int) (r model.Receipt, err error) {
	defer func(t0 time.Time) { sm.purchased("dispatch", t0, r, err) }(time.Now())
	return sm.Sale.Dispatch(ctx, caller, calldata, paid)
}

func (sm *SaleMetrics) Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) (err error) {
	defer func(t0 time.Time) { sm.Metrics.observe("withdraw", t0, err) }(time.Now())
	return sm.Sale.Withdraw(ctx, caller, amount)
}

func (sm *SaleMetrics) WithdrawAll(ctx context.Context, caller common.Address) (w *uint256.Int, err error) {
	defer func(t0 time.Time) { sm.Metrics.observe("withdraw_all", t0, err) }(time.Now())
	return sm.Sale.WithdrawAll(ctx, caller)
}

func (sm *SaleMetrics) purchased(op string, t0 time.Time, r model.Receipt, err error) {
	sm.Metrics.observe(op, t0, err)
	if err == nil {
		sm.Metrics.sold.Add(float64(r.Amount))
	}
}
