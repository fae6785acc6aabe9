package database

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

// Memory is a Store keeping everything in process memory. Transactions run against a copy
// of the state which replaces the current one only when fn succeeds.
type Memory struct {
	mu      sync.Mutex
	state   *memState
	events  []model.Event
	refused map[common.Address]struct{}
}

type tokenKey struct {
	token   common.Address
	holder  common.Address
	tokenID uint64
}

type memState struct {
	sale      model.SaleConfig
	royalties map[uint64][]model.RoyaltyEntry
	balances  map[common.Address]uint256.Int
	tokens    map[tokenKey]uint64
}

func NewMemory() *Memory {
	return &Memory{
		state: &memState{
			royalties: make(map[uint64][]model.RoyaltyEntry),
			balances:  make(map[common.Address]uint256.Int),
			tokens:    make(map[tokenKey]uint64),
		},
		refused: make(map[common.Address]struct{}),
	}
}

func (s *memState) clone() *memState {
	return &memState{
		sale:      s.sale,
		royalties: maps.Clone(s.royalties),
		balances:  maps.Clone(s.balances),
		tokens:    maps.Clone(s.tokens),
	}
}

// RefuseDeposits makes every later native-currency transfer to holder fail.
func (m *Memory) RefuseDeposits(holder common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refused[holder] = struct{}{}
}

func (m *Memory) Atomic(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{state: m.state.clone(), refused: m.refused}
	if err := fn(tx); err != nil {
		return err
	}

	m.state = tx.state
	for _, evt := range tx.events {
		evt.ID = len(m.events) + 1
		m.events = append(m.events, evt)
	}

	return nil
}

func (m *Memory) EventPage(_ context.Context, num, size int) ([]model.Event, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := len(m.events)
	if num < 1 || size < 1 || num-1 > math.MaxInt/size {
		return []model.Event{}, total, nil
	}

	offset := (num - 1) * size
	if offset >= total {
		return []model.Event{}, total, nil
	}

	end := min(offset+size, total)
	return slices.Clone(m.events[offset:end]), total, nil
}

func (m *Memory) Mint(ctx context.Context, token, holder common.Address, tokenID, quantity uint64) error {
	return m.Atomic(ctx, func(tx Tx) error {
		mt := tx.(*memTx)
		key := tokenKey{token, holder, tokenID}
		mt.state.tokens[key] += quantity
		return nil
	})
}

func (m *Memory) Fund(ctx context.Context, holder common.Address, amount *uint256.Int) error {
	return m.Atomic(ctx, func(tx Tx) error {
		mt := tx.(*memTx)
		bal := mt.state.balances[holder]
		sum, overflow := new(uint256.Int).AddOverflow(&bal, amount)
		if overflow {
			return model.ErrOverflow
		}
		mt.state.balances[holder] = *sum
		return nil
	})
}

type memTx struct {
	state   *memState
	events  []model.Event
	refused map[common.Address]struct{}
}

func (t *memTx) Sale(context.Context) (model.SaleConfig, error) {
	return t.state.sale, nil
}

func (t *memTx) PutSale(_ context.Context, cfg model.SaleConfig) error {
	t.state.sale = cfg
	return nil
}

func (t *memTx) Royalties(_ context.Context, tokenID uint64) ([]model.RoyaltyEntry, error) {
	return slices.Clone(t.state.royalties[tokenID]), nil
}

func (t *memTx) PutRoyalties(_ context.Context, tokenID uint64, entries []model.RoyaltyEntry) error {
	t.state.royalties[tokenID] = slices.Clone(entries)
	return nil
}

func (t *memTx) Emit(_ context.Context, evt model.Event) error {
	t.events = append(t.events, evt)
	return nil
}

func (t *memTx) Bank() Bank {
	return memBank{t}
}

func (t *memTx) Custodian(token common.Address) Custodian {
	return memCustodian{t, token}
}

type memBank struct {
	tx *memTx
}

func (b memBank) BalanceOf(_ context.Context, holder common.Address) (*uint256.Int, error) {
	bal := b.tx.state.balances[holder]
	return &bal, nil
}

func (b memBank) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	if _, ok := b.tx.refused[to]; ok {
		return fmt.Errorf("%w: %s refuses deposits", model.ErrTransferFailed, to.Hex())
	}

	fromBal := b.tx.state.balances[from]
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: balance of %s is too low", model.ErrTransferFailed, from.Hex())
	}

	if from == to {
		return nil
	}

	toBal := b.tx.state.balances[to]
	credited, overflow := new(uint256.Int).AddOverflow(&toBal, amount)
	if overflow {
		return model.ErrOverflow
	}

	b.tx.state.balances[from] = *new(uint256.Int).Sub(&fromBal, amount)
	b.tx.state.balances[to] = *credited

	return nil
}

type memCustodian struct {
	tx    *memTx
	token common.Address
}

func (c memCustodian) BalanceOf(_ context.Context, holder common.Address, tokenID uint64) (uint64, error) {
	return c.tx.state.tokens[tokenKey{c.token, holder, tokenID}], nil
}

func (c memCustodian) Transfer(_ context.Context, from, to common.Address, tokenID, quantity uint64) error {
	fromKey := tokenKey{c.token, from, tokenID}
	if c.tx.state.tokens[fromKey] < quantity {
		return fmt.Errorf("%w: insufficient units of token %d", model.ErrTransferFailed, tokenID)
	}

	c.tx.state.tokens[fromKey] -= quantity
	c.tx.state.tokens[tokenKey{c.token, to, tokenID}] += quantity

	return nil
}
