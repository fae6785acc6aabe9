package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

// Postgres is a Store backed by PostgreSQL. Transactions of one sale instance are
// serialized with a transaction-scoped advisory lock on the instance address.
type Postgres struct {
	DB       *sql.DB
	Contract common.Address
}

func (p *Postgres) Atomic(ctx context.Context, fn func(Tx) error) error {
	return WithTx(ctx, p.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock(hashtext($1))`, p.Contract.Hex()); err != nil {
			return fmt.Errorf("can't lock sale: %w", err)
		}

		return fn(&pgTx{tx: tx, contract: p.Contract})
	})
}

func (p *Postgres) EventPage(ctx context.Context, num, size int) ([]model.Event, int, error) {
	q := `
		select count(*) from events where contract = $1
	`
	var total int
	if err := p.DB.QueryRowContext(ctx, q, p.Contract.Hex()).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("can't count events: %w", err)
	}

	if num < 1 || size < 1 || num-1 > math.MaxInt/size {
		return []model.Event{}, total, nil
	}

	offset := (num - 1) * size
	if offset >= total {
		return []model.Event{}, total, nil
	}

	q = `
		select id, name, attributes, created_at
		from events
		where contract = $1
		order by id
		limit $2 offset $3
	`
	rows, err := p.DB.QueryContext(ctx, q, p.Contract.Hex(), size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("can't query events: %w", err)
	}
	defer rows.Close()

	evts := make([]model.Event, 0, min(size, total-offset))
	for rows.Next() {
		var (
			evt   model.Event
			attrs []byte
		)
		if err := rows.Scan(&evt.ID, &evt.Name, &attrs, &evt.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("can't scan event: %w", err)
		}

		if err := json.Unmarshal(attrs, &evt.Attributes); err != nil {
			return nil, 0, fmt.Errorf("can't decode attributes of event %d: %w", evt.ID, err)
		}

		evts = append(evts, evt)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating over events: %w", err)
	}

	return evts, total, nil
}

func (p *Postgres) Mint(ctx context.Context, token, holder common.Address, tokenID, quantity uint64) error {
	return WithTx(ctx, p.DB, func(tx *sql.Tx) error {
		return creditToken(ctx, tx, token, holder, tokenID, quantity)
	})
}

func (p *Postgres) Fund(ctx context.Context, holder common.Address, amount *uint256.Int) error {
	return WithTx(ctx, p.DB, func(tx *sql.Tx) error {
		return creditBalance(ctx, tx, holder, amount)
	})
}

type pgTx struct {
	tx       *sql.Tx
	contract common.Address
}

func (t *pgTx) Sale(ctx context.Context) (model.SaleConfig, error) {
	q := `
		select token_address, token_id, duration_sec, start_at, unit_price::text, available
		from sales
		where contract = $1
	`

	var (
		cfg      model.SaleConfig
		token    string
		tokenID  int64
		duration int64
		price    string
		avail    int64
	)

	err := t.tx.QueryRowContext(ctx, q, t.contract.Hex()).Scan(&token, &tokenID, &duration, &cfg.StartTime, &price, &avail)
	if err != nil {
		if errors.Is(mapError(err), ErrNotFound) {
			return model.SaleConfig{}, nil
		}
		return model.SaleConfig{}, fmt.Errorf("can't select sale: %w", err)
	}

	p, err := uint256.FromDecimal(price)
	if err != nil {
		return model.SaleConfig{}, fmt.Errorf("can't parse unit price %q: %w", price, err)
	}

	cfg.TokenAddress = common.HexToAddress(token)
	cfg.TokenID = uint64(tokenID)
	cfg.Duration = time.Duration(duration) * time.Second
	cfg.UnitPrice = *p
	cfg.AvailableForSale = uint64(avail)

	return cfg, nil
}

func (t *pgTx) PutSale(ctx context.Context, cfg model.SaleConfig) error {
	q := `
		insert into sales (contract, token_address, token_id, duration_sec, start_at, unit_price, available)
		values ($1, $2, $3, $4, $5, $6::numeric, $7)
		on conflict (contract) do update
		set token_address = excluded.token_address,
		    token_id = excluded.token_id,
		    duration_sec = excluded.duration_sec,
		    start_at = excluded.start_at,
		    unit_price = excluded.unit_price,
		    available = excluded.available
	`

	_, err := t.tx.ExecContext(ctx, q,
		t.contract.Hex(),
		cfg.TokenAddress.Hex(),
		int64(cfg.TokenID),
		int64(cfg.Duration/time.Second),
		cfg.StartTime,
		cfg.UnitPrice.Dec(),
		int64(cfg.AvailableForSale),
	)
	if err != nil {
		return fmt.Errorf("can't upsert sale: %w", err)
	}

	return nil
}

func (t *pgTx) Royalties(ctx context.Context, tokenID uint64) ([]model.RoyaltyEntry, error) {
	q := `
		select recipient, bps
		from royalties
		where contract = $1 and token_id = $2
		order by position
	`
	rows, err := t.tx.QueryContext(ctx, q, t.contract.Hex(), int64(tokenID))
	if err != nil {
		return nil, fmt.Errorf("can't query royalties: %w", err)
	}
	defer rows.Close()

	entries := make([]model.RoyaltyEntry, 0)
	for rows.Next() {
		var (
			recipient string
			bps       int64
		)
		if err := rows.Scan(&recipient, &bps); err != nil {
			return nil, fmt.Errorf("can't scan royalty: %w", err)
		}

		entries = append(entries, model.RoyaltyEntry{Recipient: common.HexToAddress(recipient), BPS: uint64(bps)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over royalties: %w", err)
	}

	return entries, nil
}

func (t *pgTx) PutRoyalties(ctx context.Context, tokenID uint64, entries []model.RoyaltyEntry) error {
	if _, err := t.tx.ExecContext(ctx, `delete from royalties where contract = $1 and token_id = $2`, t.contract.Hex(), int64(tokenID)); err != nil {
		return fmt.Errorf("can't clear royalties: %w", err)
	}

	stmt, err := t.tx.PrepareContext(ctx, `insert into royalties (contract, token_id, position, recipient, bps) values ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("can't prepare stmt for inserting royalty: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, t.contract.Hex(), int64(tokenID), i, e.Recipient.Hex(), int64(e.BPS)); err != nil {
			return fmt.Errorf("can't insert royalty: %w", err)
		}
	}

	return nil
}

func (t *pgTx) Emit(ctx context.Context, evt model.Event) error {
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return fmt.Errorf("can't encode event attributes: %w", err)
	}

	q := `
		insert into events (contract, name, attributes, created_at)
		values ($1, $2, $3::jsonb, $4)
	`
	if _, err := t.tx.ExecContext(ctx, q, t.contract.Hex(), evt.Name, string(attrs), evt.CreatedAt); err != nil {
		return fmt.Errorf("can't insert event: %w", err)
	}

	return nil
}

func (t *pgTx) Bank() Bank {
	return pgBank{t.tx}
}

func (t *pgTx) Custodian(token common.Address) Custodian {
	return pgCustodian{t.tx, token}
}

type pgBank struct {
	tx *sql.Tx
}

func (b pgBank) BalanceOf(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	return balanceOf(ctx, b.tx, holder, false)
}

func (b pgBank) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() || from == to {
		return nil
	}

	bal, err := balanceOf(ctx, b.tx, from, true)
	if err != nil {
		return err
	}

	if bal.Lt(amount) {
		return fmt.Errorf("%w: balance of %s is too low", model.ErrTransferFailed, from.Hex())
	}

	if _, err := b.tx.ExecContext(ctx, `update accounts set balance = balance - $2::numeric where address = $1`, from.Hex(), amount.Dec()); err != nil {
		return fmt.Errorf("can't debit account: %w", err)
	}

	return creditBalance(ctx, b.tx, to, amount)
}

func balanceOf(ctx context.Context, tx *sql.Tx, holder common.Address, forUpdate bool) (*uint256.Int, error) {
	q := `select balance::text from accounts where address = $1`
	if forUpdate {
		q += ` for update`
	}

	var raw string
	if err := tx.QueryRowContext(ctx, q, holder.Hex()).Scan(&raw); err != nil {
		if errors.Is(mapError(err), ErrNotFound) {
			return new(uint256.Int), nil
		}
		return nil, fmt.Errorf("can't select balance: %w", err)
	}

	bal, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("can't parse balance %q: %w", raw, err)
	}

	return bal, nil
}

func creditBalance(ctx context.Context, tx *sql.Tx, holder common.Address, amount *uint256.Int) error {
	q := `
		insert into accounts (address, balance)
		values ($1, $2::numeric)
		on conflict (address) do update
		set balance = accounts.balance + excluded.balance
	`
	if _, err := tx.ExecContext(ctx, q, holder.Hex(), amount.Dec()); err != nil {
		return fmt.Errorf("can't credit account: %w", err)
	}
	return nil
}

type pgCustodian struct {
	tx    *sql.Tx
	token common.Address
}

func (c pgCustodian) BalanceOf(ctx context.Context, holder common.Address, tokenID uint64) (uint64, error) {
	return tokenBalanceOf(ctx, c.tx, c.token, holder, tokenID, false)
}

func (c pgCustodian) Transfer(ctx context.Context, from, to common.Address, tokenID, quantity uint64) error {
	if quantity == 0 || from == to {
		return nil
	}

	bal, err := tokenBalanceOf(ctx, c.tx, c.token, from, tokenID, true)
	if err != nil {
		return err
	}

	if bal < quantity {
		return fmt.Errorf("%w: insufficient units of token %d", model.ErrTransferFailed, tokenID)
	}

	q := `
		update token_balances
		set quantity = quantity - $4
		where token_address = $1 and token_id = $2 and holder = $3
	`
	if _, err := c.tx.ExecContext(ctx, q, c.token.Hex(), int64(tokenID), from.Hex(), int64(quantity)); err != nil {
		return fmt.Errorf("can't debit token balance: %w", err)
	}

	return creditToken(ctx, c.tx, c.token, to, tokenID, quantity)
}

func tokenBalanceOf(ctx context.Context, tx *sql.Tx, token, holder common.Address, tokenID uint64, forUpdate bool) (uint64, error) {
	q := `
		select quantity from token_balances
		where token_address = $1 and token_id = $2 and holder = $3
	`
	if forUpdate {
		q += ` for update`
	}

	var qty int64
	if err := tx.QueryRowContext(ctx, q, token.Hex(), int64(tokenID), holder.Hex()).Scan(&qty); err != nil {
		if errors.Is(mapError(err), ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("can't select token balance: %w", err)
	}

	return uint64(qty), nil
}

func creditToken(ctx context.Context, tx *sql.Tx, token, holder common.Address, tokenID, quantity uint64) error {
	q := `
		insert into token_balances (token_address, token_id, holder, quantity)
		values ($1, $2, $3, $4)
		on conflict (token_address, token_id, holder) do update
		set quantity = token_balances.quantity + excluded.quantity
	`
	if _, err := tx.ExecContext(ctx, q, token.Hex(), int64(tokenID), holder.Hex(), int64(quantity)); err != nil {
		return fmt.Errorf("can't credit token balance: %w", err)
	}
	return nil
}
