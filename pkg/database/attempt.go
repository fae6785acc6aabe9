package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IlyushaZ/token-sale/pkg/model"
)

type AttemptRepository interface {
	Add(context.Context, ...model.Attempt) error
}

type AttemptDatabase struct {
	DB *sql.DB
}

func (ad *AttemptDatabase) Add(ctx context.Context, as ...model.Attempt) error {
	if len(as) == 0 {
		return nil
	}

	q := buildBatchQuery(len(as))

	args := make([]any, 0, len(as)*attemptColumns)
	for _, a := range as {
		errMsg := sql.NullString{String: a.Error, Valid: a.Error != ""}

		args = append(args, a.Caller.Hex(), a.Route, int64(a.Amount), a.Paid.Dec(), a.CreatedAt, errMsg)
	}

	res, err := ad.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert attempts: %w", err)
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("can't get affected rows: %w", err)
	} else if int(affected) != len(as) {
		return fmt.Errorf("expected %d records to be inserted, got %d", len(as), affected)
	}

	return nil
}

const attemptColumns = 6

func buildBatchQuery(rows int) string {
	sb := strings.Builder{}
	sb.WriteString("insert into attempts (caller, route, amount, paid, created_at, error) values ")

	phs := make([]string, 0, rows)

	for i := 0; i < rows; i++ {
		n := i * attemptColumns
		phs = append(phs, fmt.Sprintf("($%d, $%d, $%d, $%d::numeric, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6))
	}

	sb.WriteString(strings.Join(phs, ","))
	return sb.String()
}

// AttemptBatchingDatabase buffers attempts and writes them in batches, either when the
// buffer reaches batchSize or on every flush interval.
type AttemptBatchingDatabase struct {
	buffer    []model.Attempt
	ticker    *time.Ticker
	batchSize int
	mu        sync.Mutex
	done      chan struct{}
	closeOnce sync.Once

	repo AttemptRepository
}

func NewAttemptBatchingDatabase(repo AttemptRepository, batchSize int, flushInterval time.Duration) *AttemptBatchingDatabase {
	ad := &AttemptBatchingDatabase{
		buffer:    make([]model.Attempt, 0, batchSize),
		ticker:    time.NewTicker(flushInterval),
		batchSize: batchSize,
		done:      make(chan struct{}),

		repo: repo,
	}

	go ad.loop()

	return ad
}

func (ad *AttemptBatchingDatabase) Add(ctx context.Context, as ...model.Attempt) error {
	if len(as) == 0 {
		return nil
	}

	ad.mu.Lock()
	ad.buffer = append(ad.buffer, as...)
	shouldFlush := len(ad.buffer) >= ad.batchSize
	ad.mu.Unlock()

	if shouldFlush {
		go func() {
			if err := ad.flush(); err != nil {
				slog.Error("can't flush buffer", slog.Any("error", err))
			}
		}()
	}

	return nil
}

// Close stops the periodic flush and writes whatever is left in the buffer.
func (ad *AttemptBatchingDatabase) Close() error {
	ad.closeOnce.Do(func() {
		ad.ticker.Stop()
		close(ad.done)
	})
	return ad.flush()
}

func (ad *AttemptBatchingDatabase) loop() {
	for {
		select {
		case <-ad.done:
			return
		case <-ad.ticker.C:
			if err := ad.flush(); err != nil {
				slog.Error("can't flush buffer", slog.Any("error", err))
			}
		}
	}
}

func (ad *AttemptBatchingDatabase) flush() error {
	ad.mu.Lock()
	if len(ad.buffer) == 0 {
		ad.mu.Unlock()
		return nil
	}

	batch := make([]model.Attempt, len(ad.buffer))
	copy(batch, ad.buffer)
	ad.buffer = ad.buffer[:0]
	ad.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.TODO(), time.Second*10)
	defer cancel()

	// TODO: retry failed batches instead of dropping them
	if err := ad.repo.Add(ctx, batch...); err != nil {
		return fmt.Errorf("can't insert batch: %w", err)
	}

	return nil
}
