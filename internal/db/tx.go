package db

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoDatabase = errors.New("database not configured")

// WithTx runs fn inside a transaction. The transaction is rolled back when fn
// fails or panics, so callers never observe a partial write. A panic is
// re-raised after the rollback.
func WithTx(ctx context.Context, conn TxBeginner, fn func(q Querier) error) error {
	if conn == nil {
		return ErrNoDatabase
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
