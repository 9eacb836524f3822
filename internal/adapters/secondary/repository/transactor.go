package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
	"github.com/minsuRob/sportcomm-sub010/internal/core/ports"
)

// Transactor ouvre une transaction pgx et lie les repos à celle-ci.
type Transactor struct {
	pool             *pgxpool.Pool
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

func NewTransactor(pool *pgxpool.Pool, lockTimeout, statementTimeout time.Duration) *Transactor {
	return &Transactor{
		pool:             pool,
		lockTimeout:      lockTimeout,
		statementTimeout: statementTimeout,
	}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx ports.TxStores) error) (err error) {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.NewPersistenceError("begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	// Une transaction bloquée échoue au lieu de garder ses verrous.
	if err = t.applyTimeouts(ctx, tx); err != nil {
		return domain.NewPersistenceError("set timeouts", err)
	}

	if err = fn(ctx, ports.TxStores{
		Media:  &MediaStore{db: tx},
		Posts:  &PostgresRepo{db: tx},
		Outbox: &Outbox{db: tx},
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.NewPersistenceError("commit", translatePgError(err))
	}
	return nil
}

func (t *Transactor) applyTimeouts(ctx context.Context, tx pgx.Tx) error {
	if t.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, pgInterval(t.lockTimeout)); err != nil {
			return err
		}
	}
	if t.statementTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('statement_timeout', $1, true)`, pgInterval(t.statementTimeout)); err != nil {
			return err
		}
	}
	return nil
}

func pgInterval(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
