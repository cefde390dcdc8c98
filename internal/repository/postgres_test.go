package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestWithRetryDeadlock(t *testing.T) {
	r := &PostgresRepository{}

	calls := 0
	err := r.withRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want retry after deadlock", calls)
	}
}

func TestWithRetryDomainErrorNotRetried(t *testing.T) {
	r := &PostgresRepository{}

	calls := 0
	err := r.withRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return ErrWithdrawalFinalized
	})
	if !errors.Is(err, ErrWithdrawalFinalized) {
		t.Fatalf("error = %v, want ErrWithdrawalFinalized", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, domain error must not be retried", calls)
	}
}
