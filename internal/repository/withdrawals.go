package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/smirnovmax/artstore-system/internal/model"
)

const withdrawalColumns = `id, user_id, amount, wallet, type, status, tx_hash, created_at, processed_at`

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var w model.Withdrawal
	var wType, status string
	err := row.Scan(&w.ID, &w.UserID, &w.AmountCents, &w.Wallet, &wType, &status,
		&w.TxHash, &w.CreatedAt, &w.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("scan withdrawal: %w", err)
	}
	w.Type = model.WithdrawalType(wType)
	w.Status = model.WithdrawalStatus(status)
	return &w, nil
}

func balanceColumn(t model.WithdrawalType) string {
	if t == model.WithdrawalTypeReferral {
		return "referral_earnings"
	}
	return "cashback"
}

// CreateWithdrawal создаёт заявку на выплату. Достаточность баланса
// проверяется на момент заявки, списание откладывается до завершения,
// чтобы отменённая заявка не держала средства в подвешенном состоянии.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var balance int64
		err = tx.QueryRow(ctx,
			`SELECT `+balanceColumn(w.Type)+` FROM users WHERE id = $1 FOR UPDATE`,
			w.UserID,
		).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		if w.AmountCents > balance {
			return ErrInsufficientBalance
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO withdrawals (id, user_id, amount, wallet, type, status)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			w.ID, w.UserID, w.AmountCents, w.Wallet, string(w.Type),
			string(model.WithdrawalStatusPending)); err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetWithdrawalsByUser возвращает историю заявок пользователя.
func (r *PostgresRepository) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var res []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CompleteWithdrawal завершает заявку и списывает средства. Списание
// ограничено снизу нулём: баланс не уходит в минус даже при гонках.
// Для кешбэка фактически списанная сумма фиксируется в журнале.
func (r *PostgresRepository) CompleteWithdrawal(ctx context.Context, id, txHash string) (*model.Withdrawal, error) {
	var result *model.Withdrawal

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		w, err := scanWithdrawal(tx.QueryRow(ctx,
			`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if w.Status != model.WithdrawalStatusPending {
			return ErrWithdrawalFinalized
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx,
			`UPDATE withdrawals SET status = $2, tx_hash = $3, processed_at = $4 WHERE id = $1`,
			id, string(model.WithdrawalStatusCompleted), txHash, now); err != nil {
			return fmt.Errorf("complete withdrawal: %w", err)
		}

		column := balanceColumn(w.Type)
		var before int64
		err = tx.QueryRow(ctx,
			`SELECT `+column+` FROM users WHERE id = $1 FOR UPDATE`, w.UserID,
		).Scan(&before)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		debited := min(before, w.AmountCents)
		if _, err := tx.Exec(ctx,
			`UPDATE users SET `+column+` = `+column+` - $2 WHERE id = $1`,
			w.UserID, debited); err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}

		if w.Type == model.WithdrawalTypeCashback && debited > 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO cashback_history (user_id, amount, description) VALUES ($1, $2, $3)`,
				w.UserID, -debited,
				fmt.Sprintf("Выплата кешбэка по заявке %s", id)); err != nil {
				return fmt.Errorf("insert cashback entry: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		w.Status = model.WithdrawalStatusCompleted
		w.TxHash = txHash
		w.ProcessedAt = &now
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CancelWithdrawal отклоняет заявку. Баланс не изменяется: на этапе
// заявки ничего не резервировалось.
func (r *PostgresRepository) CancelWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	var result *model.Withdrawal

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		w, err := scanWithdrawal(tx.QueryRow(ctx,
			`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if w.Status != model.WithdrawalStatusPending {
			return ErrWithdrawalFinalized
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx,
			`UPDATE withdrawals SET status = $2, processed_at = $3 WHERE id = $1`,
			id, string(model.WithdrawalStatusCancelled), now); err != nil {
			return fmt.Errorf("cancel withdrawal: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		w.Status = model.WithdrawalStatusCancelled
		w.ProcessedAt = &now
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
