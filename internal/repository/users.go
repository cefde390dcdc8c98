package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/smirnovmax/artstore-system/internal/model"
	"github.com/smirnovmax/artstore-system/internal/promo"
)

const userColumns = `id, telegram_id, name, username, level, total_spent, cashback,
	 referral_code, referred_by, referral_earnings, wallet_address, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var level string
	err := row.Scan(&u.ID, &u.TelegramID, &u.Name, &u.Username, &level, &u.TotalSpentCents,
		&u.CashbackCents, &u.ReferralCode, &u.ReferredBy, &u.ReferralEarningsCents,
		&u.WalletAddress, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Level = model.Level(level)
	return &u, nil
}

// GetUserByID возвращает пользователя по внутреннему идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetOrCreateUser возвращает пользователя по telegram_id, создавая его
// при первом обращении. При создании генерируется реферальный код и
// разрешается отложенный реферал, сохранённый до открытия приложения.
func (r *PostgresRepository) GetOrCreateUser(ctx context.Context, telegramID int64, name, username string) (*model.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := scanUser(tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u, err = scanUser(tx.QueryRow(ctx,
		`INSERT INTO users (telegram_id, name, username, referral_code)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		telegramID, name, username, promo.NewReferralCode(),
	))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := r.resolvePendingReferral(ctx, tx, u); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return u, nil
}

// resolvePendingReferral привязывает нового пользователя к пригласившему,
// если до первого входа был сохранён реферальный код. Запись об
// отложенном реферале после разрешения удаляется.
func (r *PostgresRepository) resolvePendingReferral(ctx context.Context, tx pgx.Tx, u *model.User) error {
	var code string
	err := tx.QueryRow(ctx,
		`SELECT referral_code FROM pending_referrals WHERE telegram_id = $1`,
		u.TelegramID,
	).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("select pending referral: %w", err)
	}

	var referrerID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM users WHERE referral_code = $1`, code,
	).Scan(&referrerID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("select referrer: %w", err)
	}

	// Неизвестный код или собственный код не привязываются, но
	// отложенная запись в любом случае отбрасывается.
	if err == nil && referrerID != u.ID {
		if _, err := tx.Exec(ctx,
			`UPDATE users SET referred_by = $2 WHERE id = $1`, u.ID, referrerID); err != nil {
			return fmt.Errorf("set referrer: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO referrals (referrer_id, referred_id) VALUES ($1, $2)
			 ON CONFLICT (referred_id) DO NOTHING`,
			referrerID, u.ID); err != nil {
			return fmt.Errorf("insert referral: %w", err)
		}
		u.ReferredBy = &referrerID
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM pending_referrals WHERE telegram_id = $1`, u.TelegramID); err != nil {
		return fmt.Errorf("delete pending referral: %w", err)
	}

	return nil
}

// SavePendingReferral сохраняет реферальный код, предъявленный на входе
// в бота до первого открытия приложения.
func (r *PostgresRepository) SavePendingReferral(ctx context.Context, telegramID int64, code string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO pending_referrals (telegram_id, referral_code) VALUES ($1, $2)
		 ON CONFLICT (telegram_id) DO UPDATE SET referral_code = EXCLUDED.referral_code`,
		telegramID, code,
	)
	if err != nil {
		return fmt.Errorf("save pending referral: %w", err)
	}
	return nil
}

// LinkReferrer привязывает пользователя к пригласившему по коду.
// Привязка выполняется не более одного раза и никогда к самому себе.
func (r *PostgresRepository) LinkReferrer(ctx context.Context, userID int64, code string) (*model.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	referrer, err := scanUser(tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrReferralCodeNotFound
		}
		return nil, err
	}

	if referrer.ID == userID {
		return nil, ErrSelfReferral
	}

	var referredBy *int64
	err = tx.QueryRow(ctx,
		`SELECT referred_by FROM users WHERE id = $1 FOR UPDATE`, userID,
	).Scan(&referredBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}
	if referredBy != nil {
		return nil, ErrAlreadyReferred
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET referred_by = $2 WHERE id = $1`, userID, referrer.ID); err != nil {
		return nil, fmt.Errorf("set referrer: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO referrals (referrer_id, referred_id) VALUES ($1, $2)
		 ON CONFLICT (referred_id) DO NOTHING`,
		referrer.ID, userID); err != nil {
		return nil, fmt.Errorf("insert referral: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return referrer, nil
}

// SetWalletAddress сохраняет кошелёк пользователя для выплат.
func (r *PostgresRepository) SetWalletAddress(ctx context.Context, userID int64, address string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET wallet_address = $2 WHERE id = $1`, userID, address)
	if err != nil {
		return fmt.Errorf("set wallet: %w", err)
	}
	return nil
}

// GetCashbackHistory возвращает журнал операций кешбэка пользователя.
func (r *PostgresRepository) GetCashbackHistory(ctx context.Context, userID int64, limit int) ([]model.CashbackEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, description, created_at
		 FROM cashback_history
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select cashback history: %w", err)
	}
	defer rows.Close()

	var res []model.CashbackEntry
	for rows.Next() {
		var e model.CashbackEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.AmountCents, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cashback entry: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
