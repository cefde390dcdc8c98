package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/smirnovmax/artstore-system/internal/model"
	"github.com/smirnovmax/artstore-system/internal/promo"
)

// CreatePromo создаёт промокод. Коллизия кода — конфликт.
func (r *PostgresRepository) CreatePromo(ctx context.Context, p *model.PromoCode) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO promo_codes (code, discount_percent, max_uses, expires_at, active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		p.Code, p.DiscountPercent, p.MaxUses, p.ExpiresAt, p.Active,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrPromoCodeExists
		}
		return 0, fmt.Errorf("insert promo: %w", err)
	}
	return id, nil
}

// GetPromoByCode возвращает промокод по нормализованному коду.
func (r *PostgresRepository) GetPromoByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	var p model.PromoCode
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, discount_percent, max_uses, expires_at, current_uses, active
		 FROM promo_codes WHERE code = $1`,
		code,
	).Scan(&p.ID, &p.Code, &p.DiscountPercent, &p.MaxUses, &p.ExpiresAt, &p.CurrentUses, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("select promo: %w", err)
	}
	return &p, nil
}

// redeemPromoTx применяет промокод к заказу внутри транзакции.
// Инкремент счётчика применений условный: одновременные запросы на
// последнем слоте не превысят лимит — проигравший получает
// ErrPromoExhausted.
func redeemPromoTx(ctx context.Context, tx pgx.Tx, promoID, userID int64, orderID string) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE promo_codes SET current_uses = current_uses + 1
		 WHERE id = $1
		   AND active
		   AND (expires_at IS NULL OR expires_at > now())
		   AND (max_uses IS NULL OR current_uses < max_uses)`,
		promoID,
	)
	if err != nil {
		return fmt.Errorf("increment promo uses: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return promo.ErrPromoExhausted
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO promo_uses (promo_id, user_id, order_id) VALUES ($1, $2, $3)`,
		promoID, userID, orderID); err != nil {
		return fmt.Errorf("insert promo use: %w", err)
	}

	return nil
}

// GetReferralsByReferrer возвращает рефералов пользователя с именами
// приглашённых.
func (r *PostgresRepository) GetReferralsByReferrer(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.referrer_id, r.referred_id, u.name, r.earnings, r.paid_out, r.created_at
		 FROM referrals r
		 JOIN users u ON u.id = r.referred_id
		 WHERE r.referrer_id = $1
		 ORDER BY r.created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select referrals: %w", err)
	}
	defer rows.Close()

	var res []model.Referral
	for rows.Next() {
		var ref model.Referral
		if err := rows.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.ReferredName,
			&ref.EarningsCents, &ref.PaidOut, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		res = append(res, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkReferralPaid помечает реферальный бонус выплаченным вручную:
// накопление пары обнуляется, баланс пригласившего уменьшается на
// выплаченную сумму с ограничением снизу нулём.
func (r *PostgresRepository) MarkReferralPaid(ctx context.Context, referralID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var referrerID, earnings int64
	var paidOut bool
	err = tx.QueryRow(ctx,
		`SELECT referrer_id, earnings, paid_out FROM referrals WHERE id = $1 FOR UPDATE`,
		referralID,
	).Scan(&referrerID, &earnings, &paidOut)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrReferralNotFound
		}
		return fmt.Errorf("lock referral: %w", err)
	}
	if paidOut {
		return ErrReferralAlreadyPaid
	}

	if _, err := tx.Exec(ctx,
		`UPDATE referrals SET paid_out = TRUE, earnings = 0 WHERE id = $1`,
		referralID); err != nil {
		return fmt.Errorf("mark referral paid: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET referral_earnings = GREATEST(referral_earnings - $2, 0)
		 WHERE id = $1`,
		referrerID, earnings); err != nil {
		return fmt.Errorf("debit referrer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
