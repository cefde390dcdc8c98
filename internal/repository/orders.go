package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/smirnovmax/artstore-system/internal/model"
	"github.com/smirnovmax/artstore-system/internal/reward"
)

const orderColumns = `id, user_id, items, service, subtotal, discount, total,
	 cashback_used, cashback_earned, status, tx_hash, payment_method, reviewed, created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var items []byte
	var status string
	err := row.Scan(&o.ID, &o.UserID, &items, &o.Service, &o.SubtotalCents, &o.DiscountCents,
		&o.TotalCents, &o.CashbackUsedCents, &o.CashbackEarnedCents, &status,
		&o.TxHash, &o.PaymentMethod, &o.Reviewed, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	return &o, nil
}

// CreateOrder сохраняет заказ и немедленно списывает использованный
// кешбэк с баланса пользователя: эта часть потрачена в момент заказа
// и не зависит от оплаты. Списание сопровождается записью в журнале.
// Промокод, если указан, применяется той же транзакцией.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order, promoID *int64) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		items, err := json.Marshal(o.Items)
		if err != nil {
			return fmt.Errorf("marshal items: %w", err)
		}
		if o.Items == nil {
			items = []byte(`[]`)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO orders (id, user_id, items, service, subtotal, discount, total,
			                     cashback_used, cashback_earned, status, payment_method)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			o.ID, o.UserID, items, o.Service, o.SubtotalCents, o.DiscountCents, o.TotalCents,
			o.CashbackUsedCents, o.CashbackEarnedCents, string(o.Status), o.PaymentMethod,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if o.CashbackUsedCents > 0 {
			cmdTag, err := tx.Exec(ctx,
				`UPDATE users SET cashback = cashback - $2
				 WHERE id = $1 AND cashback >= $2`,
				o.UserID, o.CashbackUsedCents,
			)
			if err != nil {
				return fmt.Errorf("debit cashback: %w", err)
			}
			if cmdTag.RowsAffected() == 0 {
				return ErrInsufficientBalance
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO cashback_history (user_id, amount, description)
				 VALUES ($1, $2, $3)`,
				o.UserID, -o.CashbackUsedCents,
				fmt.Sprintf("Списание кешбэка по заказу %s", o.ID),
			)
			if err != nil {
				return fmt.Errorf("insert cashback entry: %w", err)
			}
		}

		if promoID != nil {
			if err := redeemPromoTx(ctx, tx, *promoID, o.UserID, o.ID); err != nil {
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetOrdersByUser возвращает список заказов пользователя.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListOrders возвращает все заказы для административных операций.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateOrderStatus сохраняет статус заказа. Известные статусы заданы
// перечислением, неизвестные значения сохраняются как есть.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`, orderID, string(status))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkOrderReviewed помечает заказ как отрецензированный (только один
// раз) и начисляет фиксированный бонус на баланс кешбэка с записью в
// журнале. Бонус не зависит от статуса оплаты.
func (r *PostgresRepository) MarkOrderReviewed(ctx context.Context, orderID string, userID, bonusCents int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE orders SET reviewed = TRUE
		 WHERE id = $1 AND user_id = $2 AND NOT reviewed`,
		orderID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark reviewed: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		var reviewed bool
		err := tx.QueryRow(ctx,
			`SELECT reviewed FROM orders WHERE id = $1 AND user_id = $2`, orderID, userID,
		).Scan(&reviewed)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("select order: %w", err)
		}
		return ErrAlreadyReviewed
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET cashback = cashback + $2 WHERE id = $1`, userID, bonusCents); err != nil {
		return fmt.Errorf("credit review bonus: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO cashback_history (user_id, amount, description) VALUES ($1, $2, $3)`,
		userID, bonusCents, fmt.Sprintf("Бонус за отзыв о заказе %s", orderID)); err != nil {
		return fmt.Errorf("insert cashback entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const invoiceColumns = `id, order_id, user_id, amount, promo_code, discount, final_amount,
	 payment_address, tx_hash, status, paid_at, created_at`

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var inv model.Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.OrderID, &inv.UserID, &inv.AmountCents, &inv.PromoCode,
		&inv.DiscountCents, &inv.FinalAmountCents, &inv.PaymentAddress, &inv.TxHash,
		&status, &inv.PaidAt, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	inv.Status = model.InvoiceStatus(status)
	return &inv, nil
}

// CreateInvoice выставляет счёт по заказу (строго один счёт на заказ)
// и переводит заказ в ожидание оплаты. Кешбэк к начислению в заказе
// обновляется по сумме счёта: начисление при подтверждении считается
// от неё же.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, inv *model.Invoice, cashbackEarnedCents int64) (*model.Invoice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := scanInvoice(tx.QueryRow(ctx,
		`INSERT INTO invoices (order_id, user_id, amount, promo_code, discount, final_amount,
		                       payment_address, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+invoiceColumns,
		inv.OrderID, inv.UserID, inv.AmountCents, inv.PromoCode, inv.DiscountCents,
		inv.FinalAmountCents, inv.PaymentAddress, string(model.InvoiceStatusAwaitingPayment),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrInvoiceExists
		}
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2, cashback_earned = $3 WHERE id = $1`,
		inv.OrderID, string(model.OrderStatusAwaitingPayment), cashbackEarnedCents); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return created, nil
}

// GetInvoice возвращает счёт по идентификатору.
func (r *PostgresRepository) GetInvoice(ctx context.Context, id int64) (*model.Invoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

// GetInvoiceByOrder возвращает счёт по идентификатору заказа.
func (r *PostgresRepository) GetInvoiceByOrder(ctx context.Context, orderID string) (*model.Invoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE order_id = $1`, orderID)
	return scanInvoice(row)
}

// SetInvoiceTxHash сохраняет хеш транзакции, ожидающий верификации.
func (r *PostgresRepository) SetInvoiceTxHash(ctx context.Context, invoiceID int64, txHash string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET tx_hash = $2 WHERE id = $1`, invoiceID, txHash)
	if err != nil {
		return fmt.Errorf("set tx hash: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// ConfirmPaymentParams — параметры подтверждения оплаты. Суммы
// вознаграждений рассчитываются сервисом заранее.
type ConfirmPaymentParams struct {
	InvoiceID       int64
	TxHash          string
	CashbackCents   int64
	CommissionCents int64
}

// ConfirmPaymentResult — результат подтверждения оплаты.
type ConfirmPaymentResult struct {
	OrderID            string
	UserID             int64
	FinalAmountCents   int64
	NewTotalSpentCents int64
	NewLevel           model.Level
	LevelChanged       bool
	FirstOrder         bool
	ReferrerID         *int64
	CommissionApplied  bool
}

// ConfirmPayment выполняет все эффекты подтверждения оплаты одной
// транзакцией: счёт помечается оплаченным, заказ переходит в работу,
// траты и кешбэк пользователя увеличиваются, уровень лояльности
// повышается при достижении порога, реферальная комиссия начисляется
// только за первый заказ. Повторное подтверждение возвращает
// ErrInvoiceAlreadyPaid и ничего не изменяет.
func (r *PostgresRepository) ConfirmPayment(ctx context.Context, p ConfirmPaymentParams) (*ConfirmPaymentResult, error) {
	var res *ConfirmPaymentResult

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var (
			orderID     string
			userID      int64
			finalAmount int64
			status      string
		)
		err = tx.QueryRow(ctx,
			`SELECT order_id, user_id, final_amount, status
			 FROM invoices WHERE id = $1 FOR UPDATE`,
			p.InvoiceID,
		).Scan(&orderID, &userID, &finalAmount, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvoiceNotFound
			}
			return fmt.Errorf("lock invoice: %w", err)
		}

		if model.InvoiceStatus(status) == model.InvoiceStatusPaid {
			return ErrInvoiceAlreadyPaid
		}

		now := time.Now().UTC()

		if _, err := tx.Exec(ctx,
			`UPDATE invoices SET status = $2, paid_at = $3, tx_hash = $4 WHERE id = $1`,
			p.InvoiceID, string(model.InvoiceStatusPaid), now, p.TxHash); err != nil {
			return fmt.Errorf("mark invoice paid: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2, tx_hash = $3 WHERE id = $1`,
			orderID, string(model.OrderStatusWorking), p.TxHash); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		var level string
		if err := tx.QueryRow(ctx,
			`SELECT level FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&level); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		var newTotalSpent int64
		var referredBy *int64
		err = tx.QueryRow(ctx,
			`UPDATE users SET total_spent = total_spent + $2, cashback = cashback + $3
			 WHERE id = $1
			 RETURNING total_spent, referred_by`,
			userID, finalAmount, p.CashbackCents,
		).Scan(&newTotalSpent, &referredBy)
		if err != nil {
			return fmt.Errorf("credit user: %w", err)
		}

		if p.CashbackCents > 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO cashback_history (user_id, amount, description) VALUES ($1, $2, $3)`,
				userID, p.CashbackCents,
				fmt.Sprintf("Кешбэк за оплату заказа %s", orderID)); err != nil {
				return fmt.Errorf("insert cashback entry: %w", err)
			}
		}

		var orderCount int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&orderCount); err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		firstOrder := orderCount == 1

		commissionApplied := false
		if firstOrder && referredBy != nil && p.CommissionCents > 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET referral_earnings = referral_earnings + $2 WHERE id = $1`,
				*referredBy, p.CommissionCents); err != nil {
				return fmt.Errorf("credit referrer: %w", err)
			}

			// Перезапись, не накопление: комиссия за пару выплачивается
			// один раз, по первому заказу приглашённого.
			if _, err := tx.Exec(ctx,
				`UPDATE referrals SET earnings = $3 WHERE referrer_id = $1 AND referred_id = $2`,
				*referredBy, userID, p.CommissionCents); err != nil {
				return fmt.Errorf("update referral earnings: %w", err)
			}
			commissionApplied = true
		}

		// Повышение уровня — часть той же транзакции: подтверждённая
		// оплата не может потерять заработанный уровень. Понижений не
		// бывает, траты не убывают.
		newLevel := reward.LevelFor(newTotalSpent)
		levelChanged := newLevel != model.Level(level) && newLevel != model.LevelNone
		if levelChanged {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET level = $2 WHERE id = $1`,
				userID, string(newLevel)); err != nil {
				return fmt.Errorf("promote level: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		res = &ConfirmPaymentResult{
			OrderID:            orderID,
			UserID:             userID,
			FinalAmountCents:   finalAmount,
			NewTotalSpentCents: newTotalSpent,
			NewLevel:           newLevel,
			LevelChanged:       levelChanged,
			FirstOrder:         firstOrder,
			ReferrerID:         referredBy,
			CommissionApplied:  commissionApplied,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}
