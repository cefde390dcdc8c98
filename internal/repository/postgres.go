// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserNotFound возвращается, если пользователь не найден.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvoiceNotFound возвращается, если счёт не найден.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrInvoiceExists возвращается при повторном выставлении счёта по заказу.
	ErrInvoiceExists = errors.New("invoice already issued for order")
	// ErrInvoiceAlreadyPaid возвращается при повторном подтверждении оплаты.
	ErrInvoiceAlreadyPaid = errors.New("invoice already paid")
	// ErrInsufficientBalance возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrPromoNotFound возвращается, если промокод не найден.
	ErrPromoNotFound = errors.New("promo code not found")
	// ErrPromoCodeExists возвращается при создании промокода с занятым кодом.
	ErrPromoCodeExists = errors.New("promo code already exists")
	// ErrReferralCodeNotFound возвращается для неизвестного реферального кода.
	ErrReferralCodeNotFound = errors.New("referral code not found")
	// ErrSelfReferral возвращается при попытке указать собственный код.
	ErrSelfReferral = errors.New("self referral is not allowed")
	// ErrAlreadyReferred возвращается, если пригласивший уже установлен.
	ErrAlreadyReferred = errors.New("user already has a referrer")
	// ErrReferralNotFound возвращается, если реферальная запись не найдена.
	ErrReferralNotFound = errors.New("referral not found")
	// ErrReferralAlreadyPaid возвращается при повторной выплате бонуса пары.
	ErrReferralAlreadyPaid = errors.New("referral bonus already paid out")
	// ErrAlreadyReviewed возвращается при повторном отзыве на заказ.
	ErrAlreadyReviewed = errors.New("order already reviewed")
	// ErrWithdrawalNotFound возвращается, если заявка на выплату не найдена.
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	// ErrWithdrawalFinalized возвращается при переходе из конечного статуса заявки.
	ErrWithdrawalFinalized = errors.New("withdrawal already finalized")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при сериализационных конфликтах,
// дедлоках и сетевых сбоях. Остальные ошибки возвращаются сразу.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
