// Package service реализует бизнес-логику витрины: жизненный цикл
// заказа и счёта, начисление вознаграждений, промокоды и выплаты.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smirnovmax/artstore-system/internal/chain"
	"github.com/smirnovmax/artstore-system/internal/metrics"
	"github.com/smirnovmax/artstore-system/internal/model"
	"github.com/smirnovmax/artstore-system/internal/notify"
	"github.com/smirnovmax/artstore-system/internal/promo"
	"github.com/smirnovmax/artstore-system/internal/repository"
	"github.com/smirnovmax/artstore-system/internal/reward"
)

// Ошибки валидации уровня сервиса.
var (
	ErrEmptyOrder      = errors.New("order has no items or service")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrNotOrderOwner   = errors.New("order belongs to another user")
	ErrCashbackTooHigh = errors.New("cashback exceeds order total")
	ErrNoWallet        = errors.New("payout wallet is not set")
	ErrOrderFinalized  = errors.New("order is in a terminal status")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetOrCreateUser(ctx context.Context, telegramID int64, name, username string) (*model.User, error)
	SavePendingReferral(ctx context.Context, telegramID int64, code string) error
	LinkReferrer(ctx context.Context, userID int64, code string) (*model.User, error)
	SetWalletAddress(ctx context.Context, userID int64, address string) error
	GetCashbackHistory(ctx context.Context, userID int64, limit int) ([]model.CashbackEntry, error)

	CreateOrder(ctx context.Context, o *model.Order, promoID *int64) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error
	MarkOrderReviewed(ctx context.Context, orderID string, userID, bonusCents int64) error

	CreateInvoice(ctx context.Context, inv *model.Invoice, cashbackEarnedCents int64) (*model.Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*model.Invoice, error)
	GetInvoiceByOrder(ctx context.Context, orderID string) (*model.Invoice, error)
	SetInvoiceTxHash(ctx context.Context, invoiceID int64, txHash string) error
	ConfirmPayment(ctx context.Context, p repository.ConfirmPaymentParams) (*repository.ConfirmPaymentResult, error)

	CreatePromo(ctx context.Context, p *model.PromoCode) (int64, error)
	GetPromoByCode(ctx context.Context, code string) (*model.PromoCode, error)
	GetReferralsByReferrer(ctx context.Context, referrerID int64) ([]model.Referral, error)
	MarkReferralPaid(ctx context.Context, referralID int64) error

	CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error
	GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error)
	CompleteWithdrawal(ctx context.Context, id, txHash string) (*model.Withdrawal, error)
	CancelWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error)
}

// ChainClient описывает клиент индексатора блокчейна.
type ChainClient interface {
	GetTransaction(ctx context.Context, hash string) (*chain.Transaction, error)
}

// Service содержит бизнес-логику витрины артстор.
type Service struct {
	repo           Repository
	chainClient    ChainClient
	dispatcher     *notify.Dispatcher
	metrics        *metrics.Metrics
	paymentAddress string
	adminChatID    int64
}

// NewService создаёт сервис с указанными зависимостями.
func NewService(repo Repository, chainClient ChainClient, dispatcher *notify.Dispatcher, m *metrics.Metrics, paymentAddress string, adminChatID int64) *Service {
	return &Service{
		repo:           repo,
		chainClient:    chainClient,
		dispatcher:     dispatcher,
		metrics:        m,
		paymentAddress: paymentAddress,
		adminChatID:    adminChatID,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) notifyUser(ctx context.Context, chatID int64, text string) {
	s.dispatcher.Dispatch(ctx, notify.Notification{ChatID: chatID, Text: text})
}

func (s *Service) notifyAdmin(ctx context.Context, text string) {
	s.dispatcher.Dispatch(ctx, notify.Notification{ChatID: s.adminChatID, Text: text})
}

// GetOrCreateUser материализует пользователя по внешнему идентификатору
// платформы. Отложенный реферал разрешается при первом обращении.
func (s *Service) GetOrCreateUser(ctx context.Context, telegramID int64, name, username string) (*model.User, error) {
	return s.repo.GetOrCreateUser(ctx, telegramID, name, username)
}

// SavePendingReferral сохраняет код, предъявленный на входе в бота
// до первого открытия приложения.
func (s *Service) SavePendingReferral(ctx context.Context, telegramID int64, code string) error {
	return s.repo.SavePendingReferral(ctx, telegramID, promo.NormalizeCode(code))
}

// CreateOrderInput — входные данные создания заказа.
type CreateOrderInput struct {
	OrderID           string
	Items             []model.OrderItem
	Service           string
	SubtotalCents     int64
	CashbackUsedCents int64
	PromoCode         string
	PaymentMethod     string
	Cart              bool
}

// CreateOrder создаёт заказ. Применённый промокод и скидка уровня
// уменьшают сумму к оплате, использованный кешбэк списывается сразу.
// Начисление заработанного кешбэка, трат и реферальной комиссии
// откладывается до подтверждения оплаты.
func (s *Service) CreateOrder(ctx context.Context, user *model.User, in CreateOrderInput) (*model.Order, error) {
	if len(in.Items) == 0 && in.Service == "" {
		return nil, ErrEmptyOrder
	}

	subtotal := in.SubtotalCents
	if subtotal == 0 {
		for _, it := range in.Items {
			subtotal += it.Price * int64(it.Quantity)
		}
	}
	if subtotal <= 0 {
		return nil, ErrInvalidAmount
	}

	discountPercent := reward.DiscountPercent(user.Level)
	var promoID *int64

	if in.PromoCode != "" {
		p, err := s.repo.GetPromoByCode(ctx, promo.NormalizeCode(in.PromoCode))
		if err != nil {
			return nil, err
		}
		if err := promo.Validate(p, time.Now()); err != nil {
			return nil, err
		}
		discountPercent += p.DiscountPercent
		promoID = &p.ID
	}

	if discountPercent > 100 {
		discountPercent = 100
	}

	discount := subtotal * int64(discountPercent) / 100
	total := subtotal - discount

	if in.CashbackUsedCents < 0 || in.CashbackUsedCents > total {
		return nil, ErrCashbackTooHigh
	}

	status := model.OrderStatusPending
	if in.Cart {
		status = model.OrderStatusAwaitingManager
	}

	orderID := in.OrderID
	if orderID == "" {
		orderID = newOrderID()
	}

	order := &model.Order{
		ID:                  orderID,
		UserID:              user.ID,
		Items:               in.Items,
		Service:             in.Service,
		SubtotalCents:       subtotal,
		DiscountCents:       discount,
		TotalCents:          total,
		CashbackUsedCents:   in.CashbackUsedCents,
		CashbackEarnedCents: reward.CashbackFor(total - in.CashbackUsedCents),
		Status:              status,
		PaymentMethod:       in.PaymentMethod,
	}

	if err := s.repo.CreateOrder(ctx, order, promoID); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}

	s.notifyUser(ctx, user.TelegramID, notify.OrderCreated(order.ID, cents(total)))
	s.notifyAdmin(ctx, notify.OrderCreatedAdmin(order.ID, user.Username, cents(total)))

	return order, nil
}

// newOrderID возвращает производный от времени идентификатор заказа.
func newOrderID() string {
	suffix := strings.ToUpper(uuid.NewString()[:6])
	return fmt.Sprintf("%d-%s", time.Now().Unix(), suffix)
}

// IssueInvoice выставляет счёт по заказу. Сумма к оплате по умолчанию —
// итог заказа за вычетом использованного кешбэка, администратор может
// задать её явно в пределах исходной стоимости заказа. Снимок
// платёжного адреса фиксируется в счёте, начисляемый кешбэк
// пересчитывается от суммы к оплате.
func (s *Service) IssueInvoice(ctx context.Context, orderID string, overrideCents int64, promoCode string) (*model.Invoice, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	payable := order.TotalCents - order.CashbackUsedCents
	if overrideCents > 0 {
		payable = overrideCents
	}
	if payable < 0 || payable > order.SubtotalCents {
		return nil, ErrInvalidAmount
	}

	inv := &model.Invoice{
		OrderID:          order.ID,
		UserID:           order.UserID,
		AmountCents:      order.SubtotalCents,
		PromoCode:        promo.NormalizeCode(promoCode),
		DiscountCents:    order.SubtotalCents - payable,
		FinalAmountCents: payable,
		PaymentAddress:   s.paymentAddress,
	}

	created, err := s.repo.CreateInvoice(ctx, inv, reward.CashbackFor(payable))
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, order.UserID)
	if err == nil {
		s.notifyUser(ctx, user.TelegramID,
			notify.InvoiceIssued(order.ID, cents(created.FinalAmountCents), created.PaymentAddress))
	}

	return created, nil
}

// SubmitTxHash прикрепляет хеш транзакции к счёту до верификации.
func (s *Service) SubmitTxHash(ctx context.Context, userID int64, orderID, txHash string) error {
	inv, err := s.repo.GetInvoiceByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if inv.UserID != userID {
		return ErrNotOrderOwner
	}
	return s.repo.SetInvoiceTxHash(ctx, inv.ID, txHash)
}

// VerifyTransaction проверяет перевод по хешу. Проверка ничего не
// меняет: успешная верификация требует явного подтверждения оплаты.
// Недоступность индексатора — ошибка запроса, отсутствие транзакции —
// отрицательный результат верификации.
func (s *Service) VerifyTransaction(ctx context.Context, txHash string, expectedCents int64, expectedAddress string) (chain.VerifyResult, error) {
	tx, err := s.chainClient.GetTransaction(ctx, txHash)
	if err != nil {
		if errors.Is(err, chain.ErrTxNotFound) {
			if s.metrics != nil {
				s.metrics.ChainRequests.WithLabelValues("not_found").Inc()
			}
			return chain.VerifyResult{Reason: chain.ReasonNotFound}, nil
		}
		if s.metrics != nil {
			s.metrics.ChainRequests.WithLabelValues("error").Inc()
		}
		return chain.VerifyResult{}, err
	}

	if s.metrics != nil {
		s.metrics.ChainRequests.WithLabelValues("ok").Inc()
	}

	return chain.Verify(tx, expectedCents, expectedAddress), nil
}

// ConfirmPayment подтверждает оплату счёта. Начисления — траты,
// кешбэк 5%, повышение уровня и реферальная комиссия за первый заказ
// приглашённого — выполняются хранилищем в одной транзакции, здесь
// остаются только уведомления. Повторное подтверждение — no-op с
// ошибкой ErrInvoiceAlreadyPaid.
func (s *Service) ConfirmPayment(ctx context.Context, invoiceID int64, txHash string) (*repository.ConfirmPaymentResult, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.GetOrder(ctx, inv.OrderID)
	if err != nil {
		return nil, err
	}

	if txHash == "" {
		txHash = inv.TxHash
	}

	res, err := s.repo.ConfirmPayment(ctx, repository.ConfirmPaymentParams{
		InvoiceID:       invoiceID,
		TxHash:          txHash,
		CashbackCents:   reward.CashbackFor(inv.FinalAmountCents),
		CommissionCents: reward.CommissionFor(order.SubtotalCents),
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentsConfirmed.Inc()
	}

	user, err := s.repo.GetUserByID(ctx, res.UserID)
	if err != nil {
		return res, nil
	}

	s.notifyUser(ctx, user.TelegramID, notify.PaymentConfirmed(
		res.OrderID, cents(res.FinalAmountCents), cents(reward.CashbackFor(inv.FinalAmountCents))))
	s.notifyAdmin(ctx, notify.PaymentConfirmedAdmin(res.OrderID, user.Username, cents(res.FinalAmountCents)))

	if res.LevelChanged {
		s.notifyUser(ctx, user.TelegramID,
			notify.LevelPromoted(res.NewLevel, reward.DiscountPercent(res.NewLevel)))
	}

	if res.CommissionApplied && res.ReferrerID != nil {
		s.notifyReferrer(ctx, *res.ReferrerID, user.Name, reward.CommissionFor(order.SubtotalCents))
	}

	return res, nil
}

func (s *Service) notifyReferrer(ctx context.Context, referrerID int64, referredName string, commissionCents int64) {
	referrer, err := s.repo.GetUserByID(ctx, referrerID)
	if err != nil {
		return
	}

	s.notifyUser(ctx, referrer.TelegramID,
		notify.ReferralCommission(referredName, cents(commissionCents), referrer.WalletAddress != ""))
}

// UpdateOrderStatus выставляет произвольный статус заказа и уведомляет
// пользователя заготовленным текстом для известных статусов.
// Завершённый или отменённый заказ статус не меняет. Побочных
// начислений нет.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status.Terminal() {
		return ErrOrderFinalized
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return err
	}

	user, err := s.repo.GetUserByID(ctx, order.UserID)
	if err == nil {
		s.notifyUser(ctx, user.TelegramID, notify.StatusChanged(orderID, status))
	}

	return nil
}

// SubmitReview принимает отзыв о заказе: флаг взводится один раз,
// начисляется фиксированный бонус независимо от статуса оплаты.
func (s *Service) SubmitReview(ctx context.Context, user *model.User, orderID string, rating int, text string) error {
	if err := s.repo.MarkOrderReviewed(ctx, orderID, user.ID, reward.ReviewBonusCents); err != nil {
		return err
	}

	s.notifyUser(ctx, user.TelegramID, notify.ReviewBonus(cents(reward.ReviewBonusCents)))
	s.notifyAdmin(ctx, fmt.Sprintf("Отзыв о заказе %s (%d/5): %s", orderID, rating, text))

	return nil
}

// ApplyReferralCode привязывает пользователя к пригласившему по коду.
func (s *Service) ApplyReferralCode(ctx context.Context, userID int64, code string) (*model.User, error) {
	return s.repo.LinkReferrer(ctx, userID, promo.NormalizeCode(code))
}

// ValidatePromo проверяет применимость промокода без изменения
// состояния и возвращает его параметры.
func (s *Service) ValidatePromo(ctx context.Context, code string) (*model.PromoCode, error) {
	p, err := s.repo.GetPromoByCode(ctx, promo.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if err := promo.Validate(p, time.Now()); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePromo создаёт промокод (административная операция).
func (s *Service) CreatePromo(ctx context.Context, p *model.PromoCode) (int64, error) {
	p.Code = promo.NormalizeCode(p.Code)
	return s.repo.CreatePromo(ctx, p)
}

// RequestWithdrawal создаёт заявку на выплату. Баланс проверяется
// сейчас, списывается при завершении.
func (s *Service) RequestWithdrawal(ctx context.Context, user *model.User, amountCents int64, wType model.WithdrawalType, wallet string) (*model.Withdrawal, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	if wallet == "" {
		wallet = user.WalletAddress
	}
	if wallet == "" {
		return nil, ErrNoWallet
	}

	w := &model.Withdrawal{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		AmountCents: amountCents,
		Wallet:      wallet,
		Type:        wType,
		Status:      model.WithdrawalStatusPending,
	}

	if err := s.repo.CreateWithdrawal(ctx, w); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.WithdrawalsByStatus.WithLabelValues(string(model.WithdrawalStatusPending)).Inc()
	}

	return w, nil
}

// CompleteWithdrawal завершает заявку (административная операция).
func (s *Service) CompleteWithdrawal(ctx context.Context, id, txHash string) (*model.Withdrawal, error) {
	w, err := s.repo.CompleteWithdrawal(ctx, id, txHash)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.WithdrawalsByStatus.WithLabelValues(string(model.WithdrawalStatusCompleted)).Inc()
	}

	user, err := s.repo.GetUserByID(ctx, w.UserID)
	if err == nil {
		s.notifyUser(ctx, user.TelegramID, notify.WithdrawalCompleted(cents(w.AmountCents), txHash))
	}

	return w, nil
}

// CancelWithdrawal отклоняет заявку с необязательной причиной.
// Баланс не корректируется: средства не резервировались.
func (s *Service) CancelWithdrawal(ctx context.Context, id, reason string) (*model.Withdrawal, error) {
	w, err := s.repo.CancelWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.WithdrawalsByStatus.WithLabelValues(string(model.WithdrawalStatusCancelled)).Inc()
	}

	user, err := s.repo.GetUserByID(ctx, w.UserID)
	if err == nil {
		s.notifyUser(ctx, user.TelegramID, notify.WithdrawalCancelled(cents(w.AmountCents), reason))
	}

	return w, nil
}

// GetWithdrawalsByUser возвращает заявки пользователя на выплату.
func (s *Service) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	return s.repo.GetWithdrawalsByUser(ctx, userID)
}

// GetOrdersByUser возвращает заказы пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// ListOrders возвращает все заказы (административная операция).
func (s *Service) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListOrders(ctx)
}

// GetOrder возвращает заказ, проверяя владельца.
func (s *Service) GetOrder(ctx context.Context, userID int64, orderID string) (*model.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	return order, nil
}

// GetInvoiceByOrder возвращает счёт заказа, проверяя владельца.
func (s *Service) GetInvoiceByOrder(ctx context.Context, userID int64, orderID string) (*model.Invoice, error) {
	inv, err := s.repo.GetInvoiceByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	return inv, nil
}

// GetBalance возвращает балансы пользователя.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Balance{
		Cashback:         cents(user.CashbackCents),
		ReferralEarnings: cents(user.ReferralEarningsCents),
		TotalSpent:       cents(user.TotalSpentCents),
	}, nil
}

// GetCashbackHistory возвращает журнал кешбэка пользователя.
func (s *Service) GetCashbackHistory(ctx context.Context, userID int64) ([]model.CashbackEntry, error) {
	return s.repo.GetCashbackHistory(ctx, userID, 100)
}

// GetReferrals возвращает рефералов пользователя.
func (s *Service) GetReferrals(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	return s.repo.GetReferralsByReferrer(ctx, referrerID)
}

// MarkReferralPaid помечает бонус пары выплаченным вручную.
func (s *Service) MarkReferralPaid(ctx context.Context, referralID int64) error {
	return s.repo.MarkReferralPaid(ctx, referralID)
}

// SetWalletAddress сохраняет кошелёк пользователя для выплат.
func (s *Service) SetWalletAddress(ctx context.Context, userID int64, address string) error {
	return s.repo.SetWalletAddress(ctx, userID, address)
}

// cents переводит копейки в валютные единицы для отображения.
func cents(v int64) float64 {
	return float64(v) / 100
}
