// Package model содержит доменные сущности витрины артстор.
package model

import "time"

// Level описывает уровень лояльности пользователя.
type Level string

const (
	LevelNone     Level = "none"
	LevelBronze   Level = "bronze"
	LevelSilver   Level = "silver"
	LevelGold     Level = "gold"
	LevelPlatinum Level = "platinum"
)

// User представляет пользователя мини-приложения. Создаётся лениво
// при первом аутентифицированном обращении и никогда не удаляется.
type User struct {
	ID                    int64
	TelegramID            int64
	Name                  string
	Username              string
	Level                 Level
	TotalSpentCents       int64
	CashbackCents         int64
	ReferralCode          string
	ReferredBy            *int64
	ReferralEarningsCents int64
	WalletAddress         string
	CreatedAt             time.Time
}

// OrderStatus описывает статус обработки заказа. Администратор может
// выставить произвольное значение, известные статусы перечислены ниже.
type OrderStatus string

const (
	OrderStatusAwaitingManager OrderStatus = "awaiting_manager"
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusWorking         OrderStatus = "working"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Terminal сообщает, является ли статус конечным.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// OrderItem описывает одну позицию заказа. Хранится в jsonb,
// сериализация выполняется только на границе хранилища.
type OrderItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// Order описывает заказ пользователя. Денежные поля в копейках.
// Инвариант: TotalCents = SubtotalCents - DiscountCents.
type Order struct {
	ID                  string
	UserID              int64
	Items               []OrderItem
	Service             string
	SubtotalCents       int64
	DiscountCents       int64
	TotalCents          int64
	CashbackUsedCents   int64
	CashbackEarnedCents int64
	Status              OrderStatus
	TxHash              string
	PaymentMethod       string
	Reviewed            bool
	CreatedAt           time.Time
}

// InvoiceStatus описывает статус счёта на оплату.
type InvoiceStatus string

const (
	InvoiceStatusAwaitingPayment InvoiceStatus = "awaiting_payment"
	InvoiceStatusPaid            InvoiceStatus = "paid"
)

// Invoice — платёжный снимок заказа. Один счёт на один заказ,
// после оплаты изменяется только поле TxHash при верификации.
type Invoice struct {
	ID               int64
	OrderID          string
	UserID           int64
	AmountCents      int64
	PromoCode        string
	DiscountCents    int64
	FinalAmountCents int64
	PaymentAddress   string
	TxHash           string
	Status           InvoiceStatus
	PaidAt           *time.Time
	CreatedAt        time.Time
}

// CashbackEntry — строка append-only журнала кешбэка. Баланс
// пользователя — материализованный итог, журнал — источник истины
// для сверки.
type CashbackEntry struct {
	ID          int64
	UserID      int64
	AmountCents int64
	Description string
	CreatedAt   time.Time
}

// Referral — связь «пригласивший — приглашённый», не более одной
// записи на приглашённого. EarningsCents перезаписывается комиссией
// за первый заказ и обнуляется при ручной выплате.
type Referral struct {
	ID            int64
	ReferrerID    int64
	ReferredID    int64
	ReferredName  string
	EarningsCents int64
	PaidOut       bool
	CreatedAt     time.Time
}

// PromoCode описывает промокод. Код хранится в верхнем регистре.
type PromoCode struct {
	ID              int64
	Code            string
	DiscountPercent int
	MaxUses         *int
	ExpiresAt       *time.Time
	CurrentUses     int
	Active          bool
}

// PromoUse — append-only запись применения промокода к заказу.
type PromoUse struct {
	ID      int64
	PromoID int64
	UserID  int64
	OrderID string
	UsedAt  time.Time
}

// WithdrawalType определяет, с какого баланса выполняется выплата.
type WithdrawalType string

const (
	WithdrawalTypeCashback WithdrawalType = "cashback"
	WithdrawalTypeReferral WithdrawalType = "referral"
)

// WithdrawalStatus описывает статус заявки на выплату.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusCancelled WithdrawalStatus = "cancelled"
)

// Withdrawal — заявка на выплату. Баланс проверяется при создании,
// списывается только при завершении.
type Withdrawal struct {
	ID          string
	UserID      int64
	AmountCents int64
	Wallet      string
	Type        WithdrawalType
	Status      WithdrawalStatus
	TxHash      string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Balance содержит балансы пользователя для выдачи наружу.
type Balance struct {
	Cashback         float64 `json:"cashback"`
	ReferralEarnings float64 `json:"referral_earnings"`
	TotalSpent       float64 `json:"total_spent"`
}
