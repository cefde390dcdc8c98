// Package handler содержит HTTP-обработчики API витрины артстор.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smirnovmax/artstore-system/internal/chain"
	"github.com/smirnovmax/artstore-system/internal/middleware"
	"github.com/smirnovmax/artstore-system/internal/model"
	"github.com/smirnovmax/artstore-system/internal/promo"
	"github.com/smirnovmax/artstore-system/internal/repository"
	"github.com/smirnovmax/artstore-system/internal/reward"
	"github.com/smirnovmax/artstore-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	GetOrCreateUser(ctx context.Context, telegramID int64, name, username string) (*model.User, error)
	SavePendingReferral(ctx context.Context, telegramID int64, code string) error

	CreateOrder(ctx context.Context, user *model.User, in service.CreateOrderInput) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetOrder(ctx context.Context, userID int64, orderID string) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error
	SubmitReview(ctx context.Context, user *model.User, orderID string, rating int, text string) error

	IssueInvoice(ctx context.Context, orderID string, overrideCents int64, promoCode string) (*model.Invoice, error)
	GetInvoiceByOrder(ctx context.Context, userID int64, orderID string) (*model.Invoice, error)
	SubmitTxHash(ctx context.Context, userID int64, orderID, txHash string) error
	VerifyTransaction(ctx context.Context, txHash string, expectedCents int64, expectedAddress string) (chain.VerifyResult, error)
	ConfirmPayment(ctx context.Context, invoiceID int64, txHash string) (*repository.ConfirmPaymentResult, error)

	ApplyReferralCode(ctx context.Context, userID int64, code string) (*model.User, error)
	GetReferrals(ctx context.Context, referrerID int64) ([]model.Referral, error)
	MarkReferralPaid(ctx context.Context, referralID int64) error
	ValidatePromo(ctx context.Context, code string) (*model.PromoCode, error)
	CreatePromo(ctx context.Context, p *model.PromoCode) (int64, error)

	RequestWithdrawal(ctx context.Context, user *model.User, amountCents int64, wType model.WithdrawalType, wallet string) (*model.Withdrawal, error)
	GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error)
	CompleteWithdrawal(ctx context.Context, id, txHash string) (*model.Withdrawal, error)
	CancelWithdrawal(ctx context.Context, id, reason string) (*model.Withdrawal, error)

	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	GetCashbackHistory(ctx context.Context, userID int64) ([]model.CashbackEntry, error)
	SetWalletAddress(ctx context.Context, userID int64, address string) error
}

// Handler реализует HTTP-обработчики API витрины артстор.
type Handler struct {
	service     Service
	logger      *zap.Logger
	botUsername string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, botUsername string) *Handler {
	return &Handler{
		service:     s,
		logger:      logger,
		botUsername: botUsername,
	}
}

// currentUser материализует пользователя по личности из контекста.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}

	user, err := h.service.GetOrCreateUser(r.Context(), identity.TelegramID, identity.Name, identity.Username)
	if err != nil {
		h.logger.Error("get or create user error", zap.Error(err), zap.Int64("telegramID", identity.TelegramID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}

	return user, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// serviceError переводит доменные ошибки в HTTP-статусы.
func (h *Handler) serviceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrInvoiceNotFound),
		errors.Is(err, repository.ErrPromoNotFound),
		errors.Is(err, repository.ErrReferralCodeNotFound),
		errors.Is(err, repository.ErrReferralNotFound),
		errors.Is(err, repository.ErrWithdrawalNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrInvoiceExists),
		errors.Is(err, repository.ErrInvoiceAlreadyPaid),
		errors.Is(err, repository.ErrPromoCodeExists),
		errors.Is(err, repository.ErrAlreadyReferred),
		errors.Is(err, repository.ErrAlreadyReviewed),
		errors.Is(err, repository.ErrReferralAlreadyPaid),
		errors.Is(err, repository.ErrWithdrawalFinalized),
		errors.Is(err, service.ErrOrderFinalized):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, repository.ErrInsufficientBalance):
		http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
	case errors.Is(err, service.ErrNotOrderOwner):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrCashbackTooHigh),
		errors.Is(err, service.ErrNoWallet),
		errors.Is(err, repository.ErrSelfReferral),
		errors.Is(err, promo.ErrPromoInactive),
		errors.Is(err, promo.ErrPromoExpired),
		errors.Is(err, promo.ErrPromoExhausted):
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
	default:
		h.logger.Error(msg, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// toCents переводит валютные единицы в копейки.
func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(v int64) float64 {
	return float64(v) / 100
}

type orderItemDTO struct {
	Title    string  `json:"title"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type orderResponse struct {
	ID             string         `json:"id"`
	Items          []orderItemDTO `json:"items,omitempty"`
	Service        string         `json:"service,omitempty"`
	Amount         float64        `json:"amount"`
	Discount       float64        `json:"discount"`
	Total          float64        `json:"total"`
	CashbackUsed   float64        `json:"cashback_used"`
	CashbackEarned float64        `json:"cashback_earned"`
	Status         string         `json:"status"`
	TxHash         string         `json:"tx_hash,omitempty"`
	PaymentMethod  string         `json:"payment_method,omitempty"`
	Reviewed       bool           `json:"reviewed"`
	CreatedAt      string         `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDTO{
			Title:    it.Title,
			Quantity: it.Quantity,
			Price:    fromCents(it.Price),
		})
	}

	return orderResponse{
		ID:             o.ID,
		Items:          items,
		Service:        o.Service,
		Amount:         fromCents(o.SubtotalCents),
		Discount:       fromCents(o.DiscountCents),
		Total:          fromCents(o.TotalCents),
		CashbackUsed:   fromCents(o.CashbackUsedCents),
		CashbackEarned: fromCents(o.CashbackEarnedCents),
		Status:         string(o.Status),
		TxHash:         o.TxHash,
		PaymentMethod:  o.PaymentMethod,
		Reviewed:       o.Reviewed,
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
	}
}

type invoiceResponse struct {
	ID             int64   `json:"id"`
	OrderID        string  `json:"order_id"`
	Amount         float64 `json:"amount"`
	PromoCode      string  `json:"promo_code,omitempty"`
	Discount       float64 `json:"discount"`
	FinalAmount    float64 `json:"final_amount"`
	PaymentAddress string  `json:"payment_address"`
	TxHash         string  `json:"tx_hash,omitempty"`
	Status         string  `json:"status"`
	PaidAt         string  `json:"paid_at,omitempty"`
}

func toInvoiceResponse(inv *model.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:             inv.ID,
		OrderID:        inv.OrderID,
		Amount:         fromCents(inv.AmountCents),
		PromoCode:      inv.PromoCode,
		Discount:       fromCents(inv.DiscountCents),
		FinalAmount:    fromCents(inv.FinalAmountCents),
		PaymentAddress: inv.PaymentAddress,
		TxHash:         inv.TxHash,
		Status:         string(inv.Status),
	}
	if inv.PaidAt != nil {
		resp.PaidAt = inv.PaidAt.Format(time.RFC3339)
	}
	return resp
}

type profileResponse struct {
	ID              int64   `json:"id"`
	TelegramID      int64   `json:"telegram_id"`
	Name            string  `json:"name"`
	Username        string  `json:"username,omitempty"`
	Level           string  `json:"level"`
	DiscountPercent int     `json:"discount_percent"`
	TotalSpent      float64 `json:"total_spent"`
	Cashback        float64 `json:"cashback"`
	ReferralCode    string  `json:"referral_code"`
	ReferralLink    string  `json:"referral_link,omitempty"`
	WalletAddress   string  `json:"wallet_address,omitempty"`
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	link, _ := promo.ReferralLink(h.botUsername, user.ReferralCode)

	h.writeJSON(w, http.StatusOK, profileResponse{
		ID:              user.ID,
		TelegramID:      user.TelegramID,
		Name:            user.Name,
		Username:        user.Username,
		Level:           string(user.Level),
		DiscountPercent: reward.DiscountPercent(user.Level),
		TotalSpent:      fromCents(user.TotalSpentCents),
		Cashback:        fromCents(user.CashbackCents),
		ReferralCode:    user.ReferralCode,
		ReferralLink:    link,
		WalletAddress:   user.WalletAddress,
	})
}

type createOrderRequest struct {
	OrderID       string         `json:"order_id"`
	Items         []orderItemDTO `json:"items"`
	Service       string         `json:"service"`
	Amount        float64        `json:"amount"`
	CashbackUsed  float64        `json:"cashback_used"`
	PromoCode     string         `json:"promo_code"`
	PaymentMethod string         `json:"payment_method"`
	Cart          bool           `json:"cart"`
}

// CreateOrder создаёт заказ текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.OrderItem{
			Title:    it.Title,
			Quantity: it.Quantity,
			Price:    toCents(it.Price),
		})
	}

	order, err := h.service.CreateOrder(r.Context(), user, service.CreateOrderInput{
		OrderID:           req.OrderID,
		Items:             items,
		Service:           req.Service,
		SubtotalCents:     toCents(req.Amount),
		CashbackUsedCents: toCents(req.CashbackUsed),
		PromoCode:         req.PromoCode,
		PaymentMethod:     req.PaymentMethod,
		Cart:              req.Cart,
	})
	if err != nil {
		h.serviceError(w, err, "create order error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrders возвращает заказы текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", user.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает один заказ текущего пользователя.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), user.ID, chi.URLParam(r, "orderID"))
	if err != nil {
		h.serviceError(w, err, "get order error")
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type reviewRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

// SubmitReview принимает отзыв о заказе.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	if err := h.service.SubmitReview(r.Context(), user, chi.URLParam(r, "orderID"), req.Rating, req.Text); err != nil {
		h.serviceError(w, err, "submit review error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetInvoice возвращает счёт заказа текущего пользователя.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	inv, err := h.service.GetInvoiceByOrder(r.Context(), user.ID, chi.URLParam(r, "orderID"))
	if err != nil {
		h.serviceError(w, err, "get invoice error")
		return
	}

	h.writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

type txHashRequest struct {
	TxHash string `json:"tx_hash"`
}

// SubmitTxHash прикрепляет хеш транзакции к счёту заказа.
func (h *Handler) SubmitTxHash(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req txHashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TxHash == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SubmitTxHash(r.Context(), user.ID, chi.URLParam(r, "orderID"), req.TxHash); err != nil {
		h.serviceError(w, err, "submit tx hash error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type verifyResponse struct {
	Verified    bool    `json:"verified"`
	Reason      string  `json:"reason,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	Recipient   string  `json:"recipient,omitempty"`
	ConfirmedAt string  `json:"confirmed_at,omitempty"`
}

// VerifyPayment проверяет перевод по счёту заказа. Состояние не
// меняется: подтверждение оплаты выполняет администратор явно.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	inv, err := h.service.GetInvoiceByOrder(r.Context(), user.ID, chi.URLParam(r, "orderID"))
	if err != nil {
		h.serviceError(w, err, "get invoice error")
		return
	}

	var req txHashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	txHash := req.TxHash
	if txHash == "" {
		txHash = inv.TxHash
	}
	if txHash == "" {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	res, err := h.service.VerifyTransaction(r.Context(), txHash, inv.FinalAmountCents, inv.PaymentAddress)
	if err != nil {
		h.logger.Error("verify transaction error", zap.Error(err), zap.String("txHash", txHash))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	resp := verifyResponse{
		Verified:  res.Verified,
		Reason:    string(res.Reason),
		Amount:    fromCents(res.AmountCents),
		Recipient: res.Recipient,
	}
	if !res.ConfirmedAt.IsZero() {
		resp.ConfirmedAt = res.ConfirmedAt.Format(time.RFC3339)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type referralCodeRequest struct {
	Code string `json:"code"`
}

// ApplyReferralCode привязывает текущего пользователя к пригласившему.
func (h *Handler) ApplyReferralCode(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req referralCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	referrer, err := h.service.ApplyReferralCode(r.Context(), user.ID, req.Code)
	if err != nil {
		h.serviceError(w, err, "apply referral code error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"referrer_name": referrer.Name})
}

type referralResponse struct {
	ID           int64   `json:"id"`
	ReferredName string  `json:"referred_name"`
	Earnings     float64 `json:"earnings"`
	PaidOut      bool    `json:"paid_out"`
	CreatedAt    string  `json:"created_at"`
}

// GetReferrals возвращает рефералов текущего пользователя.
func (h *Handler) GetReferrals(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	referrals, err := h.service.GetReferrals(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("get referrals error", zap.Error(err), zap.Int64("userID", user.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]referralResponse, 0, len(referrals))
	for _, ref := range referrals {
		resp = append(resp, referralResponse{
			ID:           ref.ID,
			ReferredName: ref.ReferredName,
			Earnings:     fromCents(ref.EarningsCents),
			PaidOut:      ref.PaidOut,
			CreatedAt:    ref.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetReferralQR отдаёт PNG с QR-кодом реферальной ссылки.
func (h *Handler) GetReferralQR(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	png, err := promo.ReferralQR(h.botUsername, user.ReferralCode)
	if err != nil {
		h.logger.Error("referral qr error", zap.Error(err), zap.Int64("userID", user.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

type promoValidateRequest struct {
	Code string `json:"code"`
}

type promoResponse struct {
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount_percent"`
}

// ValidatePromo проверяет применимость промокода.
func (h *Handler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUser(w, r); !ok {
		return
	}

	var req promoValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.ValidatePromo(r.Context(), req.Code)
	if err != nil {
		h.serviceError(w, err, "validate promo error")
		return
	}

	h.writeJSON(w, http.StatusOK, promoResponse{
		Code:            p.Code,
		DiscountPercent: p.DiscountPercent,
	})
}

// GetBalance возвращает балансы текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), user.ID)
	if err != nil {
		h.serviceError(w, err, "get balance error")
		return
	}

	h.writeJSON(w, http.StatusOK, balance)
}

type cashbackEntryResponse struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`
}

// GetCashbackHistory возвращает журнал кешбэка текущего пользователя.
func (h *Handler) GetCashbackHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	entries, err := h.service.GetCashbackHistory(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("get cashback history error", zap.Error(err), zap.Int64("userID", user.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]cashbackEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, cashbackEntryResponse{
			Amount:      fromCents(e.AmountCents),
			Description: e.Description,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type withdrawalRequest struct {
	Amount float64 `json:"amount"`
	Type   string  `json:"type"`
	Wallet string  `json:"wallet"`
}

type withdrawalResponse struct {
	ID          string  `json:"id"`
	Amount      float64 `json:"amount"`
	Wallet      string  `json:"wallet"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	TxHash      string  `json:"tx_hash,omitempty"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt string  `json:"processed_at,omitempty"`
}

func toWithdrawalResponse(wd *model.Withdrawal) withdrawalResponse {
	resp := withdrawalResponse{
		ID:        wd.ID,
		Amount:    fromCents(wd.AmountCents),
		Wallet:    wd.Wallet,
		Type:      string(wd.Type),
		Status:    string(wd.Status),
		TxHash:    wd.TxHash,
		CreatedAt: wd.CreatedAt.Format(time.RFC3339),
	}
	if wd.ProcessedAt != nil {
		resp.ProcessedAt = wd.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}

// RequestWithdrawal создаёт заявку на выплату текущего пользователя.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	wType := model.WithdrawalType(req.Type)
	if wType == "" {
		wType = model.WithdrawalTypeCashback
	}
	if wType != model.WithdrawalTypeCashback && wType != model.WithdrawalTypeReferral {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	wd, err := h.service.RequestWithdrawal(r.Context(), user, toCents(req.Amount), wType, req.Wallet)
	if err != nil {
		h.serviceError(w, err, "request withdrawal error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toWithdrawalResponse(wd))
}

// GetWithdrawals возвращает заявки текущего пользователя.
func (h *Handler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	withdrawals, err := h.service.GetWithdrawalsByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("get withdrawals error", zap.Error(err), zap.Int64("userID", user.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(withdrawals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]withdrawalResponse, 0, len(withdrawals))
	for i := range withdrawals {
		resp = append(resp, toWithdrawalResponse(&withdrawals[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type walletRequest struct {
	Address string `json:"address"`
}

// SetWallet сохраняет кошелёк текущего пользователя для выплат.
func (h *Handler) SetWallet(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetWalletAddress(r.Context(), user.ID, req.Address); err != nil {
		h.serviceError(w, err, "set wallet error")
		return
	}

	w.WriteHeader(http.StatusOK)
}
