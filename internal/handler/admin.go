package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smirnovmax/artstore-system/internal/export"
	"github.com/smirnovmax/artstore-system/internal/model"
)

type issueInvoiceRequest struct {
	Amount    float64 `json:"amount"`
	PromoCode string  `json:"promo_code"`
}

// AdminIssueInvoice выставляет счёт по заказу. Администратор может
// переопределить сумму к оплате.
func (h *Handler) AdminIssueInvoice(w http.ResponseWriter, r *http.Request) {
	var req issueInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	inv, err := h.service.IssueInvoice(r.Context(), chi.URLParam(r, "orderID"), toCents(req.Amount), req.PromoCode)
	if err != nil {
		h.serviceError(w, err, "issue invoice error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// AdminUpdateOrderStatus выставляет статус заказа. Значение не
// ограничено известным перечнем.
func (h *Handler) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderID"), model.OrderStatus(req.Status)); err != nil {
		h.serviceError(w, err, "update order status error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AdminConfirmPayment подтверждает оплату счёта и запускает начисления.
func (h *Handler) AdminConfirmPayment(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req txHashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.ConfirmPayment(r.Context(), invoiceID, req.TxHash)
	if err != nil {
		h.serviceError(w, err, "confirm payment error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"order_id":     res.OrderID,
		"final_amount": fromCents(res.FinalAmountCents),
		"first_order":  res.FirstOrder,
	})
}

type createPromoRequest struct {
	Code            string  `json:"code"`
	DiscountPercent int     `json:"discount_percent"`
	MaxUses         *int    `json:"max_uses"`
	ExpiresAt       *string `json:"expires_at"`
	Active          *bool   `json:"active"`
}

// AdminCreatePromo создаёт промокод.
func (h *Handler) AdminCreatePromo(w http.ResponseWriter, r *http.Request) {
	var req createPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.DiscountPercent < 1 || req.DiscountPercent > 100 {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	p := &model.PromoCode{
		Code:            req.Code,
		DiscountPercent: req.DiscountPercent,
		MaxUses:         req.MaxUses,
		Active:          true,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		p.ExpiresAt = &t
	}

	id, err := h.service.CreatePromo(r.Context(), p)
	if err != nil {
		h.serviceError(w, err, "create promo error")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// AdminCompleteWithdrawal завершает заявку на выплату.
func (h *Handler) AdminCompleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req txHashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	wd, err := h.service.CompleteWithdrawal(r.Context(), chi.URLParam(r, "withdrawalID"), req.TxHash)
	if err != nil {
		h.serviceError(w, err, "complete withdrawal error")
		return
	}

	h.writeJSON(w, http.StatusOK, toWithdrawalResponse(wd))
}

type cancelWithdrawalRequest struct {
	Reason string `json:"reason"`
}

// AdminCancelWithdrawal отклоняет заявку на выплату.
func (h *Handler) AdminCancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req cancelWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	wd, err := h.service.CancelWithdrawal(r.Context(), chi.URLParam(r, "withdrawalID"), req.Reason)
	if err != nil {
		h.serviceError(w, err, "cancel withdrawal error")
		return
	}

	h.writeJSON(w, http.StatusOK, toWithdrawalResponse(wd))
}

// AdminMarkReferralPaid помечает реферальный бонус выплаченным.
func (h *Handler) AdminMarkReferralPaid(w http.ResponseWriter, r *http.Request) {
	referralID, err := strconv.ParseInt(chi.URLParam(r, "referralID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.MarkReferralPaid(r.Context(), referralID); err != nil {
		h.serviceError(w, err, "mark referral paid error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type pendingReferralRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Code       string `json:"code"`
}

// AdminSavePendingReferral сохраняет код, предъявленный на входе в бота
// до первого открытия приложения. Вызывается ботом.
func (h *Handler) AdminSavePendingReferral(w http.ResponseWriter, r *http.Request) {
	var req pendingReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TelegramID == 0 || req.Code == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SavePendingReferral(r.Context(), req.TelegramID, req.Code); err != nil {
		h.serviceError(w, err, "save pending referral error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AdminListOrders возвращает все заказы.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// AdminExportOrders отдаёт xlsx-отчёт по всем заказам.
func (h *Handler) AdminExportOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	data, err := export.OrdersReport(orders)
	if err != nil {
		h.logger.Error("export orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.xlsx"`)
	w.Write(data)
}
