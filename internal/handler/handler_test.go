package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/smirnovmax/artstore-system/internal/chain"
	"github.com/smirnovmax/artstore-system/internal/middleware"
	"github.com/smirnovmax/artstore-system/internal/model"
	"github.com/smirnovmax/artstore-system/internal/promo"
	"github.com/smirnovmax/artstore-system/internal/repository"
	"github.com/smirnovmax/artstore-system/internal/service"
)

type stubService struct {
	createOrderFn     func(ctx context.Context, user *model.User, in service.CreateOrderInput) (*model.Order, error)
	getOrdersFn       func(ctx context.Context, userID int64) ([]model.Order, error)
	getOrderFn        func(ctx context.Context, userID int64, orderID string) (*model.Order, error)
	getInvoiceFn      func(ctx context.Context, userID int64, orderID string) (*model.Invoice, error)
	confirmPaymentFn  func(ctx context.Context, invoiceID int64, txHash string) (*repository.ConfirmPaymentResult, error)
	verifyFn          func(ctx context.Context, txHash string, expectedCents int64, expectedAddress string) (chain.VerifyResult, error)
	updateStatusFn    func(ctx context.Context, orderID string, status model.OrderStatus) error
	validatePromoFn   func(ctx context.Context, code string) (*model.PromoCode, error)
	requestWithdrawFn func(ctx context.Context, user *model.User, amountCents int64, wType model.WithdrawalType, wallet string) (*model.Withdrawal, error)
}

func (s *stubService) GetOrCreateUser(ctx context.Context, telegramID int64, name, username string) (*model.User, error) {
	return &model.User{ID: 1, TelegramID: telegramID, Name: name, Username: username, Level: model.LevelNone, ReferralCode: "ABCD1234"}, nil
}

func (s *stubService) SavePendingReferral(ctx context.Context, telegramID int64, code string) error {
	return nil
}

func (s *stubService) CreateOrder(ctx context.Context, user *model.User, in service.CreateOrderInput) (*model.Order, error) {
	return s.createOrderFn(ctx, user, in)
}

func (s *stubService) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	if s.getOrdersFn != nil {
		return s.getOrdersFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubService) GetOrder(ctx context.Context, userID int64, orderID string) (*model.Order, error) {
	return s.getOrderFn(ctx, userID, orderID)
}

func (s *stubService) ListOrders(ctx context.Context) ([]model.Order, error) { return nil, nil }

func (s *stubService) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, orderID, status)
	}
	return nil
}

func (s *stubService) SubmitReview(ctx context.Context, user *model.User, orderID string, rating int, text string) error {
	return nil
}

func (s *stubService) IssueInvoice(ctx context.Context, orderID string, overrideCents int64, promoCode string) (*model.Invoice, error) {
	return nil, repository.ErrOrderNotFound
}

func (s *stubService) GetInvoiceByOrder(ctx context.Context, userID int64, orderID string) (*model.Invoice, error) {
	return s.getInvoiceFn(ctx, userID, orderID)
}

func (s *stubService) SubmitTxHash(ctx context.Context, userID int64, orderID, txHash string) error {
	return nil
}

func (s *stubService) VerifyTransaction(ctx context.Context, txHash string, expectedCents int64, expectedAddress string) (chain.VerifyResult, error) {
	return s.verifyFn(ctx, txHash, expectedCents, expectedAddress)
}

func (s *stubService) ConfirmPayment(ctx context.Context, invoiceID int64, txHash string) (*repository.ConfirmPaymentResult, error) {
	return s.confirmPaymentFn(ctx, invoiceID, txHash)
}

func (s *stubService) ApplyReferralCode(ctx context.Context, userID int64, code string) (*model.User, error) {
	return nil, repository.ErrReferralCodeNotFound
}

func (s *stubService) GetReferrals(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	return nil, nil
}

func (s *stubService) MarkReferralPaid(ctx context.Context, referralID int64) error { return nil }

func (s *stubService) ValidatePromo(ctx context.Context, code string) (*model.PromoCode, error) {
	return s.validatePromoFn(ctx, code)
}

func (s *stubService) CreatePromo(ctx context.Context, p *model.PromoCode) (int64, error) {
	return 1, nil
}

func (s *stubService) RequestWithdrawal(ctx context.Context, user *model.User, amountCents int64, wType model.WithdrawalType, wallet string) (*model.Withdrawal, error) {
	return s.requestWithdrawFn(ctx, user, amountCents, wType, wallet)
}

func (s *stubService) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	return nil, nil
}

func (s *stubService) CompleteWithdrawal(ctx context.Context, id, txHash string) (*model.Withdrawal, error) {
	return nil, repository.ErrWithdrawalNotFound
}

func (s *stubService) CancelWithdrawal(ctx context.Context, id, reason string) (*model.Withdrawal, error) {
	return nil, repository.ErrWithdrawalNotFound
}

func (s *stubService) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	return &model.Balance{Cashback: 12.5}, nil
}

func (s *stubService) GetCashbackHistory(ctx context.Context, userID int64) ([]model.CashbackEntry, error) {
	return nil, nil
}

func (s *stubService) SetWalletAddress(ctx context.Context, userID int64, address string) error {
	return nil
}

const testAdminToken = "admin-secret"

func newTestServer(t *testing.T, svc Service) (*httptest.Server, string) {
	t.Helper()

	auth := middleware.NewAuthMiddleware("123456:test-token")
	h := NewHandler(svc, zap.NewNop(), "artstore_bot")
	router := NewRouter(h, auth, zap.NewNop(), testAdminToken, "")

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	signed := auth.SignInitData(url.Values{
		"user":      []string{`{"id":42,"first_name":"Анна","username":"anna"}`},
		"auth_date": []string{"1700000000"},
	})

	return srv, "tma " + signed
}

func doRequest(t *testing.T, method, url, auth string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestCreateOrder(t *testing.T) {
	svc := &stubService{
		createOrderFn: func(ctx context.Context, user *model.User, in service.CreateOrderInput) (*model.Order, error) {
			if in.SubtotalCents != 300_00 {
				t.Errorf("subtotal = %d, want %d", in.SubtotalCents, 300_00)
			}
			return &model.Order{
				ID:            "1700000000-AB12CD",
				UserID:        user.ID,
				SubtotalCents: in.SubtotalCents,
				TotalCents:    in.SubtotalCents,
				Status:        model.OrderStatusPending,
				CreatedAt:     time.Now(),
			}, nil
		},
	}

	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/user/orders", auth, map[string]any{
		"items": []map[string]any{
			{"title": "Холст 40x60", "quantity": 2, "price": 150.0},
		},
		"amount": 300.0,
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "1700000000-AB12CD" {
		t.Errorf("order id = %q", got.ID)
	}
	if got.Total != 300.0 {
		t.Errorf("total = %v, want 300", got.Total)
	}
}

func TestCreateOrderEmpty(t *testing.T) {
	svc := &stubService{
		createOrderFn: func(ctx context.Context, user *model.User, in service.CreateOrderInput) (*model.Order, error) {
			return nil, service.ErrEmptyOrder
		},
	}

	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/user/orders", auth, map[string]any{})

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestCreateOrderUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/user/orders", "", map[string]any{})

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestGetOrdersEmpty(t *testing.T) {
	srv, auth := newTestServer(t, &stubService{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/user/orders", auth, nil)

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestGetOrderForeign(t *testing.T) {
	svc := &stubService{
		getOrderFn: func(ctx context.Context, userID int64, orderID string) (*model.Order, error) {
			return nil, service.ErrNotOrderOwner
		},
	}

	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/user/orders/123", auth, nil)

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestVerifyPayment(t *testing.T) {
	confirmedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubService{
		getInvoiceFn: func(ctx context.Context, userID int64, orderID string) (*model.Invoice, error) {
			return &model.Invoice{ID: 5, OrderID: orderID, UserID: userID, FinalAmountCents: 100_00, PaymentAddress: "TWallet"}, nil
		},
		verifyFn: func(ctx context.Context, txHash string, expectedCents int64, expectedAddress string) (chain.VerifyResult, error) {
			if expectedCents != 100_00 || expectedAddress != "TWallet" {
				t.Errorf("expected = %d/%q", expectedCents, expectedAddress)
			}
			return chain.VerifyResult{Verified: true, AmountCents: 100_00, Recipient: "TWallet", ConfirmedAt: confirmedAt}, nil
		},
	}

	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/user/orders/123/verify", auth, map[string]string{"tx_hash": "abc123"})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.Verified {
		t.Error("verified = false, want true")
	}
}

func TestConfirmPaymentRepeat(t *testing.T) {
	svc := &stubService{
		confirmPaymentFn: func(ctx context.Context, invoiceID int64, txHash string) (*repository.ConfirmPaymentResult, error) {
			return nil, repository.ErrInvoiceAlreadyPaid
		},
	}

	srv, _ := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/admin/invoices/5/confirm", "Bearer "+testAdminToken, map[string]string{})

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	srv, userAuth := newTestServer(t, &stubService{})

	// Токен пользовательского приложения не принимается как
	// административный: нет схемы Bearer — 401.
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/admin/orders", userAuth, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/admin/orders", "Bearer wrong-token", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestUpdateStatusFinalizedOrderConflict(t *testing.T) {
	svc := &stubService{
		updateStatusFn: func(ctx context.Context, orderID string, status model.OrderStatus) error {
			return service.ErrOrderFinalized
		},
	}

	srv, _ := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/admin/orders/1700000000-ABCDEF/status",
		"Bearer "+testAdminToken, map[string]string{"status": "working"})

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestValidatePromoExpired(t *testing.T) {
	svc := &stubService{
		validatePromoFn: func(ctx context.Context, code string) (*model.PromoCode, error) {
			return nil, promo.ErrPromoExpired
		},
	}

	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/user/promo/validate", auth, map[string]string{"code": "OLD"})

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestRequestWithdrawalInsufficient(t *testing.T) {
	svc := &stubService{
		requestWithdrawFn: func(ctx context.Context, user *model.User, amountCents int64, wType model.WithdrawalType, wallet string) (*model.Withdrawal, error) {
			return nil, repository.ErrInsufficientBalance
		},
	}

	srv, auth := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/user/withdrawals", auth, map[string]any{
		"amount": 100.0,
		"wallet": "TWallet",
	})

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusPaymentRequired)
	}
}
