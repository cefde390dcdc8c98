package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/smirnovmax/artstore-system/internal/chain"
	"github.com/smirnovmax/artstore-system/internal/model"
	"github.com/smirnovmax/artstore-system/internal/notify"
	"github.com/smirnovmax/artstore-system/internal/repository"
)

type stubRepo struct {
	getUserFn        func(ctx context.Context, id int64) (*model.User, error)
	createOrderFn    func(ctx context.Context, o *model.Order, promoID *int64) error
	getOrderFn       func(ctx context.Context, id string) (*model.Order, error)
	updateStatusFn   func(ctx context.Context, orderID string, status model.OrderStatus) error
	getPromoFn       func(ctx context.Context, code string) (*model.PromoCode, error)
	createInvoiceFn  func(ctx context.Context, inv *model.Invoice, cashbackEarnedCents int64) (*model.Invoice, error)
	getInvoiceFn     func(ctx context.Context, id int64) (*model.Invoice, error)
	confirmFn        func(ctx context.Context, p repository.ConfirmPaymentParams) (*repository.ConfirmPaymentResult, error)
	createWithdrawFn func(ctx context.Context, w *model.Withdrawal) error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if s.getUserFn != nil {
		return s.getUserFn(ctx, id)
	}
	return &model.User{ID: id, TelegramID: 100 + id, Level: model.LevelNone}, nil
}

func (s *stubRepo) GetOrCreateUser(ctx context.Context, telegramID int64, name, username string) (*model.User, error) {
	return &model.User{ID: 1, TelegramID: telegramID, Name: name, Username: username}, nil
}

func (s *stubRepo) SavePendingReferral(ctx context.Context, telegramID int64, code string) error {
	return nil
}

func (s *stubRepo) LinkReferrer(ctx context.Context, userID int64, code string) (*model.User, error) {
	return nil, repository.ErrReferralCodeNotFound
}

func (s *stubRepo) SetWalletAddress(ctx context.Context, userID int64, address string) error {
	return nil
}

func (s *stubRepo) GetCashbackHistory(ctx context.Context, userID int64, limit int) ([]model.CashbackEntry, error) {
	return nil, nil
}

func (s *stubRepo) CreateOrder(ctx context.Context, o *model.Order, promoID *int64) error {
	return s.createOrderFn(ctx, o, promoID)
}

func (s *stubRepo) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.getOrderFn(ctx, id)
}

func (s *stubRepo) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) ListOrders(ctx context.Context) ([]model.Order, error) { return nil, nil }

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, orderID, status)
	}
	return nil
}

func (s *stubRepo) MarkOrderReviewed(ctx context.Context, orderID string, userID, bonusCents int64) error {
	return nil
}

func (s *stubRepo) CreateInvoice(ctx context.Context, inv *model.Invoice, cashbackEarnedCents int64) (*model.Invoice, error) {
	if s.createInvoiceFn != nil {
		return s.createInvoiceFn(ctx, inv, cashbackEarnedCents)
	}
	inv.ID = 1
	return inv, nil
}

func (s *stubRepo) GetInvoice(ctx context.Context, id int64) (*model.Invoice, error) {
	return s.getInvoiceFn(ctx, id)
}

func (s *stubRepo) GetInvoiceByOrder(ctx context.Context, orderID string) (*model.Invoice, error) {
	return nil, repository.ErrInvoiceNotFound
}

func (s *stubRepo) SetInvoiceTxHash(ctx context.Context, invoiceID int64, txHash string) error {
	return nil
}

func (s *stubRepo) ConfirmPayment(ctx context.Context, p repository.ConfirmPaymentParams) (*repository.ConfirmPaymentResult, error) {
	return s.confirmFn(ctx, p)
}

func (s *stubRepo) CreatePromo(ctx context.Context, p *model.PromoCode) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetPromoByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	if s.getPromoFn != nil {
		return s.getPromoFn(ctx, code)
	}
	return nil, repository.ErrPromoNotFound
}

func (s *stubRepo) GetReferralsByReferrer(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	return nil, nil
}

func (s *stubRepo) MarkReferralPaid(ctx context.Context, referralID int64) error { return nil }

func (s *stubRepo) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	if s.createWithdrawFn != nil {
		return s.createWithdrawFn(ctx, w)
	}
	return nil
}

func (s *stubRepo) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	return nil, nil
}

func (s *stubRepo) CompleteWithdrawal(ctx context.Context, id, txHash string) (*model.Withdrawal, error) {
	return nil, repository.ErrWithdrawalNotFound
}

func (s *stubRepo) CancelWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	return nil, repository.ErrWithdrawalNotFound
}

type stubChain struct {
	tx  *chain.Transaction
	err error
}

func (s *stubChain) GetTransaction(ctx context.Context, hash string) (*chain.Transaction, error) {
	return s.tx, s.err
}

func newTestService(repo Repository, chainClient ChainClient) *Service {
	return NewService(repo, chainClient, nil, nil, "TStoreWallet", 999)
}

func TestCreateOrderAppliesDiscounts(t *testing.T) {
	maxUses := 10
	var created *model.Order
	var createdPromoID *int64

	repo := &stubRepo{
		createOrderFn: func(ctx context.Context, o *model.Order, promoID *int64) error {
			created = o
			createdPromoID = promoID
			return nil
		},
		getPromoFn: func(ctx context.Context, code string) (*model.PromoCode, error) {
			if code != "SPRING10" {
				t.Errorf("promo code = %q, want normalized SPRING10", code)
			}
			return &model.PromoCode{ID: 7, Code: code, DiscountPercent: 10, MaxUses: &maxUses, Active: true}, nil
		},
	}

	svc := newTestService(repo, nil)
	user := &model.User{ID: 1, TelegramID: 101, Level: model.LevelBronze}

	order, err := svc.CreateOrder(context.Background(), user, CreateOrderInput{
		Items: []model.OrderItem{
			{Title: "Холст 40x60", Quantity: 2, Price: 100_00},
		},
		PromoCode:         "spring10 ",
		CashbackUsedCents: 50_00,
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	// бронза 5% + промокод 10% от 200.00
	if order.SubtotalCents != 200_00 {
		t.Errorf("subtotal = %d, want %d", order.SubtotalCents, 200_00)
	}
	if order.DiscountCents != 30_00 {
		t.Errorf("discount = %d, want %d", order.DiscountCents, 30_00)
	}
	if order.TotalCents != 170_00 {
		t.Errorf("total = %d, want %d", order.TotalCents, 170_00)
	}
	// 5% от фактически оплачиваемой суммы: 170.00 − 50.00 кешбэка
	if order.CashbackEarnedCents != 6_00 {
		t.Errorf("cashback earned = %d, want %d", order.CashbackEarnedCents, 6_00)
	}
	if order.Status != model.OrderStatusPending {
		t.Errorf("status = %q, want pending", order.Status)
	}

	if created == nil {
		t.Fatal("order was not passed to repository")
	}
	if createdPromoID == nil || *createdPromoID != 7 {
		t.Errorf("promo id = %v, want 7", createdPromoID)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	repo := &stubRepo{
		createOrderFn: func(ctx context.Context, o *model.Order, promoID *int64) error { return nil },
	}
	svc := newTestService(repo, nil)
	user := &model.User{ID: 1, Level: model.LevelNone}

	_, err := svc.CreateOrder(context.Background(), user, CreateOrderInput{})
	if !errors.Is(err, ErrEmptyOrder) {
		t.Errorf("empty order: error = %v, want ErrEmptyOrder", err)
	}

	_, err = svc.CreateOrder(context.Background(), user, CreateOrderInput{
		Items:             []model.OrderItem{{Title: "Холст", Quantity: 1, Price: 100_00}},
		CashbackUsedCents: 150_00,
	})
	if !errors.Is(err, ErrCashbackTooHigh) {
		t.Errorf("excess cashback: error = %v, want ErrCashbackTooHigh", err)
	}
}

func TestCreateOrderCartAwaitsManager(t *testing.T) {
	repo := &stubRepo{
		createOrderFn: func(ctx context.Context, o *model.Order, promoID *int64) error { return nil },
	}
	svc := newTestService(repo, nil)

	order, err := svc.CreateOrder(context.Background(), &model.User{ID: 1, Level: model.LevelNone}, CreateOrderInput{
		Items: []model.OrderItem{{Title: "Холст", Quantity: 1, Price: 100_00}},
		Cart:  true,
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.Status != model.OrderStatusAwaitingManager {
		t.Errorf("status = %q, want awaiting_manager", order.Status)
	}
}

func TestConfirmPaymentPassesRewards(t *testing.T) {
	var gotParams repository.ConfirmPaymentParams

	repo := &stubRepo{
		getInvoiceFn: func(ctx context.Context, id int64) (*model.Invoice, error) {
			return &model.Invoice{ID: id, OrderID: "o-1", UserID: 1, FinalAmountCents: 170_00, TxHash: "stored-hash"}, nil
		},
		getOrderFn: func(ctx context.Context, id string) (*model.Order, error) {
			return &model.Order{ID: id, UserID: 1, SubtotalCents: 200_00}, nil
		},
		confirmFn: func(ctx context.Context, p repository.ConfirmPaymentParams) (*repository.ConfirmPaymentResult, error) {
			gotParams = p
			return &repository.ConfirmPaymentResult{
				OrderID:            "o-1",
				UserID:             1,
				FinalAmountCents:   170_00,
				NewTotalSpentCents: 170_00,
			}, nil
		},
	}

	svc := newTestService(repo, nil)

	_, err := svc.ConfirmPayment(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	// кешбэк 5% от оплаченного, комиссия 25% от суммы до скидок
	if gotParams.CashbackCents != 8_50 {
		t.Errorf("cashback = %d, want %d", gotParams.CashbackCents, 8_50)
	}
	if gotParams.CommissionCents != 50_00 {
		t.Errorf("commission = %d, want %d", gotParams.CommissionCents, 50_00)
	}
	if gotParams.TxHash != "stored-hash" {
		t.Errorf("tx hash = %q, want stored-hash", gotParams.TxHash)
	}
}

func TestConfirmPaymentRepeat(t *testing.T) {
	repo := &stubRepo{
		getInvoiceFn: func(ctx context.Context, id int64) (*model.Invoice, error) {
			return &model.Invoice{ID: id, OrderID: "o-1", UserID: 1, Status: model.InvoiceStatusPaid}, nil
		},
		getOrderFn: func(ctx context.Context, id string) (*model.Order, error) {
			return &model.Order{ID: id, UserID: 1}, nil
		},
		confirmFn: func(ctx context.Context, p repository.ConfirmPaymentParams) (*repository.ConfirmPaymentResult, error) {
			return nil, repository.ErrInvoiceAlreadyPaid
		},
	}

	svc := newTestService(repo, nil)

	_, err := svc.ConfirmPayment(context.Background(), 5, "")
	if !errors.Is(err, repository.ErrInvoiceAlreadyPaid) {
		t.Errorf("error = %v, want ErrInvoiceAlreadyPaid", err)
	}
}

func TestConfirmPaymentNotifiesPromotion(t *testing.T) {
	repo := &stubRepo{
		getInvoiceFn: func(ctx context.Context, id int64) (*model.Invoice, error) {
			return &model.Invoice{ID: id, OrderID: "o-1", UserID: 1, FinalAmountCents: 120_00}, nil
		},
		getOrderFn: func(ctx context.Context, id string) (*model.Order, error) {
			return &model.Order{ID: id, UserID: 1, SubtotalCents: 120_00}, nil
		},
		confirmFn: func(ctx context.Context, p repository.ConfirmPaymentParams) (*repository.ConfirmPaymentResult, error) {
			return &repository.ConfirmPaymentResult{
				OrderID:            "o-1",
				UserID:             1,
				FinalAmountCents:   120_00,
				NewTotalSpentCents: 120_00,
				NewLevel:           model.LevelBronze,
				LevelChanged:       true,
			}, nil
		},
	}

	sender := &captureSender{}
	dispatcher := notify.NewDispatcher(sender, zap.NewNop(), nil)
	svc := NewService(repo, nil, dispatcher, nil, "TStoreWallet", 999)

	if _, err := svc.ConfirmPayment(context.Background(), 5, ""); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	want := notify.LevelPromoted(model.LevelBronze, 5)
	found := false
	for _, text := range sender.texts {
		if text == want {
			found = true
		}
	}
	if !found {
		t.Errorf("promotion notification not sent, got %q", sender.texts)
	}
}

// Повышение уровня фиксируется той же транзакцией, что и оплата:
// сбой последующего чтения пользователя стоит только уведомлений.
func TestConfirmPaymentSurvivesUserLookupFailure(t *testing.T) {
	repo := &stubRepo{
		getUserFn: func(ctx context.Context, id int64) (*model.User, error) {
			return nil, repository.ErrUserNotFound
		},
		getInvoiceFn: func(ctx context.Context, id int64) (*model.Invoice, error) {
			return &model.Invoice{ID: id, OrderID: "o-1", UserID: 1, FinalAmountCents: 120_00}, nil
		},
		getOrderFn: func(ctx context.Context, id string) (*model.Order, error) {
			return &model.Order{ID: id, UserID: 1, SubtotalCents: 120_00}, nil
		},
		confirmFn: func(ctx context.Context, p repository.ConfirmPaymentParams) (*repository.ConfirmPaymentResult, error) {
			return &repository.ConfirmPaymentResult{
				OrderID:            "o-1",
				UserID:             1,
				FinalAmountCents:   120_00,
				NewTotalSpentCents: 120_00,
				NewLevel:           model.LevelBronze,
				LevelChanged:       true,
			}, nil
		},
	}

	svc := newTestService(repo, nil)

	res, err := svc.ConfirmPayment(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if res == nil || !res.LevelChanged || res.NewLevel != model.LevelBronze {
		t.Errorf("result = %+v, want persisted bronze promotion", res)
	}
}

type captureSender struct {
	texts []string
}

func (s *captureSender) Send(ctx context.Context, n notify.Notification) error {
	s.texts = append(s.texts, n.Text)
	return nil
}

func TestVerifyTransactionNotFound(t *testing.T) {
	svc := newTestService(&stubRepo{}, &stubChain{err: chain.ErrTxNotFound})

	res, err := svc.VerifyTransaction(context.Background(), "deadbeef", 100_00, "TWallet")
	if err != nil {
		t.Fatalf("VerifyTransaction() error = %v", err)
	}
	if res.Verified {
		t.Error("verified = true, want false")
	}
	if res.Reason != chain.ReasonNotFound {
		t.Errorf("reason = %q, want %q", res.Reason, chain.ReasonNotFound)
	}
}

func TestVerifyTransactionIndexerDown(t *testing.T) {
	svc := newTestService(&stubRepo{}, &stubChain{err: errors.New("connection refused")})

	_, err := svc.VerifyTransaction(context.Background(), "deadbeef", 100_00, "TWallet")
	if err == nil {
		t.Fatal("expected error when indexer is unavailable")
	}
}

func TestRequestWithdrawal(t *testing.T) {
	var created *model.Withdrawal
	repo := &stubRepo{
		createWithdrawFn: func(ctx context.Context, w *model.Withdrawal) error {
			created = w
			return nil
		},
	}

	svc := newTestService(repo, nil)
	user := &model.User{ID: 1, WalletAddress: "TUserWallet"}

	_, err := svc.RequestWithdrawal(context.Background(), user, 0, model.WithdrawalTypeCashback, "")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: error = %v, want ErrInvalidAmount", err)
	}

	_, err = svc.RequestWithdrawal(context.Background(), &model.User{ID: 2}, 100_00, model.WithdrawalTypeCashback, "")
	if !errors.Is(err, ErrNoWallet) {
		t.Errorf("no wallet: error = %v, want ErrNoWallet", err)
	}

	w, err := svc.RequestWithdrawal(context.Background(), user, 100_00, model.WithdrawalTypeReferral, "")
	if err != nil {
		t.Fatalf("RequestWithdrawal() error = %v", err)
	}
	if w.Wallet != "TUserWallet" {
		t.Errorf("wallet = %q, want user wallet by default", w.Wallet)
	}
	if created == nil || created.Status != model.WithdrawalStatusPending {
		t.Errorf("created withdrawal = %+v, want pending", created)
	}
}

func TestIssueInvoice(t *testing.T) {
	var gotEarned int64
	repo := &stubRepo{
		getOrderFn: func(ctx context.Context, id string) (*model.Order, error) {
			return &model.Order{
				ID:                id,
				UserID:            1,
				SubtotalCents:     200_00,
				TotalCents:        170_00,
				CashbackUsedCents: 20_00,
			}, nil
		},
		createInvoiceFn: func(ctx context.Context, inv *model.Invoice, cashbackEarnedCents int64) (*model.Invoice, error) {
			gotEarned = cashbackEarnedCents
			inv.ID = 1
			return inv, nil
		},
	}

	svc := newTestService(repo, nil)

	inv, err := svc.IssueInvoice(context.Background(), "o-1", 0, "")
	if err != nil {
		t.Fatalf("IssueInvoice() error = %v", err)
	}

	if inv.FinalAmountCents != 150_00 {
		t.Errorf("final amount = %d, want %d", inv.FinalAmountCents, 150_00)
	}
	if inv.AmountCents != 200_00 {
		t.Errorf("amount = %d, want subtotal %d", inv.AmountCents, 200_00)
	}
	if inv.PaymentAddress != "TStoreWallet" {
		t.Errorf("payment address = %q, want snapshot of store wallet", inv.PaymentAddress)
	}
	// кешбэк пересчитан от суммы к оплате
	if gotEarned != 7_50 {
		t.Errorf("cashback earned = %d, want %d", gotEarned, 7_50)
	}

	inv, err = svc.IssueInvoice(context.Background(), "o-1", 99_00, "")
	if err != nil {
		t.Fatalf("IssueInvoice() override error = %v", err)
	}
	if inv.FinalAmountCents != 99_00 {
		t.Errorf("override final amount = %d, want %d", inv.FinalAmountCents, 99_00)
	}
	if gotEarned != 4_95 {
		t.Errorf("override cashback earned = %d, want %d", gotEarned, 4_95)
	}

	// ручная сумма выше исходной стоимости заказа не проходит
	_, err = svc.IssueInvoice(context.Background(), "o-1", 250_00, "")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("override above subtotal: error = %v, want ErrInvalidAmount", err)
	}
}

func TestUpdateOrderStatusFinalized(t *testing.T) {
	var updated bool
	repo := &stubRepo{
		getOrderFn: func(ctx context.Context, id string) (*model.Order, error) {
			return &model.Order{ID: id, UserID: 1, Status: model.OrderStatusCompleted}, nil
		},
		updateStatusFn: func(ctx context.Context, orderID string, status model.OrderStatus) error {
			updated = true
			return nil
		},
	}

	svc := newTestService(repo, nil)

	err := svc.UpdateOrderStatus(context.Background(), "o-1", model.OrderStatusWorking)
	if !errors.Is(err, ErrOrderFinalized) {
		t.Errorf("error = %v, want ErrOrderFinalized", err)
	}
	if updated {
		t.Error("status of finalized order was updated")
	}
}
