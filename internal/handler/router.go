package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/smirnovmax/artstore-system/internal/middleware"
)

// NewRouter собирает маршрутизатор API витрины артстор.
func NewRouter(h *Handler, auth *middleware.AuthMiddleware, logger *zap.Logger, adminToken, allowedOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.GzipMiddleware)

	if allowedOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{allowedOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/user", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/profile", h.GetProfile)
		r.Get("/balance", h.GetBalance)
		r.Get("/cashback/history", h.GetCashbackHistory)
		r.Put("/wallet", h.SetWallet)

		r.Post("/orders", h.CreateOrder)
		r.Get("/orders", h.GetOrders)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Post("/orders/{orderID}/review", h.SubmitReview)
		r.Get("/orders/{orderID}/invoice", h.GetInvoice)
		r.Post("/orders/{orderID}/tx", h.SubmitTxHash)
		r.Post("/orders/{orderID}/verify", h.VerifyPayment)

		r.Post("/referral/apply", h.ApplyReferralCode)
		r.Get("/referral/qr", h.GetReferralQR)
		r.Get("/referrals", h.GetReferrals)

		r.Post("/promo/validate", h.ValidatePromo)

		r.Post("/withdrawals", h.RequestWithdrawal)
		r.Get("/withdrawals", h.GetWithdrawals)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(adminToken))

		r.Get("/orders", h.AdminListOrders)
		r.Get("/orders/export", h.AdminExportOrders)
		r.Post("/orders/{orderID}/invoice", h.AdminIssueInvoice)
		r.Patch("/orders/{orderID}/status", h.AdminUpdateOrderStatus)

		r.Post("/invoices/{invoiceID}/confirm", h.AdminConfirmPayment)

		r.Post("/promo", h.AdminCreatePromo)

		r.Post("/withdrawals/{withdrawalID}/complete", h.AdminCompleteWithdrawal)
		r.Post("/withdrawals/{withdrawalID}/cancel", h.AdminCancelWithdrawal)

		r.Post("/referrals/pending", h.AdminSavePendingReferral)
		r.Post("/referrals/{referralID}/paid", h.AdminMarkReferralPaid)
	})

	return r
}
