package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	am := NewAuthMiddleware("123456:test-token")

	signed := am.SignInitData(url.Values{
		"user":      []string{`{"id":42,"first_name":"Иван","last_name":"Петров","username":"ivan"}`},
		"auth_date": []string{"1700000000"},
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantID     int64
	}{
		{
			name:       "valid init data",
			header:     "tma " + signed,
			wantStatus: http.StatusOK,
			wantID:     42,
		},
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Bearer " + signed,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "tampered payload",
			header:     "tma " + signed + "x",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIdentity Identity
			handler := am.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotIdentity, _ = GetIdentityFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if gotIdentity.TelegramID != tt.wantID {
					t.Errorf("telegram id = %d, want %d", gotIdentity.TelegramID, tt.wantID)
				}
				if gotIdentity.Name != "Иван Петров" {
					t.Errorf("name = %q, want %q", gotIdentity.Name, "Иван Петров")
				}
			}
		})
	}
}

func TestAuthMiddlewareSignatureFromOtherBot(t *testing.T) {
	am := NewAuthMiddleware("123456:test-token")
	other := NewAuthMiddleware("999999:other-token")

	signed := other.SignInitData(url.Values{
		"user":      []string{`{"id":42,"first_name":"Иван"}`},
		"auth_date": []string{"1700000000"},
	})

	handler := am.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set("Authorization", "tma "+signed)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAdminAuth(t *testing.T) {
	handler := AdminAuth("secret-token")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer secret-token", http.StatusOK},
		{"wrong token", "Bearer wrong", http.StatusForbidden},
		{"no header", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/promo", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
