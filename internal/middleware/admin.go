package middleware

import (
	"crypto/hmac"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// AdminAuth пропускает только запросы с валидным служебным токеном в
// заголовке Authorization.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if token == "" || !strings.HasPrefix(header, bearerPrefix) {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			got := strings.TrimPrefix(header, bearerPrefix)
			if !hmac.Equal([]byte(got), []byte(token)) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
