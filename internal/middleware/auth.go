// Package middleware содержит HTTP middleware сервиса артстор.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

type contextKey string

const identityKey contextKey = "identity"

const authPrefix = "tma "

// Identity — проверенная личность вызывающего, извлечённая из
// подписанных платформой входных данных мини-приложения.
type Identity struct {
	TelegramID int64
	Name       string
	Username   string
}

// AuthMiddleware проверяет подпись init data мини-приложения Telegram.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт middleware аутентификации. Секрет подписи
// выводится из токена бота по схеме платформы.
func NewAuthMiddleware(botToken string) *AuthMiddleware {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))

	return &AuthMiddleware{
		secretKey: mac.Sum(nil),
	}
}

// Middleware проверяет заголовок Authorization и добавляет личность
// вызывающего в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, authPrefix) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		identity, ok := a.parseInitData(strings.TrimPrefix(header, authPrefix))
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type initDataUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// parseInitData проверяет подпись данных и извлекает пользователя.
func (a *AuthMiddleware) parseInitData(initData string) (Identity, bool) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return Identity{}, false
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return Identity{}, false
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	checkString := strings.Join(pairs, "\n")

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(gotHash)) {
		return Identity{}, false
	}

	var u initDataUser
	if err := json.Unmarshal([]byte(values.Get("user")), &u); err != nil {
		return Identity{}, false
	}
	if u.ID == 0 {
		return Identity{}, false
	}

	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}

	return Identity{
		TelegramID: u.ID,
		Name:       name,
		Username:   u.Username,
	}, true
}

// SignInitData подписывает init data секретом middleware. Используется
// в тестах и вспомогательных инструментах.
func (a *AuthMiddleware) SignInitData(values url.Values) string {
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(strings.Join(pairs, "\n")))
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))

	return values.Encode()
}

// GetIdentityFromContext извлекает личность вызывающего из контекста.
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
