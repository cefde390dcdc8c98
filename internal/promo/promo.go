// Package promo содержит проверку промокодов и генерацию
// реферальных кодов и ссылок.
package promo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/smirnovmax/artstore-system/internal/model"
)

// ErrPromoInactive возвращается для отключённого промокода.
var (
	ErrPromoInactive = errors.New("promo code is inactive")
	// ErrPromoExpired возвращается для промокода с истёкшим сроком.
	ErrPromoExpired = errors.New("promo code expired")
	// ErrPromoExhausted возвращается, когда лимит применений исчерпан.
	ErrPromoExhausted = errors.New("promo code exhausted")
)

// NormalizeCode приводит код к каноническому виду.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate проверяет применимость промокода на момент now без
// изменения состояния. Само применение выполняется хранилищем
// одним условным инкрементом.
func Validate(p *model.PromoCode, now time.Time) error {
	if !p.Active {
		return ErrPromoInactive
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return ErrPromoExpired
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return ErrPromoExhausted
	}
	return nil
}

// NewReferralCode генерирует уникальный реферальный код пользователя.
func NewReferralCode() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// ReferralLink возвращает ссылку входа в бота с реферальным кодом.
func ReferralLink(botUsername, code string) (string, error) {
	if botUsername == "" {
		return "", errors.New("bot username is not configured")
	}
	if code == "" {
		return "", errors.New("empty referral code")
	}
	return fmt.Sprintf("https://t.me/%s?start=ref_%s", botUsername, code), nil
}

// ReferralQR возвращает PNG с QR-кодом реферальной ссылки.
func ReferralQR(botUsername, code string) ([]byte, error) {
	link, err := ReferralLink(botUsername, code)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
