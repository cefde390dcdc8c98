package promo

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smirnovmax/artstore-system/internal/model"
)

func intPtr(v int) *int { return &v }

func TestValidate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name    string
		promo   model.PromoCode
		wantErr error
	}{
		{
			name:  "active unlimited",
			promo: model.PromoCode{Code: "SAVE10", DiscountPercent: 10, Active: true},
		},
		{
			name:    "inactive",
			promo:   model.PromoCode{Code: "OLD", Active: false},
			wantErr: ErrPromoInactive,
		},
		{
			name:    "expired",
			promo:   model.PromoCode{Code: "LATE", Active: true, ExpiresAt: &past},
			wantErr: ErrPromoExpired,
		},
		{
			name:  "not yet expired",
			promo: model.PromoCode{Code: "SOON", Active: true, ExpiresAt: &future},
		},
		{
			name:    "exhausted",
			promo:   model.PromoCode{Code: "FULL", Active: true, MaxUses: intPtr(1), CurrentUses: 1},
			wantErr: ErrPromoExhausted,
		},
		{
			name:  "one use left",
			promo: model.PromoCode{Code: "LAST", Active: true, MaxUses: intPtr(2), CurrentUses: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.promo, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  save10 "); got != "SAVE10" {
		t.Fatalf("NormalizeCode = %q, want SAVE10", got)
	}
}

func TestNewReferralCode(t *testing.T) {
	a := NewReferralCode()
	b := NewReferralCode()

	if len(a) != 8 {
		t.Fatalf("code length = %d, want 8", len(a))
	}
	if a == b {
		t.Fatalf("codes must be unique, got %s twice", a)
	}
	if a != strings.ToUpper(a) {
		t.Fatalf("code must be upper case, got %s", a)
	}
}

func TestReferralLink(t *testing.T) {
	link, err := ReferralLink("artstore_bot", "ABCD1234")
	if err != nil {
		t.Fatalf("ReferralLink error: %v", err)
	}
	if link != "https://t.me/artstore_bot?start=ref_ABCD1234" {
		t.Fatalf("unexpected link: %s", link)
	}

	if _, err := ReferralLink("", "ABCD1234"); err == nil {
		t.Fatalf("expected error for empty bot username")
	}
}

func TestReferralQR(t *testing.T) {
	png, err := ReferralQR("artstore_bot", "ABCD1234")
	if err != nil {
		t.Fatalf("ReferralQR error: %v", err)
	}
	if len(png) == 0 {
		t.Fatalf("empty qr payload")
	}
}
