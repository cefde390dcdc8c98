// Package reward содержит чистые функции расчёта вознаграждений:
// кешбэк, уровень лояльности и скидка уровня.
package reward

import "github.com/smirnovmax/artstore-system/internal/model"

const (
	// CashbackPercent — процент кешбэка от подтверждённой оплаты.
	CashbackPercent = 5
	// ReferralCommissionPercent — комиссия пригласившему от суммы
	// первого заказа приглашённого (до скидок).
	ReferralCommissionPercent = 25
	// ReviewBonusCents — фиксированный бонус за отзыв.
	ReviewBonusCents int64 = 200
)

// CashbackFor возвращает сумму кешбэка за оплату в копейках.
func CashbackFor(paidCents int64) int64 {
	return paidCents * CashbackPercent / 100
}

// CommissionFor возвращает реферальную комиссию от суммы заказа
// до применения скидок.
func CommissionFor(subtotalCents int64) int64 {
	return subtotalCents * ReferralCommissionPercent / 100
}

// LevelFor возвращает уровень лояльности по накопленной сумме трат.
// Функция монотонна: траты только растут, понижение уровня невозможно.
func LevelFor(totalSpentCents int64) model.Level {
	switch {
	case totalSpentCents >= 10000*100:
		return model.LevelPlatinum
	case totalSpentCents >= 1000*100:
		return model.LevelGold
	case totalSpentCents >= 500*100:
		return model.LevelSilver
	case totalSpentCents >= 100*100:
		return model.LevelBronze
	default:
		return model.LevelNone
	}
}

// DiscountPercent возвращает скидку уровня лояльности в процентах.
func DiscountPercent(level model.Level) int {
	switch level {
	case model.LevelBronze:
		return 5
	case model.LevelSilver:
		return 10
	case model.LevelGold:
		return 15
	case model.LevelPlatinum:
		return 20
	default:
		return 0
	}
}
