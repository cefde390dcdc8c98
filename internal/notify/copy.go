package notify

import (
	"fmt"

	"github.com/smirnovmax/artstore-system/internal/model"
)

// Тексты уведомлений. Суммы приходят уже в валютных единицах и
// форматируются с двумя знаками только здесь, при отображении.

// OrderCreated — уведомление пользователю о принятом заказе.
func OrderCreated(orderID string, total float64) string {
	return fmt.Sprintf("Заказ %s принят. К оплате: %.2f USDT. Мы свяжемся с вами после выставления счёта.", orderID, total)
}

// OrderCreatedAdmin — уведомление администратору о новом заказе.
func OrderCreatedAdmin(orderID, username string, total float64) string {
	return fmt.Sprintf("Новый заказ %s от @%s на %.2f USDT.", orderID, username, total)
}

// InvoiceIssued — уведомление пользователю о выставленном счёте.
func InvoiceIssued(orderID string, amount float64, address string) string {
	return fmt.Sprintf("По заказу %s выставлен счёт на %.2f USDT.\nАдрес для оплаты: %s\nПосле перевода отправьте хеш транзакции в приложении.", orderID, amount, address)
}

// PaymentConfirmed — уведомление пользователю о подтверждённой оплате.
func PaymentConfirmed(orderID string, amount, cashback float64) string {
	return fmt.Sprintf("Оплата по заказу %s подтверждена (%.2f USDT). Заказ взят в работу. Начислен кешбэк: %.2f.", orderID, amount, cashback)
}

// PaymentConfirmedAdmin — уведомление администратору об оплате.
func PaymentConfirmedAdmin(orderID, username string, amount float64) string {
	return fmt.Sprintf("Заказ %s оплачен (@%s, %.2f USDT). Статус: в работе.", orderID, username, amount)
}

// LevelPromoted — уведомление о повышении уровня лояльности.
func LevelPromoted(level model.Level, discountPercent int) string {
	names := map[model.Level]string{
		model.LevelBronze:   "Бронзовый",
		model.LevelSilver:   "Серебряный",
		model.LevelGold:     "Золотой",
		model.LevelPlatinum: "Платиновый",
	}
	return fmt.Sprintf("Поздравляем! Ваш уровень лояльности повышен: %s. Скидка на следующие заказы: %d%%.", names[level], discountPercent)
}

// ReferralCommission — уведомление пригласившему о начисленной комиссии.
func ReferralCommission(referredName string, amount float64, hasWallet bool) string {
	msg := fmt.Sprintf("Ваш реферал %s оплатил первый заказ. Начислена комиссия: %.2f USDT.", referredName, amount)
	if !hasWallet {
		msg += " Укажите кошелёк для выплат в профиле, чтобы получить её."
	}
	return msg
}

// ReviewBonus — уведомление о бонусе за отзыв.
func ReviewBonus(amount float64) string {
	return fmt.Sprintf("Спасибо за отзыв! На ваш баланс начислено %.2f.", amount)
}

// statusCopy — шаблоны уведомлений для известных статусов заказа.
var statusCopy = map[model.OrderStatus]string{
	model.OrderStatusPending:   "Заказ %s ожидает обработки.",
	model.OrderStatusWorking:   "Заказ %s взят в работу.",
	model.OrderStatusCompleted: "Заказ %s выполнен. Спасибо, что выбрали нас!",
	model.OrderStatusCancelled: "Заказ %s отменён. Если это ошибка, напишите в поддержку.",
}

// StatusChanged возвращает текст уведомления о смене статуса.
// Для неизвестного статуса используется общий шаблон.
func StatusChanged(orderID string, status model.OrderStatus) string {
	if tmpl, ok := statusCopy[status]; ok {
		return fmt.Sprintf(tmpl, orderID)
	}
	return fmt.Sprintf("Статус заказа %s изменён: %s.", orderID, status)
}

// WithdrawalCompleted — уведомление о выполненной выплате.
func WithdrawalCompleted(amount float64, txHash string) string {
	msg := fmt.Sprintf("Выплата %.2f USDT выполнена.", amount)
	if txHash != "" {
		msg += " Транзакция: " + txHash
	}
	return msg
}

// WithdrawalCancelled — уведомление об отклонённой выплате.
func WithdrawalCancelled(amount float64, reason string) string {
	msg := fmt.Sprintf("Заявка на выплату %.2f USDT отклонена.", amount)
	if reason != "" {
		msg += " Причина: " + reason
	}
	return msg
}
