// Package notify описывает уведомления сервиса и их доставку.
// Ядро порождает типизированные намерения, диспетчер доставляет их
// по принципу fire-and-forget: ошибки логируются и не всплывают.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"

	"github.com/smirnovmax/artstore-system/internal/metrics"
)

// Notification — намерение отправить пользователю текстовое сообщение.
// ChatID — внешний идентификатор получателя на платформе.
type Notification struct {
	ChatID int64
	Text   string
}

// Sender доставляет одно сообщение получателю.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// TelegramSender доставляет уведомления через Telegram Bot API.
type TelegramSender struct {
	api *tgbotapi.BotAPI
}

// NewTelegramSender создаёт отправителя с указанным токеном бота.
func NewTelegramSender(token string) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init bot api: %w", err)
	}
	return &TelegramSender{api: api}, nil
}

// Send отправляет сообщение в чат получателя.
func (s *TelegramSender) Send(_ context.Context, n Notification) error {
	msg := tgbotapi.NewMessage(n.ChatID, n.Text)
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Dispatcher доставляет уведомления поверх Sender. Ошибки доставки
// логируются, учитываются в метриках и никогда не возвращаются
// вызывающему запросу.
type Dispatcher struct {
	sender  Sender
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewDispatcher создаёт диспетчер уведомлений. sender может быть nil,
// тогда уведомления молча отбрасываются.
func NewDispatcher(sender Sender, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		logger:  logger,
		metrics: m,
	}
}

// Dispatch доставляет уведомление получателю. Никогда не возвращает
// ошибку: сбой канала не должен ронять бизнес-операцию.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	if d == nil || d.sender == nil || n.ChatID == 0 {
		return
	}

	if err := d.sender.Send(ctx, n); err != nil {
		if d.metrics != nil {
			d.metrics.NotifyFailures.Inc()
		}
		d.logger.Warn("notification delivery failed",
			zap.Int64("chatID", n.ChatID),
			zap.Error(err),
		)
	}
}
