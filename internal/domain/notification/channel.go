package notification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL TYPE
// ══════════════════════════════════════════════════════════════════════════════

// ChannelType определяет тип канала доставки уведомлений.
type ChannelType string

const (
	// ChannelTypePubSub - публикация в канал Redis для воркеров доставки.
	ChannelTypePubSub ChannelType = "pubsub"

	// ChannelTypeLog - запись в журнал (Redis отключён).
	ChannelTypeLog ChannelType = "log"
)

// IsValid проверяет корректность типа канала.
func (ct ChannelType) IsValid() bool {
	switch ct {
	case ChannelTypePubSub, ChannelTypeLog:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа канала.
func (ct ChannelType) String() string {
	return string(ct)
}

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY RESULT
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryResult представляет результат доставки уведомления.
type DeliveryResult struct {
	// Success - успешно ли доставлено.
	Success bool

	// Channel - канал, через который было отправлено.
	Channel ChannelType

	// DeliveredAt - время доставки.
	DeliveredAt time.Time

	// Receivers - сколько подписчиков получили сообщение (для pub/sub).
	Receivers int64

	// Error - ошибка доставки (если Success = false).
	Error error
}

// NewSuccessResult создаёт результат успешной доставки.
func NewSuccessResult(channel ChannelType, receivers int64) DeliveryResult {
	return DeliveryResult{
		Success:     true,
		Channel:     channel,
		DeliveredAt: time.Now().UTC(),
		Receivers:   receivers,
	}
}

// NewFailureResult создаёт результат неудачной доставки.
func NewFailureResult(channel ChannelType, err error) DeliveryResult {
	return DeliveryResult{
		Success:     false,
		Channel:     channel,
		DeliveredAt: time.Now().UTC(),
		Error:       err,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFIER PORT
// ══════════════════════════════════════════════════════════════════════════════

// Notifier - порт доставки уведомлений о взаимной симпатии.
// Реализации находятся в infrastructure.
type Notifier interface {
	// Send доставляет уведомление одному получателю.
	Send(ctx context.Context, n *MatchNotification) (DeliveryResult, error)

	// Channel возвращает тип канала.
	Channel() ChannelType
}
