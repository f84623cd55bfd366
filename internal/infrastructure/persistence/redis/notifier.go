package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/notification"
)

// Notifier delivers match notifications to a Redis pub/sub channel.
// Delivery workers subscribe to the channel and fan out to devices.
type Notifier struct {
	cache   *Cache
	channel string
	logger  zerolog.Logger
}

var _ notification.Notifier = (*Notifier)(nil)

// NewNotifier creates a notifier publishing to channel.
// An empty channel uses NotificationChannel.
func NewNotifier(cache *Cache, channel string, logger zerolog.Logger) *Notifier {
	if channel == "" {
		channel = NotificationChannel
	}
	return &Notifier{
		cache:   cache,
		channel: channel,
		logger:  logger.With().Str("component", "match_notifier").Logger(),
	}
}

// Send publishes the notification and reports how many subscribers received it.
func (n *Notifier) Send(ctx context.Context, msg *notification.MatchNotification) (notification.DeliveryResult, error) {
	receivers, err := n.cache.Publish(ctx, n.channel, msg)
	if err != nil {
		if !errors.Is(err, ErrCacheSerialization) {
			err = fmt.Errorf("%w: %v", notification.ErrDeliveryFailed, err)
		}
		return notification.NewFailureResult(notification.ChannelTypePubSub, err), err
	}

	if receivers == 0 {
		n.logger.Debug().
			Str("recipient", string(msg.Recipient)).
			Str("pair_key", msg.PairKey).
			Msg("no delivery workers subscribed")
	}
	return notification.NewSuccessResult(notification.ChannelTypePubSub, receivers), nil
}

// Channel returns the delivery channel type.
func (n *Notifier) Channel() notification.ChannelType {
	return notification.ChannelTypePubSub
}
