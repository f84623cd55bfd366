package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/notification"
)

// IDGeneratorImpl generates notification IDs.
type IDGeneratorImpl struct{}

func NewIDGenerator() *IDGeneratorImpl {
	return &IDGeneratorImpl{}
}

func (g *IDGeneratorImpl) GenerateID() string {
	return uuid.New().String()
}

// LogNotifier implements notification.Notifier by writing to the log.
// It is the delivery channel when Redis is disabled.
type LogNotifier struct {
	logger zerolog.Logger
}

var _ notification.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger.With().Str("component", "match_notifier").Logger(),
	}
}

func (n *LogNotifier) Send(ctx context.Context, msg *notification.MatchNotification) (notification.DeliveryResult, error) {
	n.logger.Info().
		Str("notification_id", msg.ID.String()).
		Str("recipient", msg.Recipient.String()).
		Str("counterpart", msg.Counterpart.String()).
		Str("pair_key", msg.PairKey).
		Str("program", msg.Program.String()).
		Int("match_percentage", msg.MatchPercentage).
		Msg("match notification")
	return notification.NewSuccessResult(notification.ChannelTypeLog, 1), nil
}

func (n *LogNotifier) Channel() notification.ChannelType {
	return notification.ChannelTypeLog
}
