// Package eventhandler содержит обработчики доменных событий.
// Обработчики - "реактивная" часть системы: они реагируют на изменения
// и запускают побочные эффекты, не блокируя движок подбора.
package eventhandler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/notification"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/pkg/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MATCH MADE HANDLER
// Превращает событие match_made в два уведомления - по одному на каждого
// участника пары - и передаёт их в канал доставки.
//
// Доставка не критична: ошибки пишутся в журнал и метрики, но не
// возвращаются в шину, поэтому движок никогда не ждёт доставку.
// ═══════════════════════════════════════════════════════════════════════════

// OnMatchMadeHandler обрабатывает событие взаимной симпатии.
type OnMatchMadeHandler struct {
	notifier notification.Notifier
	newID    func() string
	metrics  *metrics.Manager
	logger   zerolog.Logger
	config   MatchMadeConfig
}

// MatchMadeConfig содержит конфигурацию обработчика.
type MatchMadeConfig struct {
	// DeliveryTimeout - ограничение на доставку одного уведомления.
	DeliveryTimeout time.Duration
}

// DefaultMatchMadeConfig возвращает конфигурацию по умолчанию.
func DefaultMatchMadeConfig() MatchMadeConfig {
	return MatchMadeConfig{
		DeliveryTimeout: 5 * time.Second,
	}
}

// NewOnMatchMadeHandler создаёт новый обработчик.
func NewOnMatchMadeHandler(
	notifier notification.Notifier,
	newID func() string,
	m *metrics.Manager,
	logger zerolog.Logger,
	config MatchMadeConfig,
) *OnMatchMadeHandler {
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = DefaultMatchMadeConfig().DeliveryTimeout
	}
	return &OnMatchMadeHandler{
		notifier: notifier,
		newID:    newID,
		metrics:  m,
		logger:   logger.With().Str("handler", "on_match_made").Logger(),
		config:   config,
	}
}

// Handle обрабатывает событие. Реализует shared.EventHandler.
//
// События, пришедшие от других экземпляров через Redis, не являются
// shared.MatchMadeEvent и пропускаются: уведомления уже отправил
// экземпляр, на котором произошла симпатия.
func (h *OnMatchMadeHandler) Handle(event shared.Event) error {
	matchEvent, ok := event.(shared.MatchMadeEvent)
	if !ok {
		h.logger.Debug().
			Str("event_type", string(event.EventType())).
			Msg("skipping non-local match event")
		return nil
	}

	log := h.logger.With().
		Str("pair_key", matchEvent.PairKey).
		Str("program", matchEvent.Program).
		Str("correlation_id", matchEvent.CorrelationID).
		Logger()

	log.Info().Int("match_percentage", matchEvent.MatchPercentage).Msg("processing match made event")

	notifications, err := notification.NewMatchNotifications(notification.MatchParams{
		PairKey:         matchEvent.PairKey,
		ParticipantA:    participant.ParticipantID(matchEvent.ParticipantA),
		ParticipantB:    participant.ParticipantID(matchEvent.ParticipantB),
		Program:         participant.Program(matchEvent.Program),
		MatchPercentage: matchEvent.MatchPercentage,
		Report:          matchEvent.Report,
		CorrelationID:   matchEvent.CorrelationID,
	}, h.newID)
	if err != nil {
		log.Error().Err(err).Msg("failed to build match notifications")
		return nil
	}

	var failed []error
	for _, n := range notifications {
		if err := h.deliver(n); err != nil {
			failed = append(failed, err)
			log.Warn().Err(err).Str("recipient", n.Recipient.String()).Msg("failed to deliver match notification")
		}
	}

	if len(failed) > 0 {
		log.Warn().Int("failed", len(failed)).Msg("match event processed with delivery failures")
		return nil
	}

	log.Debug().Msg("match event processed")
	return nil
}

func (h *OnMatchMadeHandler) deliver(n *notification.MatchNotification) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.DeliveryTimeout)
	defer cancel()

	result, err := h.notifier.Send(ctx, n)
	if err == nil && !result.Success {
		err = result.Error
		if err == nil {
			err = notification.ErrDeliveryFailed
		}
	}
	h.metrics.RecordNotification(h.notifier.Channel().String(), err == nil)
	if err != nil && !errors.Is(err, notification.ErrDeliveryFailed) {
		return errors.Join(notification.ErrDeliveryFailed, err)
	}
	return err
}
