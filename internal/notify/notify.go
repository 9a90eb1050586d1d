package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/zeromonos/internal/kafka"
	"github.com/rs/zerolog"
	kafkaGo "github.com/segmentio/kafka-go"
)

// Sender delivers booking notifications to the municipal service desk.
// Delivery is a structured log entry; a mail or SMS gateway would replace Send.
type Sender struct {
	logger zerolog.Logger
}

func NewSender(logger zerolog.Logger) *Sender {
	return &Sender{logger: logger.With().Str("component", "notify").Logger()}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Token == "" {
		return errors.New("notification without booking token")
	}

	s.logger.Info().
		Str("event", event.Type).
		Str("token", event.Token).
		Str("municipality", event.Municipality).
		Str("requested_date", event.RequestedDate).
		Str("time_slot", event.TimeSlot).
		Str("status", event.Status).
		Msg(Subject(event))
	return nil
}

// HandleMessage is the consumer callback. Malformed messages are skipped so
// one bad payload does not stall the partition; only delivery failures are returned.
func (s *Sender) HandleMessage(ctx context.Context, msg kafkaGo.Message) error {
	event, err := kafka.DecodeBookingEvent(msg.Value)
	if err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("skipping undecodable booking event")
		return nil
	}
	if event.Token == "" {
		s.logger.Warn().Str("event", event.Type).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("skipping booking event without token")
		return nil
	}
	return s.Send(ctx, event)
}

// Subject is the one-line summary shown to the desk operator.
func Subject(event kafka.BookingEvent) string {
	switch event.Type {
	case kafka.EventBookingCreated:
		return fmt.Sprintf("new request in %s for %s %s", event.Municipality, event.RequestedDate, event.TimeSlot)
	case kafka.EventBookingCancelled:
		return fmt.Sprintf("request %s in %s was cancelled by the citizen", event.Token, event.Municipality)
	default:
		return fmt.Sprintf("request %s in %s is now %s", event.Token, event.Municipality, event.Status)
	}
}
