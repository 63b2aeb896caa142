package consumer

import (
	"context"
	"encoding/json"

	"github.com/Eursukkul/mentorship-slots/internal/models"
	"github.com/Eursukkul/mentorship-slots/internal/service"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// PaymentConfirmed is the message the payment service publishes once a
// booking has been paid.
type PaymentConfirmed struct {
	BookingID  string `json:"booking_id"`
	PaymentRef string `json:"payment_ref"`
}

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, paymentRef string) (*models.Booking, error)
}

type PaymentConsumer struct {
	bookings PaymentConfirmer
	log      *zap.Logger
}

func NewPaymentConsumer(bookings PaymentConfirmer, log *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{bookings: bookings, log: log}
}

// Start handles deliveries until msgs is closed or ctx is done.
func (pc *PaymentConsumer) Start(ctx context.Context, msgs <-chan amqp.Delivery) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				pc.log.Info("payment consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					pc.log.Info("payment channel closed, stopping consumer")
					return
				}
				pc.handleMessage(ctx, msg)
			}
		}
	}()
}

func (pc *PaymentConsumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var payload PaymentConfirmed
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		pc.log.Warn("dropping malformed payment message", zap.Error(err))
		msg.Nack(false, false)
		return
	}

	bookingID, err := uuid.Parse(payload.BookingID)
	if err != nil || payload.PaymentRef == "" {
		pc.log.Warn("dropping payment message without booking id or reference",
			zap.String("booking_id", payload.BookingID),
		)
		msg.Nack(false, false)
		return
	}

	_, err = pc.bookings.ConfirmPayment(ctx, bookingID, payload.PaymentRef)
	switch {
	case err == nil:
		msg.Ack(false)
	case service.IsBusinessError(err):
		// redelivery cannot change the outcome
		pc.log.Warn("payment confirmation rejected",
			zap.String("booking_id", payload.BookingID),
			zap.Error(err),
		)
		msg.Ack(false)
	default:
		pc.log.Error("payment confirmation failed, requeueing",
			zap.String("booking_id", payload.BookingID),
			zap.Error(err),
		)
		msg.Nack(false, true)
	}
}
