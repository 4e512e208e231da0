package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vexbus/booking-backend/internal/database"
	"github.com/vexbus/booking-backend/internal/events"
	"github.com/vexbus/booking-backend/pkg/mailer"
)

// PaymentReconciler applies verified gateway callbacks to the ledger.
// The gateway may deliver the same callback many times and out of order;
// the conditional PENDING_PAYMENT -> PAID update makes every delivery
// after the first a no-op, which also gates the ticket email and the
// seats_booked broadcast to exactly one firing.
type PaymentReconciler struct {
	bookingRepo *database.BookingRepository
	gateway     PaymentGateway
	publisher   events.Publisher
	mailer      mailer.Mailer
	logger      *logrus.Logger
}

// NewPaymentReconciler creates a new payment reconciler
func NewPaymentReconciler(
	bookingRepo *database.BookingRepository,
	gateway PaymentGateway,
	publisher events.Publisher,
	m mailer.Mailer,
	logger *logrus.Logger,
) *PaymentReconciler {
	return &PaymentReconciler{
		bookingRepo: bookingRepo,
		gateway:     gateway,
		publisher:   publisher,
		mailer:      m,
		logger:      logger,
	}
}

// ApplyCallback verifies the webhook signature and, for a successful
// payment, transitions the order's pending rows to PAID. Returns an
// error only for verification or storage failures; unknown and duplicate
// order codes are acknowledged silently so the gateway stops retrying.
func (s *PaymentReconciler) ApplyCallback(ctx context.Context, raw []byte) error {
	result, err := s.gateway.VerifyWebhook(raw)
	if err != nil {
		s.logger.WithError(err).Warn("Rejected payment webhook")
		return err
	}

	if !result.Success || result.Code != "00" {
		s.logger.WithFields(logrus.Fields{
			"order_code": result.OrderCode,
			"code":       result.Code,
		}).Info("Ignoring unsuccessful payment callback")
		return nil
	}

	paid, err := s.bookingRepo.MarkPaidByOrderCode(result.OrderCode)
	if err != nil {
		return err
	}
	if len(paid) == 0 {
		// Already applied or unknown order code. Either way the ledger
		// is untouched and the delivery is acknowledged.
		s.logger.WithField("order_code", result.OrderCode).Info("Duplicate or unknown payment callback")
		return nil
	}

	seats := make([]string, 0, len(paid))
	total := 0.0
	for _, b := range paid {
		seats = append(seats, b.SeatNumber)
		total += b.Price
	}

	s.logger.WithFields(logrus.Fields{
		"order_code":   result.OrderCode,
		"booking_code": paid[0].BookingCode,
		"seats":        seats,
	}).Info("Payment applied")

	if err := s.publisher.Publish(ctx, &events.SeatEvent{
		Type:        events.TypeSeatsBooked,
		TripID:      paid[0].TripID,
		Seats:       seats,
		BookingCode: paid[0].BookingCode,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish seats_booked event")
	}

	go s.sendTicket(&mailer.Ticket{
		BookingCode:   paid[0].BookingCode,
		PassengerName: paid[0].PassengerName,
		ContactEmail:  paid[0].ContactEmail,
		Seats:         seats,
		TotalPrice:    total,
	})

	return nil
}

func (s *PaymentReconciler) sendTicket(ticket *mailer.Ticket) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.mailer.SendTicket(ctx, ticket); err != nil {
		s.logger.WithError(err).WithField("booking_code", ticket.BookingCode).Warn("Failed to send ticket email")
	}
}
