package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogMailer logs notifications instead of delivering them. Default in
// development and when no delivery backend is configured.
type LogMailer struct {
	logger *logrus.Logger
}

// NewLogMailer creates a logging-only mailer.
func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendTicket logs the ticket confirmation.
func (m *LogMailer) SendTicket(_ context.Context, ticket *Ticket) error {
	m.logger.WithFields(logrus.Fields{
		"booking_code": ticket.BookingCode,
		"email":        ticket.ContactEmail,
		"seats":        ticket.Seats,
		"total_price":  ticket.TotalPrice,
	}).Info("Ticket confirmation email (log-only mailer)")
	return nil
}

// SendCancellation logs the cancellation notice.
func (m *LogMailer) SendCancellation(_ context.Context, cancellation *Cancellation) error {
	fields := logrus.Fields{
		"booking_code": cancellation.BookingCode,
		"email":        cancellation.ContactEmail,
		"seat":         cancellation.SeatNumber,
	}
	if cancellation.RefundAmount != nil {
		fields["refund_amount"] = *cancellation.RefundAmount
	}
	m.logger.WithFields(fields).Info("Cancellation email (log-only mailer)")
	return nil
}

// SendReminder logs the departure reminder.
func (m *LogMailer) SendReminder(_ context.Context, reminder *Reminder) error {
	m.logger.WithFields(logrus.Fields{
		"email":     reminder.ContactEmail,
		"seat":      reminder.SeatNumber,
		"departure": reminder.DepartureTime,
	}).Info("Departure reminder email (log-only mailer)")
	return nil
}
