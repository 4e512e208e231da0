// Package mailer defines the notification contract for booking emails.
// Message delivery and templating live behind the interface; the service
// only decides when a notification is owed. Failures are logged by
// callers and never affect booking state.
package mailer

import (
	"context"
	"time"
)

// Ticket is the confirmation sent after a payment is applied.
type Ticket struct {
	BookingCode   string
	PassengerName string
	ContactEmail  string
	Seats         []string
	TotalPrice    float64
}

// Cancellation is sent after a cancel or refund. RefundAmount is nil for
// unpaid cancellations.
type Cancellation struct {
	BookingCode  string
	ContactEmail string
	SeatNumber   string
	RefundAmount *float64
}

// Reminder is sent ahead of departure to paid passengers.
type Reminder struct {
	ContactEmail  string
	PassengerName string
	SeatNumber    string
	Origin        string
	Destination   string
	DepartureTime time.Time
	BusPlate      string
}

// Mailer sends booking notifications.
type Mailer interface {
	SendTicket(ctx context.Context, ticket *Ticket) error
	SendCancellation(ctx context.Context, cancellation *Cancellation) error
	SendReminder(ctx context.Context, reminder *Reminder) error
}
