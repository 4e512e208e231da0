package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle state of a booking row.
// Matches PostgreSQL ENUM: booking_status
type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusPaid           BookingStatus = "PAID"
	BookingStatusCancelled      BookingStatus = "CANCELLED"
	BookingStatusRefunded       BookingStatus = "REFUNDED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusRefunded
}

// CanTransitionTo reports whether the state machine allows moving from s
// to next. Transitions never skip a state: PENDING_PAYMENT cannot jump
// straight to REFUNDED.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingStatusPendingPayment:
		return next == BookingStatusPaid || next == BookingStatusCancelled
	case BookingStatusPaid:
		return next == BookingStatusRefunded
	default:
		return false
	}
}

// Booking represents one durable (trip, seat) booking attempt. A multi-seat
// purchase creates one row per seat sharing the same booking_code and
// order_code. Rows are never deleted; cancellation is a status change.
type Booking struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	TripID         int64         `json:"trip_id" db:"trip_id"`
	SeatNumber     string        `json:"seat_number" db:"seat_number"`
	BookingCode    string        `json:"booking_code" db:"booking_code"`
	PassengerName  string        `json:"passenger_name" db:"passenger_name"`
	PassengerPhone string        `json:"passenger_phone" db:"passenger_phone"`
	ContactEmail   string        `json:"contact_email" db:"contact_email"`
	Price          float64       `json:"price" db:"price"`
	Status         BookingStatus `json:"status" db:"status"`
	OrderCode      int64         `json:"order_code" db:"order_code"`
	PaymentLinkID  *string       `json:"payment_link_id,omitempty" db:"payment_link_id"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// BookingWithDeparture joins a booking row with its trip's departure time.
// Used by the cancellation and seat-change flows to enforce the cutoff rule.
type BookingWithDeparture struct {
	Booking
	DepartureTime time.Time `db:"departure_time"`
}

// ExpiredBooking identifies a booking cancelled by the expiry sweep so the
// freed seat can be broadcast per trip.
type ExpiredBooking struct {
	TripID      int64  `db:"trip_id"`
	SeatNumber  string `db:"seat_number"`
	BookingCode string `db:"booking_code"`
}

// PaidBooking is returned by the conditional PENDING_PAYMENT -> PAID update
// so the reconciler can notify and broadcast exactly once.
type PaidBooking struct {
	TripID        int64   `db:"trip_id"`
	SeatNumber    string  `db:"seat_number"`
	BookingCode   string  `db:"booking_code"`
	PassengerName string  `db:"passenger_name"`
	ContactEmail  string  `db:"contact_email"`
	Price         float64 `db:"price"`
}

// ReminderBooking carries the fields needed for the departure reminder mail.
type ReminderBooking struct {
	ContactEmail  string    `db:"contact_email"`
	PassengerName string    `db:"passenger_name"`
	SeatNumber    string    `db:"seat_number"`
	Origin        string    `db:"origin"`
	Destination   string    `db:"destination"`
	DepartureTime time.Time `db:"departure_time"`
	BusPlate      string    `db:"bus_plate"`
}

// BookingGroup is the lookup view of a purchase: every seat sharing one
// booking code, with trip display details and the summed price.
type BookingGroup struct {
	BookingCode    string        `json:"booking_code" db:"booking_code"`
	PassengerName  string        `json:"passenger_name" db:"passenger_name"`
	PassengerPhone string        `json:"passenger_phone" db:"passenger_phone"`
	ContactEmail   string        `json:"contact_email" db:"contact_email"`
	Status         BookingStatus `json:"status" db:"status"`
	Seats          []string      `json:"seats"`
	TotalPrice     float64       `json:"total_price" db:"total_price"`
	Origin         string        `json:"origin" db:"origin"`
	Destination    string        `json:"destination" db:"destination"`
	DepartureTime  time.Time     `json:"departure_time" db:"departure_time"`
	BusPlate       string        `json:"bus_plate" db:"bus_plate"`
}

// PassengerInfo is the contact block submitted with a booking commit.
type PassengerInfo struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// CommitBookingRequest is the payload for POST /bookings.
type CommitBookingRequest struct {
	TripID        int64         `json:"trip_id" binding:"required"`
	Seats         []string      `json:"seats" binding:"required"`
	PassengerInfo PassengerInfo `json:"passenger_info" binding:"required"`
}

// Validate performs request-level checks beyond binding tags.
func (r *CommitBookingRequest) Validate() error {
	if len(r.Seats) == 0 {
		return fmt.Errorf("at least one seat is required")
	}
	seen := make(map[string]struct{}, len(r.Seats))
	for _, seat := range r.Seats {
		if seat == "" {
			return fmt.Errorf("seat numbers must not be empty")
		}
		if _, dup := seen[seat]; dup {
			return fmt.Errorf("duplicate seat %s in request", seat)
		}
		seen[seat] = struct{}{}
	}
	return nil
}

// CommitBookingResponse returns the shared booking code and the payment
// handle. PaymentURL may be empty when the gateway call failed; the rows
// then stay PENDING_PAYMENT until paid or swept by the expiry job.
type CommitBookingResponse struct {
	BookingCode string  `json:"booking_code"`
	PaymentURL  string  `json:"payment_url,omitempty"`
	TotalPrice  float64 `json:"total_price"`
}

// CancelBookingRequest identifies the caller via the contact email used at
// booking time. Account identity is handled upstream of this service.
type CancelBookingRequest struct {
	ContactEmail string `json:"contact_email" binding:"required,email"`
}

// ChangeSeatRequest moves a booking to a different seat on the same trip.
type ChangeSeatRequest struct {
	ContactEmail string `json:"contact_email" binding:"required,email"`
	NewSeat      string `json:"new_seat" binding:"required"`
}
