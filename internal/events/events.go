// Package events broadcasts seat state changes so seat-map clients can
// refresh without polling. Delivery is best-effort, at-least-once;
// consumers reconcile against the seat status endpoint.
package events

import (
	"context"
	"time"
)

// Event types published to the seat exchange.
const (
	TypeSeatsLocked   = "seats_locked"
	TypeSeatsUnlocked = "seats_unlocked"
	TypeSeatsPending  = "seats_pending"
	TypeSeatsBooked   = "seats_booked"
	TypeSeatsReleased = "seats_released"
)

// SeatEvent describes a seat state change on one trip.
type SeatEvent struct {
	Type        string    `json:"type"`
	TripID      int64     `json:"trip_id"`
	Seats       []string  `json:"seats"`
	BookingCode string    `json:"booking_code,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher pushes seat events to the broadcast channel. Publish failures
// must never fail the request that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event *SeatEvent) error
	Close() error
}
