package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLockStoreUnavailable signals the advisory lock store is down.
	// Callers degrade to no soft reservation; the ledger remains the
	// authority at commit time.
	ErrLockStoreUnavailable = errors.New("seat lock store unavailable")

	ErrTripNotFound    = errors.New("trip not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrTripDeparted    = errors.New("trip has already departed")

	// ErrCancelWindowClosed rejects cancel/seat-change attempts within
	// 24 hours of departure.
	ErrCancelWindowClosed = errors.New("changes are not allowed within 24 hours of departure")

	// ErrBookingAlreadyFinal rejects transitions out of a terminal state,
	// including races detected by a zero-row conditional update.
	ErrBookingAlreadyFinal = errors.New("booking is already cancelled or refunded")

	ErrSeatUnchanged = errors.New("new seat is the same as the current seat")

	// ErrPaymentVerificationFailed rejects webhook payloads whose
	// signature does not match the checksum key.
	ErrPaymentVerificationFailed = errors.New("payment webhook signature verification failed")
)

// SeatUnavailableError reports which seats could not be soft-locked.
// The batch is all-or-nothing, so none of the requested seats are held.
type SeatUnavailableError struct {
	RejectedSeats []string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.RejectedSeats, ", "))
}

// SeatConflictError reports seats that lost the authoritative re-check
// inside the booking commit transaction.
type SeatConflictError struct {
	TakenSeats []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats already booked: %s", strings.Join(e.TakenSeats, ", "))
}
