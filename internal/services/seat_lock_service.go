package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vexbus/booking-backend/internal/config"
	"github.com/vexbus/booking-backend/internal/events"
	"github.com/vexbus/booking-backend/internal/lockstore"
	"github.com/vexbus/booking-backend/internal/models"
)

// Lock stages select the hold TTL.
const (
	StageBrowse   = "browse"
	StageCheckout = "checkout"
)

// HoldResult reports the outcome of a batch hold. Degraded means the lock
// store was unreachable: no soft reservation exists, but checkout may
// proceed because the ledger transaction is the authority anyway.
type HoldResult struct {
	Held      []string  `json:"held_seats"`
	ExpiresAt time.Time `json:"expires_at"`
	Degraded  bool      `json:"degraded,omitempty"`
}

// SeatLockService manages advisory seat holds on top of the lock store.
// Holds are batch all-or-nothing; a partial acquisition is rolled back
// before the caller sees it.
type SeatLockService struct {
	store     lockstore.Store
	publisher events.Publisher
	logger    *logrus.Logger
	config    *config.BookingConfig
}

// NewSeatLockService creates a new seat lock service
func NewSeatLockService(store lockstore.Store, publisher events.Publisher, cfg *config.BookingConfig, logger *logrus.Logger) *SeatLockService {
	return &SeatLockService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		config:    cfg,
	}
}

func (s *SeatLockService) ttlForStage(stage string) time.Duration {
	if stage == StageCheckout {
		return s.config.CheckoutHoldTTL
	}
	return s.config.BrowseHoldTTL
}

// HoldSeats acquires every requested seat for holderID or none of them.
// Re-holding seats the holder already owns refreshes their TTL, so moving
// from browse to checkout extends the same locks.
func (s *SeatLockService) HoldSeats(ctx context.Context, tripID int64, seats []string, holderID, stage string) (*HoldResult, error) {
	ttl := s.ttlForStage(stage)

	acquired := make([]string, 0, len(seats))
	for _, seat := range seats {
		ok, err := s.store.Acquire(ctx, tripID, seat, holderID, ttl)
		if err != nil {
			// Store outage: no soft reservation. The commit transaction
			// still decides seat ownership, so this is not fatal.
			s.logger.WithError(err).WithFields(logrus.Fields{
				"trip_id": tripID,
				"seat":    seat,
			}).Warn("Lock store unavailable, proceeding without soft reservation")
			return &HoldResult{Held: seats, Degraded: true}, nil
		}
		if !ok {
			s.rollbackHolds(ctx, tripID, acquired, holderID)
			rejected := s.rejectedFrom(ctx, tripID, seats, holderID)
			if len(rejected) == 0 {
				rejected = []string{seat}
			}
			return nil, &models.SeatUnavailableError{RejectedSeats: rejected}
		}
		acquired = append(acquired, seat)
	}

	s.publish(ctx, &events.SeatEvent{
		Type:   events.TypeSeatsLocked,
		TripID: tripID,
		Seats:  seats,
	})

	return &HoldResult{
		Held:      seats,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// rejectedFrom lists every requested seat owned by someone else, so the
// 409 response names all conflicts instead of just the first one found.
func (s *SeatLockService) rejectedFrom(ctx context.Context, tripID int64, seats []string, holderID string) []string {
	rejected := []string{}
	for _, seat := range seats {
		owner, err := s.store.Owner(ctx, tripID, seat)
		if err != nil {
			continue
		}
		if owner != "" && owner != holderID {
			rejected = append(rejected, seat)
		}
	}
	return rejected
}

func (s *SeatLockService) rollbackHolds(ctx context.Context, tripID int64, seats []string, holderID string) {
	for _, seat := range seats {
		if _, err := s.store.Release(ctx, tripID, seat, holderID); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"trip_id": tripID,
				"seat":    seat,
			}).Warn("Failed to roll back seat hold")
		}
	}
}

// ReleaseSeats drops the holder's locks on the given seats. Best-effort:
// seats owned by other holders are skipped and store failures are logged,
// never surfaced. Unreleased locks expire on their own.
func (s *SeatLockService) ReleaseSeats(ctx context.Context, tripID int64, seats []string, holderID string) []string {
	released := make([]string, 0, len(seats))
	for _, seat := range seats {
		ok, err := s.store.Release(ctx, tripID, seat, holderID)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"trip_id": tripID,
				"seat":    seat,
			}).Warn("Failed to release seat hold")
			continue
		}
		if ok {
			released = append(released, seat)
		}
	}

	if len(released) > 0 {
		s.publish(ctx, &events.SeatEvent{
			Type:   events.TypeSeatsUnlocked,
			TripID: tripID,
			Seats:  released,
		})
	}
	return released
}

// ActiveLocks returns the seats currently soft-locked on the trip. A
// store outage degrades to an empty list rather than an error: the seat
// map then only shows ledger-backed unavailability.
func (s *SeatLockService) ActiveLocks(ctx context.Context, tripID int64) []string {
	seats, err := s.store.ActiveLocks(ctx, tripID)
	if err != nil {
		s.logger.WithError(err).WithField("trip_id", tripID).Warn("Failed to list active seat locks")
		return []string{}
	}
	return seats
}

func (s *SeatLockService) publish(ctx context.Context, event *events.SeatEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event", event.Type).Warn("Failed to publish seat event")
	}
}
