package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vexbus/booking-backend/internal/config"
	"github.com/vexbus/booking-backend/internal/database"
	"github.com/vexbus/booking-backend/internal/events"
	"github.com/vexbus/booking-backend/internal/models"
	"github.com/vexbus/booking-backend/pkg/bookingcode"
	"github.com/vexbus/booking-backend/pkg/mailer"
)

// refundRate is the fraction returned when a paid booking is cancelled.
const refundRate = 0.9

// CancelResult reports the outcome of a cancellation.
type CancelResult struct {
	BookingCode  string               `json:"booking_code"`
	NewStatus    models.BookingStatus `json:"status"`
	RefundAmount *float64             `json:"refund_amount,omitempty"`
}

// BookingService owns the durable booking flows: commit, lookup, cancel
// and seat change. Every mutation runs through the ledger's conditional
// updates; advisory locks are never consulted here.
type BookingService struct {
	bookingRepo *database.BookingRepository
	tripRepo    *database.TripRepository
	gateway     PaymentGateway
	publisher   events.Publisher
	mailer      mailer.Mailer
	logger      *logrus.Logger
	config      *config.BookingConfig
}

// NewBookingService creates a new booking service
func NewBookingService(
	bookingRepo *database.BookingRepository,
	tripRepo *database.TripRepository,
	gateway PaymentGateway,
	publisher events.Publisher,
	m mailer.Mailer,
	cfg *config.BookingConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		tripRepo:    tripRepo,
		gateway:     gateway,
		publisher:   publisher,
		mailer:      m,
		logger:      logger,
		config:      cfg,
	}
}

// Commit converts held seats into durable PENDING_PAYMENT rows. The
// transaction locks the trip row, re-checks availability with FOR UPDATE
// and inserts one row per seat; whoever commits first wins, regardless
// of any advisory locks. Payment intent creation happens after the
// commit and never rolls it back.
func (s *BookingService) Commit(ctx context.Context, req *models.CommitBookingRequest) (*models.CommitBookingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 1. Generate the shared booking code and payment reference
	code, err := bookingcode.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking code: %w", err)
	}
	orderCode, err := bookingcode.NewOrderCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order code: %w", err)
	}

	// 2. Open the commit transaction
	tx, err := s.bookingRepo.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // no-op once committed

	// 3. Lock the trip row to serialize commits on this trip
	trip, err := s.tripRepo.GetForUpdateTx(tx, req.TripID)
	if err != nil {
		return nil, err
	}
	if trip.DepartureTime.Before(time.Now()) {
		return nil, models.ErrTripDeparted
	}

	// 4. Authoritative availability re-check
	taken, err := s.bookingRepo.FindTakenSeatsTx(tx, req.TripID, req.Seats)
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, &models.SeatConflictError{TakenSeats: taken}
	}

	// 5. Insert one row per seat
	bookings := make([]*models.Booking, 0, len(req.Seats))
	for _, seat := range req.Seats {
		bookings = append(bookings, &models.Booking{
			ID:             uuid.New(),
			TripID:         req.TripID,
			SeatNumber:     seat,
			BookingCode:    code,
			PassengerName:  req.PassengerInfo.Name,
			PassengerPhone: req.PassengerInfo.Phone,
			ContactEmail:   req.PassengerInfo.Email,
			Price:          trip.Price,
			Status:         models.BookingStatusPendingPayment,
			OrderCode:      orderCode,
		})
	}
	if err := s.bookingRepo.CreateBookingsTx(tx, bookings); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking transaction: %w", err)
	}

	total := trip.Price * float64(len(req.Seats))

	s.logger.WithFields(logrus.Fields{
		"booking_code": code,
		"trip_id":      req.TripID,
		"seats":        req.Seats,
		"order_code":   orderCode,
	}).Info("Booking committed")

	// 6. Post-commit: payment intent. Failure leaves the rows
	// PENDING_PAYMENT for the expiry sweep.
	paymentURL := ""
	link, err := s.gateway.CreatePaymentLink(ctx, &PaymentLinkRequest{
		OrderCode:   orderCode,
		Amount:      int64(math.Round(total)),
		Description: code,
	})
	if err != nil {
		s.logger.WithError(err).WithField("booking_code", code).Warn("Payment link creation failed, booking stays pending")
	} else {
		paymentURL = link.CheckoutURL
		if err := s.bookingRepo.AttachPaymentLink(orderCode, link.PaymentLinkID); err != nil {
			s.logger.WithError(err).WithField("booking_code", code).Warn("Failed to attach payment link")
		}
	}

	s.publish(ctx, &events.SeatEvent{
		Type:        events.TypeSeatsPending,
		TripID:      req.TripID,
		Seats:       req.Seats,
		BookingCode: code,
	})

	return &models.CommitBookingResponse{
		BookingCode: code,
		PaymentURL:  paymentURL,
		TotalPrice:  total,
	}, nil
}

// Lookup returns the grouped purchase for a booking code and the contact
// email supplied at booking time.
func (s *BookingService) Lookup(code, email string) (*models.BookingGroup, error) {
	return s.bookingRepo.FindByCodeAndEmail(code, email)
}

// Cancel cancels one booking row. PENDING_PAYMENT rows become CANCELLED;
// PAID rows become REFUNDED with a partial refund. The conditional update
// is the arbiter: a concurrent transition makes this call fail cleanly.
func (s *BookingService) Cancel(ctx context.Context, id uuid.UUID, contactEmail string) (*CancelResult, error) {
	booking, err := s.bookingRepo.GetWithDeparture(id)
	if err != nil {
		return nil, err
	}
	// Wrong email gets the same answer as a missing booking.
	if booking.ContactEmail != contactEmail {
		return nil, models.ErrBookingNotFound
	}
	if booking.Status.IsTerminal() {
		return nil, models.ErrBookingAlreadyFinal
	}
	if time.Until(booking.DepartureTime) < s.config.CancelCutoff {
		return nil, models.ErrCancelWindowClosed
	}

	target := models.BookingStatusCancelled
	var refund *float64
	if booking.Status == models.BookingStatusPaid {
		target = models.BookingStatusRefunded
		amount := booking.Price * refundRate
		refund = &amount
	}
	if !booking.Status.CanTransitionTo(target) {
		return nil, models.ErrBookingAlreadyFinal
	}

	updated, err := s.bookingRepo.UpdateStatusIf(id, booking.Status, target)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Status changed underneath us, e.g. the payment webhook or the
		// expiry sweep got there first.
		return nil, models.ErrBookingAlreadyFinal
	}

	s.logger.WithFields(logrus.Fields{
		"booking_code": booking.BookingCode,
		"seat":         booking.SeatNumber,
		"status":       target,
	}).Info("Booking cancelled")

	s.publish(ctx, &events.SeatEvent{
		Type:        events.TypeSeatsReleased,
		TripID:      booking.TripID,
		Seats:       []string{booking.SeatNumber},
		BookingCode: booking.BookingCode,
	})

	go s.sendCancellationMail(booking, refund)

	return &CancelResult{
		BookingCode:  booking.BookingCode,
		NewStatus:    target,
		RefundAmount: refund,
	}, nil
}

// ChangeSeat moves a booking to a different seat on the same trip. Lock
// order matches Commit (trip row first, then booking rows) so the two
// flows cannot deadlock.
func (s *BookingService) ChangeSeat(ctx context.Context, id uuid.UUID, contactEmail, newSeat string) error {
	// Cheap pre-checks outside the transaction
	existing, err := s.bookingRepo.GetWithDeparture(id)
	if err != nil {
		return err
	}
	if existing.ContactEmail != contactEmail {
		return models.ErrBookingNotFound
	}
	if existing.SeatNumber == newSeat {
		return models.ErrSeatUnchanged
	}

	tx, err := s.bookingRepo.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.tripRepo.GetForUpdateTx(tx, existing.TripID); err != nil {
		return err
	}

	// Re-read under lock; the pre-checked row may have changed
	booking, err := s.bookingRepo.GetWithDepartureTx(tx, id)
	if err != nil {
		return err
	}
	if booking.Status.IsTerminal() {
		return models.ErrBookingAlreadyFinal
	}
	if time.Until(booking.DepartureTime) < s.config.CancelCutoff {
		return models.ErrCancelWindowClosed
	}
	if booking.SeatNumber == newSeat {
		return models.ErrSeatUnchanged
	}

	taken, err := s.bookingRepo.FindTakenSeatsTx(tx, booking.TripID, []string{newSeat})
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return &models.SeatConflictError{TakenSeats: taken}
	}

	oldSeat := booking.SeatNumber
	if err := s.bookingRepo.UpdateSeatTx(tx, id, newSeat); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seat change: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_code": booking.BookingCode,
		"old_seat":     oldSeat,
		"new_seat":     newSeat,
	}).Info("Seat changed")

	s.publish(ctx, &events.SeatEvent{
		Type:        events.TypeSeatsReleased,
		TripID:      booking.TripID,
		Seats:       []string{oldSeat},
		BookingCode: booking.BookingCode,
	})
	newSeatEvent := events.TypeSeatsPending
	if booking.Status == models.BookingStatusPaid {
		newSeatEvent = events.TypeSeatsBooked
	}
	s.publish(ctx, &events.SeatEvent{
		Type:        newSeatEvent,
		TripID:      booking.TripID,
		Seats:       []string{newSeat},
		BookingCode: booking.BookingCode,
	})

	return nil
}

// SeatStatus merges sold seats from the ledger with advisory locks from
// the lock store.
func (s *BookingService) SeatStatus(ctx context.Context, tripID int64, lockService *SeatLockService) (*models.SeatStatus, error) {
	if _, err := s.tripRepo.GetByID(tripID); err != nil {
		return nil, err
	}

	sold, err := s.bookingRepo.SoldSeats(tripID)
	if err != nil {
		return nil, err
	}

	locked := lockService.ActiveLocks(ctx, tripID)

	// A seat can be both sold and still soft-locked by its buyer until
	// the lock expires; drop it from the locked list.
	soldSet := make(map[string]struct{}, len(sold))
	for _, seat := range sold {
		soldSet[seat] = struct{}{}
	}
	lockedOnly := []string{}
	for _, seat := range locked {
		if _, isSold := soldSet[seat]; !isSold {
			lockedOnly = append(lockedOnly, seat)
		}
	}

	return &models.SeatStatus{
		TripID:      tripID,
		SoldSeats:   sold,
		LockedSeats: lockedOnly,
	}, nil
}

func (s *BookingService) sendCancellationMail(booking *models.BookingWithDeparture, refund *float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.mailer.SendCancellation(ctx, &mailer.Cancellation{
		BookingCode:  booking.BookingCode,
		ContactEmail: booking.ContactEmail,
		SeatNumber:   booking.SeatNumber,
		RefundAmount: refund,
	})
	if err != nil {
		s.logger.WithError(err).WithField("booking_code", booking.BookingCode).Warn("Failed to send cancellation email")
	}
}

func (s *BookingService) publish(ctx context.Context, event *events.SeatEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event", event.Type).Warn("Failed to publish seat event")
	}
}
