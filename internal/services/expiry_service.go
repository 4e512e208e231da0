package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/vexbus/booking-backend/internal/database"
	"github.com/vexbus/booking-backend/internal/events"
	"github.com/vexbus/booking-backend/pkg/mailer"
)

// reminderLead is how far before departure the reminder mail goes out.
// The window width matches the job cadence so each booking is picked up
// by exactly one run.
const (
	reminderLead   = 24 * time.Hour
	reminderWindow = 10 * time.Minute
)

// ExpiryService runs the scheduled maintenance jobs: reclaiming seats
// from bookings that never paid, and departure reminder mails.
type ExpiryService struct {
	bookingRepo *database.BookingRepository
	publisher   events.Publisher
	mailer      mailer.Mailer
	logger      *logrus.Logger
	grace       time.Duration
	cron        *cron.Cron
}

// NewExpiryService creates a new expiry service
func NewExpiryService(
	bookingRepo *database.BookingRepository,
	publisher events.Publisher,
	m mailer.Mailer,
	grace time.Duration,
	logger *logrus.Logger,
) *ExpiryService {
	return &ExpiryService{
		bookingRepo: bookingRepo,
		publisher:   publisher,
		mailer:      m,
		logger:      logger,
		grace:       grace,
	}
}

// Start registers and starts the cron jobs.
func (s *ExpiryService) Start() error {
	s.cron = cron.New(cron.WithSeconds())

	// Reclaim unpaid seats every minute
	if _, err := s.cron.AddFunc("0 * * * * *", s.ReapExpired); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	// Departure reminders every 10 minutes
	if _, err := s.cron.AddFunc("0 */10 * * * *", s.SendReminders); err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("grace_window", s.grace.String()).Info("Expiry service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *ExpiryService) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.logger.Info("Expiry service stopped")
	}
}

// ReapExpired cancels every PENDING_PAYMENT booking older than the grace
// window and broadcasts the freed seats per trip. The status condition
// lives inside the UPDATE, so a payment landing mid-sweep is safe.
func (s *ExpiryService) ReapExpired() {
	cutoff := time.Now().Add(-s.grace)
	expired, err := s.bookingRepo.CancelExpired(cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Expiry sweep failed")
		return
	}
	if len(expired) == 0 {
		return
	}

	seatsByTrip := make(map[int64][]string)
	for _, b := range expired {
		seatsByTrip[b.TripID] = append(seatsByTrip[b.TripID], b.SeatNumber)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for tripID, seats := range seatsByTrip {
		err := s.publisher.Publish(ctx, &events.SeatEvent{
			Type:   events.TypeSeatsReleased,
			TripID: tripID,
			Seats:  seats,
		})
		if err != nil {
			s.logger.WithError(err).WithField("trip_id", tripID).Warn("Failed to publish seats_released event")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"cancelled": len(expired),
		"trips":     len(seatsByTrip),
	}).Info("Expired bookings reclaimed")
}

// SendReminders mails paid passengers whose trip departs in about a day.
func (s *ExpiryService) SendReminders() {
	from := time.Now().Add(reminderLead)
	bookings, err := s.bookingRepo.FindDepartingBetween(from, from.Add(reminderWindow))
	if err != nil {
		s.logger.WithError(err).Error("Reminder query failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, b := range bookings {
		err := s.mailer.SendReminder(ctx, &mailer.Reminder{
			ContactEmail:  b.ContactEmail,
			PassengerName: b.PassengerName,
			SeatNumber:    b.SeatNumber,
			Origin:        b.Origin,
			Destination:   b.Destination,
			DepartureTime: b.DepartureTime,
			BusPlate:      b.BusPlate,
		})
		if err != nil {
			s.logger.WithError(err).WithField("email", b.ContactEmail).Warn("Failed to send reminder email")
		}
	}
}
