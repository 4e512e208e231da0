package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vexbus/booking-backend/internal/models"
)

// BookingRepository is the authoritative booking ledger. Every status
// transition goes through a conditional UPDATE keyed on the current
// status; callers decide from RowsAffected, never from a prior read.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Beginx starts a transaction for the commit and seat-change flows.
func (r *BookingRepository) Beginx() (*sqlx.Tx, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// FindTakenSeatsTx returns the requested seats that already have a
// non-terminal booking on the trip, locking the matching rows. Must run
// inside the commit transaction, after the trip row is locked.
func (r *BookingRepository) FindTakenSeatsTx(tx *sqlx.Tx, tripID int64, seats []string) ([]string, error) {
	query := `
		SELECT seat_number FROM bookings
		WHERE trip_id = $1
		  AND seat_number = ANY($2)
		  AND status NOT IN ('CANCELLED', 'REFUNDED')
		FOR UPDATE`

	taken := []string{}
	if err := tx.Select(&taken, query, tripID, pq.Array(seats)); err != nil {
		return nil, fmt.Errorf("failed to check seat availability: %w", err)
	}
	return taken, nil
}

// CreateBookingsTx inserts one row per seat in a single statement.
func (r *BookingRepository) CreateBookingsTx(tx *sqlx.Tx, bookings []*models.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	valueStrings := make([]string, 0, len(bookings))
	valueArgs := make([]interface{}, 0, len(bookings)*10)
	for i, b := range bookings {
		base := i * 10
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))
		valueArgs = append(valueArgs,
			b.ID, b.TripID, b.SeatNumber, b.BookingCode,
			b.PassengerName, b.PassengerPhone, b.ContactEmail,
			b.Price, b.Status, b.OrderCode)
	}

	query := fmt.Sprintf(`
		INSERT INTO bookings (id, trip_id, seat_number, booking_code, passenger_name, passenger_phone, contact_email, price, status, order_code)
		VALUES %s`, strings.Join(valueStrings, ", "))

	if _, err := tx.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("failed to insert bookings: %w", err)
	}
	return nil
}

// GetWithDepartureTx fetches a booking joined with its trip's departure
// time, locking the booking row for the seat-change flow.
func (r *BookingRepository) GetWithDepartureTx(tx *sqlx.Tx, id uuid.UUID) (*models.BookingWithDeparture, error) {
	query := `
		SELECT b.id, b.trip_id, b.seat_number, b.booking_code, b.passenger_name, b.passenger_phone,
		       b.contact_email, b.price, b.status, b.order_code, b.payment_link_id, b.created_at, b.updated_at,
		       t.departure_time
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.id = $1
		FOR UPDATE OF b`

	var booking models.BookingWithDeparture
	if err := tx.Get(&booking, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetWithDeparture is the non-locking variant used by the cancel flow.
func (r *BookingRepository) GetWithDeparture(id uuid.UUID) (*models.BookingWithDeparture, error) {
	query := `
		SELECT b.id, b.trip_id, b.seat_number, b.booking_code, b.passenger_name, b.passenger_phone,
		       b.contact_email, b.price, b.status, b.order_code, b.payment_link_id, b.created_at, b.updated_at,
		       t.departure_time
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.id = $1`

	var booking models.BookingWithDeparture
	if err := r.db.Get(&booking, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// UpdateSeatTx moves a row-locked booking to a new seat.
func (r *BookingRepository) UpdateSeatTx(tx *sqlx.Tx, id uuid.UUID, newSeat string) error {
	query := `UPDATE bookings SET seat_number = $2, updated_at = NOW() WHERE id = $1`

	result, err := tx.Exec(query, id, newSeat)
	if err != nil {
		return fmt.Errorf("failed to update seat: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrBookingNotFound
	}
	return nil
}

// UpdateStatusIf transitions a booking from one status to another.
// Returns false when the row was not in the expected status, which covers
// both concurrent transitions and repeated requests.
func (r *BookingRepository) UpdateStatusIf(id uuid.UUID, from, to models.BookingStatus) (bool, error) {
	query := `UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`

	result, err := r.db.Exec(query, id, to, from)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// MarkPaidByOrderCode applies a confirmed payment to every pending row of
// the order. An empty result means the payment was already applied or the
// order code is unknown; both are treated as a duplicate delivery.
func (r *BookingRepository) MarkPaidByOrderCode(orderCode int64) ([]models.PaidBooking, error) {
	query := `
		UPDATE bookings
		SET status = 'PAID', updated_at = NOW()
		WHERE order_code = $1 AND status = 'PENDING_PAYMENT'
		RETURNING trip_id, seat_number, booking_code, passenger_name, contact_email, price`

	paid := []models.PaidBooking{}
	if err := r.db.Select(&paid, query, orderCode); err != nil {
		return nil, fmt.Errorf("failed to mark bookings paid: %w", err)
	}
	return paid, nil
}

// AttachPaymentLink records the gateway link id on the pending rows.
// Best-effort: the commit already succeeded when this runs.
func (r *BookingRepository) AttachPaymentLink(orderCode int64, paymentLinkID string) error {
	query := `
		UPDATE bookings
		SET payment_link_id = $2, updated_at = NOW()
		WHERE order_code = $1 AND status = 'PENDING_PAYMENT'`

	if _, err := r.db.Exec(query, orderCode, paymentLinkID); err != nil {
		return fmt.Errorf("failed to attach payment link: %w", err)
	}
	return nil
}

// CancelExpired cancels every pending booking created before the cutoff
// and returns the freed (trip, seat) pairs for broadcasting. Rows that
// were paid between the sweep's read and write are untouched because the
// status condition is part of the UPDATE itself.
func (r *BookingRepository) CancelExpired(cutoff time.Time) ([]models.ExpiredBooking, error) {
	query := `
		UPDATE bookings
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE status = 'PENDING_PAYMENT' AND created_at < $1
		RETURNING trip_id, seat_number, booking_code`

	expired := []models.ExpiredBooking{}
	if err := r.db.Select(&expired, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to cancel expired bookings: %w", err)
	}
	return expired, nil
}

// FindByCodeAndEmail returns the grouped purchase for a booking code,
// gated on the contact email supplied at booking time.
func (r *BookingRepository) FindByCodeAndEmail(code, email string) (*models.BookingGroup, error) {
	query := `
		SELECT b.booking_code, b.passenger_name, b.passenger_phone, b.contact_email, b.status,
		       array_agg(b.seat_number ORDER BY b.seat_number) AS seats,
		       SUM(b.price) AS total_price,
		       t.origin, t.destination, t.departure_time, t.bus_plate
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.booking_code = $1 AND b.contact_email = $2
		GROUP BY b.booking_code, b.passenger_name, b.passenger_phone, b.contact_email, b.status,
		         t.origin, t.destination, t.departure_time, t.bus_plate`

	var group models.BookingGroup
	var seats pq.StringArray
	row := r.db.QueryRow(query, code, email)
	err := row.Scan(&group.BookingCode, &group.PassengerName, &group.PassengerPhone,
		&group.ContactEmail, &group.Status, &seats, &group.TotalPrice,
		&group.Origin, &group.Destination, &group.DepartureTime, &group.BusPlate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to look up booking: %w", err)
	}
	group.Seats = seats
	return &group, nil
}

// SoldSeats returns the seats with a non-terminal booking on the trip.
func (r *BookingRepository) SoldSeats(tripID int64) ([]string, error) {
	query := `
		SELECT seat_number FROM bookings
		WHERE trip_id = $1 AND status NOT IN ('CANCELLED', 'REFUNDED')
		ORDER BY seat_number`

	seats := []string{}
	if err := r.db.Select(&seats, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to get sold seats: %w", err)
	}
	return seats, nil
}

// FindDepartingBetween returns paid bookings whose trip departs inside the
// window, for the reminder mail job.
func (r *BookingRepository) FindDepartingBetween(from, until time.Time) ([]models.ReminderBooking, error) {
	query := `
		SELECT b.contact_email, b.passenger_name, b.seat_number,
		       t.origin, t.destination, t.departure_time, t.bus_plate
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.status = 'PAID' AND t.departure_time >= $1 AND t.departure_time < $2`

	reminders := []models.ReminderBooking{}
	if err := r.db.Select(&reminders, query, from, until); err != nil {
		return nil, fmt.Errorf("failed to get departing bookings: %w", err)
	}
	return reminders, nil
}
