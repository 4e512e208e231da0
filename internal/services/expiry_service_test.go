package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexbus/booking-backend/internal/database"
	"github.com/vexbus/booking-backend/internal/events"
)

func newExpiryFixture(t *testing.T) (*ExpiryService, sqlmock.Sqlmock, *fakePublisher, *fakeMailer, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	publisher := &fakePublisher{}
	m := newFakeMailer()
	service := NewExpiryService(
		database.NewBookingRepository(sqlx.NewDb(db, "sqlmock")),
		publisher,
		m,
		15*time.Minute,
		testLogger(),
	)
	return service, mock, publisher, m, func() { db.Close() }
}

func TestReapExpired(t *testing.T) {
	t.Run("Broadcasts Freed Seats Per Trip", func(t *testing.T) {
		service, mock, publisher, _, closeDB := newExpiryFixture(t)
		defer closeDB()

		mock.ExpectQuery(`UPDATE bookings`).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_number", "booking_code"}).
				AddRow(7, "A1", "VEX-7KQ2M").
				AddRow(7, "A2", "VEX-7KQ2M").
				AddRow(9, "C4", "VEX-NXW38"))

		service.ReapExpired()

		released := publisher.eventsOfType(events.TypeSeatsReleased)
		require.Len(t, released, 2)

		seatsByTrip := map[int64][]string{}
		for _, event := range released {
			seatsByTrip[event.TripID] = event.Seats
		}
		assert.ElementsMatch(t, []string{"A1", "A2"}, seatsByTrip[7])
		assert.Equal(t, []string{"C4"}, seatsByTrip[9])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nothing Expired", func(t *testing.T) {
		service, mock, publisher, _, closeDB := newExpiryFixture(t)
		defer closeDB()

		mock.ExpectQuery(`UPDATE bookings`).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_number", "booking_code"}))

		service.ReapExpired()

		assert.Empty(t, publisher.published)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Sweep Error Is Contained", func(t *testing.T) {
		service, mock, publisher, _, closeDB := newExpiryFixture(t)
		defer closeDB()

		mock.ExpectQuery(`UPDATE bookings`).
			WithArgs(sqlmock.AnyArg()).
			WillReturnError(fmt.Errorf("database error"))

		service.ReapExpired()

		assert.Empty(t, publisher.published)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSendReminders(t *testing.T) {
	t.Run("Mails Departing Passengers", func(t *testing.T) {
		service, mock, _, m, closeDB := newExpiryFixture(t)
		defer closeDB()

		departure := time.Now().Add(24 * time.Hour)
		mock.ExpectQuery(`SELECT b.contact_email`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{
				"contact_email", "passenger_name", "seat_number", "origin", "destination", "departure_time", "bus_plate",
			}).
				AddRow("jane@example.com", "Jane Doe", "A1", "Hanoi", "Sapa", departure, "29B-123.45").
				AddRow("john@example.com", "John Doe", "B2", "Hanoi", "Sapa", departure, "29B-123.45"))

		service.SendReminders()

		m.mu.Lock()
		defer m.mu.Unlock()
		require.Len(t, m.reminders, 2)
		assert.Equal(t, "jane@example.com", m.reminders[0].ContactEmail)
		assert.Equal(t, "B2", m.reminders[1].SeatNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No Departures In Window", func(t *testing.T) {
		service, mock, _, m, closeDB := newExpiryFixture(t)
		defer closeDB()

		mock.ExpectQuery(`SELECT b.contact_email`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{
				"contact_email", "passenger_name", "seat_number", "origin", "destination", "departure_time", "bus_plate",
			}))

		service.SendReminders()

		m.mu.Lock()
		defer m.mu.Unlock()
		assert.Empty(t, m.reminders)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
