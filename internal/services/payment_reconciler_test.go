package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexbus/booking-backend/internal/database"
	"github.com/vexbus/booking-backend/internal/events"
	"github.com/vexbus/booking-backend/internal/models"
)

type reconcilerFixture struct {
	reconciler *PaymentReconciler
	mock       sqlmock.Sqlmock
	publisher  *fakePublisher
	mailer     *fakeMailer
	close      func()
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	publisher := &fakePublisher{}
	m := newFakeMailer()
	gateway := NewPayOSService(testPaymentConfig("http://unused"), testLogger())

	reconciler := NewPaymentReconciler(
		database.NewBookingRepository(sqlx.NewDb(db, "sqlmock")),
		gateway,
		publisher,
		m,
		testLogger(),
	)

	return &reconcilerFixture{
		reconciler: reconciler,
		mock:       mock,
		publisher:  publisher,
		mailer:     m,
		close:      func() { db.Close() },
	}
}

func TestApplyCallback(t *testing.T) {
	ctx := context.Background()

	successData := map[string]interface{}{
		"orderCode": 123456789,
		"amount":    90,
		"reference": "FT2026123",
	}

	t.Run("Applies Payment Once", func(t *testing.T) {
		f := newReconcilerFixture(t)
		defer f.close()

		f.mock.ExpectQuery(`UPDATE bookings`).
			WithArgs(int64(123456789)).
			WillReturnRows(sqlmock.NewRows([]string{
				"trip_id", "seat_number", "booking_code", "passenger_name", "contact_email", "price",
			}).
				AddRow(7, "A1", "VEX-7KQ2M", "Jane Doe", "jane@example.com", 45.0).
				AddRow(7, "A2", "VEX-7KQ2M", "Jane Doe", "jane@example.com", 45.0))

		err := f.reconciler.ApplyCallback(ctx, signedWebhook(t, "test-checksum-key", "00", true, successData))
		require.NoError(t, err)

		booked := f.publisher.eventsOfType(events.TypeSeatsBooked)
		require.Len(t, booked, 1)
		assert.Equal(t, []string{"A1", "A2"}, booked[0].Seats)
		assert.Equal(t, "VEX-7KQ2M", booked[0].BookingCode)

		f.mailer.waitForSend(t)
		f.mailer.mu.Lock()
		require.Len(t, f.mailer.tickets, 1)
		assert.InDelta(t, 90.0, f.mailer.tickets[0].TotalPrice, 0.001)
		f.mailer.mu.Unlock()
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Delivery Is Silent", func(t *testing.T) {
		f := newReconcilerFixture(t)
		defer f.close()

		// Conditional update matches nothing: the payment was applied by
		// an earlier delivery
		f.mock.ExpectQuery(`UPDATE bookings`).
			WithArgs(int64(123456789)).
			WillReturnRows(sqlmock.NewRows([]string{
				"trip_id", "seat_number", "booking_code", "passenger_name", "contact_email", "price",
			}))

		err := f.reconciler.ApplyCallback(ctx, signedWebhook(t, "test-checksum-key", "00", true, successData))
		require.NoError(t, err)

		assert.Empty(t, f.publisher.published)
		assert.Zero(t, f.mailer.ticketCount())
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Invalid Signature Touches Nothing", func(t *testing.T) {
		f := newReconcilerFixture(t)
		defer f.close()

		err := f.reconciler.ApplyCallback(ctx, signedWebhook(t, "attacker-key", "00", true, successData))
		assert.ErrorIs(t, err, models.ErrPaymentVerificationFailed)

		assert.Empty(t, f.publisher.published)
		assert.Zero(t, f.mailer.ticketCount())
		// no database expectations were registered: any query would fail
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Unsuccessful Payment Is Ignored", func(t *testing.T) {
		f := newReconcilerFixture(t)
		defer f.close()

		err := f.reconciler.ApplyCallback(ctx, signedWebhook(t, "test-checksum-key", "01", false, successData))
		require.NoError(t, err)

		assert.Empty(t, f.publisher.published)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}
