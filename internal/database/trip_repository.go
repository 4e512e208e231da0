package database

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vexbus/booking-backend/internal/models"
)

// TripRepository reads trip rows. Trip management is owned by another
// service; this one only prices bookings and enforces departure cutoffs.
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// GetByID fetches a trip without locking.
func (r *TripRepository) GetByID(id int64) (*models.Trip, error) {
	query := `
		SELECT id, origin, destination, departure_time, price, seat_capacity, bus_plate
		FROM trips WHERE id = $1`

	var trip models.Trip
	if err := r.db.Get(&trip, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// GetForUpdateTx locks the trip row for the duration of the transaction.
// Locking the trip before the seat availability check serializes commits
// on the same trip, so two inserts for a never-booked seat cannot slip
// past each other's FOR UPDATE scan.
func (r *TripRepository) GetForUpdateTx(tx *sqlx.Tx, id int64) (*models.Trip, error) {
	query := `
		SELECT id, origin, destination, departure_time, price, seat_capacity, bus_plate
		FROM trips WHERE id = $1
		FOR UPDATE`

	var trip models.Trip
	if err := tx.Get(&trip, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to lock trip: %w", err)
	}
	return &trip, nil
}
