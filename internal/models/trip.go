package models

import "time"

// Trip represents a scheduled departure. This service reads trips to price
// bookings and enforce departure cutoffs; trip management lives elsewhere.
type Trip struct {
	ID            int64     `json:"id" db:"id"`
	Origin        string    `json:"origin" db:"origin"`
	Destination   string    `json:"destination" db:"destination"`
	DepartureTime time.Time `json:"departure_time" db:"departure_time"`
	Price         float64   `json:"price" db:"price"`
	SeatCapacity  int       `json:"seat_capacity" db:"seat_capacity"`
	BusPlate      string    `json:"bus_plate" db:"bus_plate"`
}

// SeatStatus is the merged availability view for one trip: seats sold in
// the ledger plus seats currently soft-locked in the lock store.
type SeatStatus struct {
	TripID      int64    `json:"trip_id"`
	SoldSeats   []string `json:"sold_seats"`
	LockedSeats []string `json:"locked_seats"`
}

// HoldSeatsRequest is the payload for POST /trips/:id/seats/hold.
// Stage selects the lock TTL: "browse" while picking seats on the map,
// "checkout" once passenger details entry starts.
type HoldSeatsRequest struct {
	Seats    []string `json:"seats" binding:"required"`
	HolderID string   `json:"holder_id" binding:"required"`
	Stage    string   `json:"stage"`
}

// ReleaseSeatsRequest is the payload for POST /trips/:id/seats/release.
type ReleaseSeatsRequest struct {
	Seats    []string `json:"seats" binding:"required"`
	HolderID string   `json:"holder_id" binding:"required"`
}
