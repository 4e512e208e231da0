package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vexbus/booking-backend/internal/models"
	"github.com/vexbus/booking-backend/internal/services"
)

// SeatHandler serves the seat hold, release and status endpoints.
type SeatHandler struct {
	lockService    *services.SeatLockService
	bookingService *services.BookingService
	logger         *logrus.Logger
}

// NewSeatHandler creates a new seat handler
func NewSeatHandler(lockService *services.SeatLockService, bookingService *services.BookingService, logger *logrus.Logger) *SeatHandler {
	return &SeatHandler{
		lockService:    lockService,
		bookingService: bookingService,
		logger:         logger,
	}
}

// HoldSeats handles POST /api/v1/trips/:id/seats/hold
// Acquires soft locks on all requested seats or none of them.
func (h *SeatHandler) HoldSeats(c *gin.Context) {
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	var req models.HoldSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	if len(req.Seats) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one seat is required"})
		return
	}

	result, err := h.lockService.HoldSeats(c.Request.Context(), tripID, req.Seats, req.HolderID, req.Stage)
	if err != nil {
		var unavailable *models.SeatUnavailableError
		if errors.As(err, &unavailable) {
			c.JSON(http.StatusConflict, gin.H{
				"error":             "Some seats are already held",
				"unavailable_seats": unavailable.RejectedSeats,
			})
			return
		}
		h.logger.WithError(err).Error("Failed to hold seats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hold seats"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReleaseSeats handles POST /api/v1/trips/:id/seats/release
// Best-effort: seats not owned by the holder are skipped.
func (h *SeatHandler) ReleaseSeats(c *gin.Context) {
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	var req models.ReleaseSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	released := h.lockService.ReleaseSeats(c.Request.Context(), tripID, req.Seats, req.HolderID)
	c.JSON(http.StatusOK, gin.H{"released_seats": released})
}

// SeatStatus handles GET /api/v1/trips/:id/seats
// Returns sold seats from the ledger merged with active soft locks.
func (h *SeatHandler) SeatStatus(c *gin.Context) {
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	status, err := h.bookingService.SeatStatus(c.Request.Context(), tripID, h.lockService)
	if err != nil {
		if errors.Is(err, models.ErrTripNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to get seat status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get seat status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func tripIDParam(c *gin.Context) (int64, bool) {
	tripID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || tripID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip id"})
		return 0, false
	}
	return tripID, true
}
