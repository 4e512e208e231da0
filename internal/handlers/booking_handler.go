package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vexbus/booking-backend/internal/models"
	"github.com/vexbus/booking-backend/internal/services"
)

// BookingHandler serves the booking commit, lookup, cancel and
// seat-change endpoints.
type BookingHandler struct {
	bookingService *services.BookingService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		logger:         logger,
	}
}

// Create handles POST /api/v1/bookings
// Commits held seats into durable PENDING_PAYMENT bookings and returns
// the payment URL. A 409 lists the seats that lost the race.
func (h *BookingHandler) Create(c *gin.Context) {
	var req models.CommitBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.bookingService.Commit(c.Request.Context(), &req)
	if err != nil {
		var conflict *models.SeatConflictError
		switch {
		case errors.As(err, &conflict):
			c.JSON(http.StatusConflict, gin.H{
				"error":             "Some seats were just booked by someone else",
				"unavailable_seats": conflict.TakenSeats,
			})
		case errors.Is(err, models.ErrTripNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
		case errors.Is(err, models.ErrTripDeparted):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Trip has already departed"})
		default:
			h.logger.WithError(err).Error("Failed to create booking")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Lookup handles GET /api/v1/bookings/lookup?code=&email=
func (h *BookingHandler) Lookup(c *gin.Context) {
	code := c.Query("code")
	email := c.Query("email")
	if code == "" || email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and email query parameters are required"})
		return
	}

	group, err := h.bookingService.Lookup(code, email)
	if err != nil {
		if errors.Is(err, models.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to look up booking")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up booking"})
		return
	}

	c.JSON(http.StatusOK, group)
}

// Cancel handles POST /api/v1/bookings/:id/cancel
// PENDING_PAYMENT bookings are cancelled outright; PAID bookings are
// refunded at the partial rate. Closed within 24 hours of departure.
func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req models.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	result, err := h.bookingService.Cancel(c.Request.Context(), id, req.ContactEmail)
	if err != nil {
		h.respondBookingError(c, err, "Failed to cancel booking")
		return
	}

	c.JSON(http.StatusOK, result)
}

// ChangeSeat handles POST /api/v1/bookings/:id/change-seat
func (h *BookingHandler) ChangeSeat(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req models.ChangeSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	if err := h.bookingService.ChangeSeat(c.Request.Context(), id, req.ContactEmail, req.NewSeat); err != nil {
		var conflict *models.SeatConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, gin.H{
				"error":             "The new seat is already booked",
				"unavailable_seats": conflict.TakenSeats,
			})
			return
		}
		if errors.Is(err, models.ErrSeatUnchanged) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "New seat is the same as the current seat"})
			return
		}
		h.respondBookingError(c, err, "Failed to change seat")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Seat changed successfully"})
}

func (h *BookingHandler) respondBookingError(c *gin.Context, err error, logMessage string) {
	switch {
	case errors.Is(err, models.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.Is(err, models.ErrBookingAlreadyFinal):
		c.JSON(http.StatusConflict, gin.H{"error": "Booking is already cancelled or refunded"})
	case errors.Is(err, models.ErrCancelWindowClosed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Changes are not allowed within 24 hours of departure"})
	default:
		h.logger.WithError(err).Error(logMessage)
		c.JSON(http.StatusInternalServerError, gin.H{"error": logMessage})
	}
}

func bookingIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return uuid.Nil, false
	}
	return id, true
}
