package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vexbus/booking-backend/internal/models"
	"github.com/vexbus/booking-backend/internal/services"
)

// PaymentHandler receives payment gateway callbacks.
type PaymentHandler struct {
	reconciler *services.PaymentReconciler
	logger     *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(reconciler *services.PaymentReconciler, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Webhook handles POST /api/v1/payments/webhook
// The raw body is passed through untouched because the signature covers
// the exact bytes the gateway sent.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	if err := h.reconciler.ApplyCallback(c.Request.Context(), raw); err != nil {
		if errors.Is(err, models.ErrPaymentVerificationFailed) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Signature verification failed"})
			return
		}
		h.logger.WithError(err).Error("Failed to apply payment callback")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to process callback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
