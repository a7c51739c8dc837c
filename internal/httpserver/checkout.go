package httpserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody bounds provider notifications; checkout events are a few kilobytes.
const maxWebhookBody = 64 << 10

const signatureHeader = "Stripe-Signature"

func (h *handlers) createCheckoutSession(c *gin.Context) {
	session, err := h.payments.CreateCheckoutSession(c.Request.Context(), principal(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// paymentWebhook needs the raw body: the signature covers the exact bytes sent.
func (h *handlers) paymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{
				StatusCode: http.StatusRequestEntityTooLarge,
				Message:    "payload too large",
			})
			return
		}
		badRequest(c, "unreadable payload")
		return
	}
	signature := c.GetHeader(signatureHeader)
	if signature == "" {
		h.logger.WarnContext(c.Request.Context(), "webhook without signature header")
	}
	if err := h.payments.ApplyWebhookEvent(c.Request.Context(), payload, signature); err != nil {
		h.logger.WarnContext(c.Request.Context(), "webhook not applied", slog.Any("error", err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
