package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/market-dot-dev/studio-sub000/internal/payment/domain"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// StripeWebhook ingests a provider delivery into the event inbox. The handler
// only verifies and records; reducers run from the scheduler, so the provider
// gets its 2xx fast.
func (s *Server) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if s.cfg.StripeWebhookSecret != "" {
		signature := c.GetHeader("Stripe-Signature")
		if _, err := webhook.ConstructEvent(body, signature, s.cfg.StripeWebhookSecret); err != nil {
			s.log.Warn("webhook signature verification failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
	}

	event, err := s.eventSvc.Record(c.Request.Context(), body)
	if err != nil {
		// Redeliveries are acknowledged so the provider stops retrying.
		if errors.Is(err, paymentdomain.ErrDuplicateEvent) {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded", "id": event.ID.String()})
}
