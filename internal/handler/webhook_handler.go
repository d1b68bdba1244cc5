package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sajilopay/payment-core/internal/orchestrator"
	"github.com/sajilopay/payment-core/internal/signature"
	"github.com/sajilopay/payment-core/pkg/logger"
)

// WebhookHandler handles provider webhook callbacks
type WebhookHandler struct {
	orch   *orchestrator.Orchestrator
	secret []byte
}

// NewWebhookHandler creates a new WebhookHandler. The secret is the
// Fonepay signing key; webhook bodies are signed over their raw bytes
// with the provider's uppercase-hex convention.
func NewWebhookHandler(orch *orchestrator.Orchestrator, secret []byte) *WebhookHandler {
	return &WebhookHandler{
		orch:   orch,
		secret: secret,
	}
}

// fonepayWebhookEvent is the provider's server-to-server notification.
type fonepayWebhookEvent struct {
	MerchantRef string `json:"MerchantRef"`
	Status      string `json:"Status"`
	Message     string `json:"Message,omitempty"`
}

// HandleFonepayWebhook handles incoming Fonepay webhook notifications
func (h *WebhookHandler) HandleFonepayWebhook(c *gin.Context) {
	log := logger.Get()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to read webhook body: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("X-Fonepay-Signature")
	if sigHeader == "" {
		log.Warn("Missing X-Fonepay-Signature header")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing X-Fonepay-Signature header"})
		return
	}

	if !signature.Verify(h.secret, string(payload), sigHeader, signature.HexUpper) {
		log.Error("Webhook signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	var event fonepayWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Error(fmt.Sprintf("Failed to parse webhook event: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event data"})
		return
	}
	if event.MerchantRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MerchantRef is required"})
		return
	}

	att, err := h.orch.Lookup(event.MerchantRef)
	if err != nil {
		// The attempt may have resolved already. Acknowledge receipt so
		// the provider stops retrying.
		log.Info(fmt.Sprintf("Webhook for unknown or resolved attempt: merchant_ref=%s, status=%s",
			event.MerchantRef, event.Status))
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "No live attempt for this reference"})
		return
	}

	log.Info(fmt.Sprintf("Received Fonepay webhook: merchant_ref=%s, status=%s", event.MerchantRef, event.Status))

	ctx := c.Request.Context()
	switch event.Status {
	case "paid", "success":
		att.Execution.Complete(ctx, payload)
	case "failed":
		msg := event.Message
		if msg == "" {
			msg = "payment failed at the provider"
		}
		att.Execution.Fail(ctx, fmt.Errorf("provider webhook: %s", msg))
	case "cancelled":
		att.Execution.Cancel(ctx)
	default:
		log.Info(fmt.Sprintf("Unhandled webhook status: %s", event.Status))
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "Status not handled"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
