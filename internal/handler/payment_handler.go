package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sajilopay/payment-core/internal/domain"
	"github.com/sajilopay/payment-core/internal/dto"
	"github.com/sajilopay/payment-core/internal/gateway"
	"github.com/sajilopay/payment-core/internal/orchestrator"
	"github.com/sajilopay/payment-core/internal/registry"
	"github.com/sajilopay/payment-core/pkg/response"
)

// PaymentHandler handles payment HTTP endpoints
type PaymentHandler struct {
	orch    *orchestrator.Orchestrator
	catalog *gateway.Catalog
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(orch *orchestrator.Orchestrator, catalog *gateway.Catalog) *PaymentHandler {
	return &PaymentHandler{
		orch:    orch,
		catalog: catalog,
	}
}

// ConfirmPayment handles POST /payments
// Starts a payment attempt and returns the next step for the client:
// an external redirect target or a locally-rendered surface config.
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	att, err := h.orch.Start(c.Request.Context(), req.ToPaymentRequest())
	if err != nil {
		h.confirmError(c, err)
		return
	}

	handle, err := att.Execution.AwaitHandle(c.Request.Context())
	if err != nil {
		// Creation failed; the attempt already resolved into a result.
		res := att.Execution.Result()
		details := err.Error()
		if res != nil {
			details = res.Message
		}
		response.Error(c, http.StatusBadGateway, "CREATE_FAILED", "transaction creation failed", details)
		return
	}

	response.Accepted(c, dto.FromAttempt(att, handle))
}

func (h *PaymentHandler) confirmError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		response.BadRequest(c, verr.Error())
		return
	}
	if errors.Is(err, domain.ErrUnsupportedGateway) {
		response.Error(c, http.StatusBadRequest, "UNSUPPORTED_GATEWAY", err.Error(), "")
		return
	}
	if errors.Is(err, domain.ErrAttemptExists) {
		response.Conflict(c, "a payment attempt for this merchant reference is already in progress")
		return
	}
	var aerr *domain.AuthenticationError
	if errors.As(err, &aerr) {
		response.Error(c, http.StatusBadGateway, "AUTH_FAILED", "provider authentication failed", aerr.Error())
		return
	}
	response.InternalError(c, err)
}

// GetAttempt handles GET /payments/:ref
// Returns a snapshot of a live attempt.
func (h *PaymentHandler) GetAttempt(c *gin.Context) {
	att, ok := h.lookup(c)
	if !ok {
		return
	}

	var handle *domain.TransactionHandle
	if att.Execution.State() != domain.StateCreated {
		handle, _ = att.Execution.AwaitHandle(c.Request.Context())
	}
	response.Success(c, dto.FromAttempt(att, handle))
}

// CompleteAttempt handles POST /payments/:ref/complete
// Accepts the completion signal from the payment surface. The body is
// forwarded raw; missing fields fall back to their defaults.
func (h *PaymentHandler) CompleteAttempt(c *gin.Context) {
	att, ok := h.lookup(c)
	if !ok {
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "failed to read request body")
		return
	}

	accepted := att.Execution.Complete(c.Request.Context(), raw)
	h.signalResponse(c, att, accepted)
}

// FailAttempt handles POST /payments/:ref/error
// Accepts an error signal from the payment surface.
func (h *PaymentHandler) FailAttempt(c *gin.Context) {
	att, ok := h.lookup(c)
	if !ok {
		return
	}

	var req dto.FailAttemptRequest
	_ = c.ShouldBindJSON(&req)
	if req.Message == "" {
		req.Message = "payment failed on the provider surface"
	}

	signalErr := errors.New(req.Message)
	if req.Code != "" {
		signalErr = fmt.Errorf("%s: %s", req.Code, req.Message)
	}

	accepted := att.Execution.Fail(c.Request.Context(), signalErr)
	h.signalResponse(c, att, accepted)
}

// CancelAttempt handles POST /payments/:ref/cancel
// Accepts a user-cancellation signal from the payment surface.
func (h *PaymentHandler) CancelAttempt(c *gin.Context) {
	att, ok := h.lookup(c)
	if !ok {
		return
	}

	accepted := att.Execution.Cancel(c.Request.Context())
	h.signalResponse(c, att, accepted)
}

// ListGateways handles GET /gateways
// Returns the configured provider/method catalog.
func (h *PaymentHandler) ListGateways(c *gin.Context) {
	entries := h.catalog.Entries()
	out := make([]dto.GatewayEntry, len(entries))
	for i, d := range entries {
		out[i] = dto.GatewayEntry{
			ID:          d.ID,
			Provider:    d.Provider,
			Method:      d.Method,
			DisplayName: d.DisplayName,
			Enabled:     d.Enabled,
		}
	}
	response.Success(c, &dto.GatewayListResponse{Gateways: out, Total: len(out)})
}

func (h *PaymentHandler) lookup(c *gin.Context) (att *registry.Attempt, ok bool) {
	ref := c.Param("ref")
	if ref == "" {
		response.BadRequest(c, "merchant_ref is required")
		return nil, false
	}

	found, err := h.orch.Lookup(ref)
	if err != nil {
		response.NotFound(c, "no live payment attempt for this merchant reference")
		return nil, false
	}
	return found, true
}

// signalResponse acknowledges a surface signal. Dropped signals still
// acknowledge with the current state so callbacks stay idempotent.
func (h *PaymentHandler) signalResponse(c *gin.Context, att *registry.Attempt, accepted bool) {
	response.Success(c, gin.H{
		"accepted": accepted,
		"state":    att.Execution.State(),
		"result":   att.Execution.Result(),
	})
}
