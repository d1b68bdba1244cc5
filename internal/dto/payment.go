package dto

import (
	"github.com/sajilopay/payment-core/internal/domain"
	"github.com/sajilopay/payment-core/internal/registry"
)

// ConfirmPaymentRequest represents a request to confirm a payment
type ConfirmPaymentRequest struct {
	Provider        domain.Provider `json:"provider" binding:"required"`
	Method          domain.Method   `json:"method" binding:"required"`
	MerchantRef     string          `json:"merchant_ref" binding:"required"`
	Amount          int64           `json:"amount" binding:"required,gt=0"`
	TransactionTime string          `json:"transaction_time,omitempty"`
	Description     string          `json:"description,omitempty"`
	ReturnURL       string          `json:"return_url,omitempty"`
	MobileNumber    string          `json:"mobile_number,omitempty"`
}

// ToPaymentRequest converts the DTO to the core request type
func (r *ConfirmPaymentRequest) ToPaymentRequest() *domain.PaymentRequest {
	return &domain.PaymentRequest{
		Provider:        r.Provider,
		Method:          r.Method,
		MerchantRef:     r.MerchantRef,
		Amount:          r.Amount,
		TransactionTime: r.TransactionTime,
		Description:     r.Description,
		ReturnURL:       r.ReturnURL,
		MobileNumber:    r.MobileNumber,
	}
}

// AttemptResponse represents a started payment attempt. Exactly one of
// RedirectURL / SurfaceConfig carries the next step for the client.
type AttemptResponse struct {
	AttemptID     string                `json:"attempt_id"`
	MerchantRef   string                `json:"merchant_ref"`
	Provider      domain.Provider       `json:"provider"`
	Method        domain.Method         `json:"method"`
	State         domain.State          `json:"state"`
	InvoiceID     string                `json:"invoice_id,omitempty"`
	RedirectURL   string                `json:"redirect_url,omitempty"`
	SurfaceConfig *domain.SurfaceConfig `json:"surface_config,omitempty"`
	Result        *domain.PaymentResult `json:"result,omitempty"`
}

// FromAttempt converts a live attempt and its handle to a response.
// The handle may be nil when the attempt has not finished creation.
func FromAttempt(att *registry.Attempt, handle *domain.TransactionHandle) *AttemptResponse {
	resp := &AttemptResponse{
		AttemptID:   att.ID,
		MerchantRef: att.MerchantRef,
		Provider:    att.Provider,
		Method:      att.Method,
		State:       att.Execution.State(),
		Result:      att.Execution.Result(),
	}
	if handle != nil {
		resp.InvoiceID = handle.InvoiceID
		if handle.RendersLocally() {
			resp.SurfaceConfig = handle.Config
		} else {
			resp.RedirectURL = handle.RedirectURL
		}
	}
	return resp
}

// FailAttemptRequest represents an error signal from the payment surface
type FailAttemptRequest struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// GatewayListResponse lists the configured provider/method combinations
type GatewayListResponse struct {
	Gateways []GatewayEntry `json:"gateways"`
	Total    int            `json:"total"`
}

// GatewayEntry is one catalog combination
type GatewayEntry struct {
	ID          string          `json:"id"`
	Provider    domain.Provider `json:"provider"`
	Method      domain.Method   `json:"method"`
	DisplayName string          `json:"display_name"`
	Enabled     bool            `json:"enabled"`
}
