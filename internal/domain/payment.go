package domain

import (
	"errors"
	"time"
)

// Provider identifies a payment provider integration.
type Provider string

const (
	ProviderFonepay Provider = "fonepay"
	ProviderSmartQR Provider = "smartqr"
)

// Method identifies a payment method offered by a provider.
type Method string

const (
	MethodCard   Method = "card"
	MethodWallet Method = "wallet"
)

// TimestampLayout is the provider-agreed transaction timestamp format
// (yyyyMMddHHmmss, digits only).
const TimestampLayout = "20060102150405"

// Timestamp formats t in the provider-agreed transaction time convention.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// PaymentRequest is the immutable input of one confirmation attempt.
// It is created once per user confirmation action and never mutated.
type PaymentRequest struct {
	Provider        Provider `json:"provider"`
	Method          Method   `json:"method"`
	MerchantRef     string   `json:"merchant_ref"`
	Amount          int64    `json:"amount"` // minor currency units, > 0
	TransactionTime string   `json:"transaction_time"`
	Description     string   `json:"description,omitempty"`
	ReturnURL       string   `json:"return_url,omitempty"`
	MobileNumber    string   `json:"mobile_number,omitempty"`
}

// Validate checks the request fields that every gateway relies on.
func (r *PaymentRequest) Validate() error {
	if r.Provider == "" {
		return errors.New("provider is required")
	}
	if r.Method == "" {
		return errors.New("method is required")
	}
	if r.MerchantRef == "" {
		return errors.New("merchant_ref is required")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if r.TransactionTime != "" {
		if _, err := time.Parse(TimestampLayout, r.TransactionTime); err != nil {
			return errors.New("transaction_time must be yyyyMMddHHmmss")
		}
	}
	return nil
}

// PaymentContext is the gateway-internal state derived from a request.
// It is owned exclusively by the active execution for the duration of
// one attempt and discarded on resolution.
type PaymentContext struct {
	MerchantRef     string
	Amount          int64
	TransactionTime string
	Signature       string
	AuthToken       string
	ReturnURL       string
	MobileNumber    string
}

// RenderLocal is the sentinel redirect target of configuration-driven
// providers: the handle carries a SurfaceConfig and no external URL.
const RenderLocal = "local"

// TransactionHandle is what a gateway's creation step yields: either an
// invoice with an external redirect target, or a signed configuration
// bundle to be rendered locally by the embedded surface.
type TransactionHandle struct {
	InvoiceID   string         `json:"invoice_id"`
	RedirectURL string         `json:"redirect_url"`
	Config      *SurfaceConfig `json:"config,omitempty"`
}

// RendersLocally reports whether the handle is a configuration bundle
// for the embedded surface rather than an external redirect.
func (h *TransactionHandle) RendersLocally() bool {
	return h.RedirectURL == RenderLocal
}

// SurfaceConfig is the signed bundle handed to the embedded execution
// surface of a configuration-driven provider.
type SurfaceConfig struct {
	OrderID        string `json:"order_id"`
	MerchantID     string `json:"merchant_id"`
	TerminalID     string `json:"terminal_id"`
	Signature      string `json:"signature"`
	Timestamp      string `json:"timestamp"`
	Amount         int64  `json:"amount"`
	MerchantRef    string `json:"merchant_ref"`
	MethodSelector int    `json:"method_selector"`
}

// CompletionPayload is the defensively-decoded shape of a completion
// signal. Every field is optional; absent fields stay zero-valued.
type CompletionPayload struct {
	SystemReference  string `json:"SystemReference,omitempty"`
	NetworkReference string `json:"NetworkReference,omitempty"`
	PaidThrough      string `json:"PaidThrough,omitempty"`
	StatusLabel      string `json:"Status,omitempty"`
	Amount           string `json:"Amount,omitempty"`
}

// State is the per-attempt execution state.
type State string

const (
	StateCreated              State = "created"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateResolvedSuccess      State = "resolved_success"
	StateResolvedError        State = "resolved_error"
	StateResolvedCancelled    State = "resolved_cancelled"
)

// Terminal reports whether s is an absorbing state.
func (s State) Terminal() bool {
	return s == StateResolvedSuccess || s == StateResolvedError || s == StateResolvedCancelled
}

// ResultStatus tags the outcome of a resolved attempt.
type ResultStatus string

const (
	ResultSuccess   ResultStatus = "success"
	ResultError     ResultStatus = "error"
	ResultCancelled ResultStatus = "cancelled"
)

// PaymentResult is the single normalized outcome type crossing the
// core/caller boundary. Immutable once constructed.
type PaymentResult struct {
	Status      ResultStatus `json:"status"`
	InvoiceID   string       `json:"invoice_id,omitempty"`
	ExternalRef string       `json:"external_ref,omitempty"`
	StatusLabel string       `json:"status_label,omitempty"`
	Message     string       `json:"message,omitempty"`
	Retryable   bool         `json:"retryable,omitempty"`
}

// Succeeded creates a success result.
func Succeeded(invoiceID, externalRef, statusLabel string) *PaymentResult {
	return &PaymentResult{
		Status:      ResultSuccess,
		InvoiceID:   invoiceID,
		ExternalRef: externalRef,
		StatusLabel: statusLabel,
	}
}

// Failed creates an error result, classifying retryability from err.
func Failed(err error) *PaymentResult {
	return &PaymentResult{
		Status:    ResultError,
		Message:   err.Error(),
		Retryable: Retryable(err),
	}
}

// Cancelled creates a user-cancellation result. Cancellation is a
// distinct outcome and is never coerced into an error.
func Cancelled() *PaymentResult {
	return &PaymentResult{Status: ResultCancelled, StatusLabel: "cancelled_by_user"}
}
