// Package gateway holds the per-provider payment gateway contract, the
// concrete provider integrations, and the factory resolving a
// (provider, method) pair against the static catalog.
package gateway

import (
	"context"

	"github.com/sajilopay/payment-core/internal/domain"
	"github.com/sajilopay/payment-core/internal/strategy"
)

// PaymentGateway is the contract every provider variant satisfies.
type PaymentGateway interface {
	// Provider returns the provider this gateway integrates.
	Provider() domain.Provider

	// Method returns the payment method this variant serves.
	Method() domain.Method

	// Authenticate obtains a provider auth token. Signature-only
	// providers return an empty token without calling out.
	Authenticate(ctx context.Context) (string, error)

	// CreateTransaction produces the transaction handle for one
	// attempt: a provider invoice with a redirect target, or a signed
	// configuration bundle flagged to render locally.
	CreateTransaction(ctx context.Context, pc *domain.PaymentContext) (*domain.TransactionHandle, error)

	// GenerateSignature signs a canonical message with the provider's
	// fixed output encoding.
	GenerateSignature(secret []byte, canonical string) string

	// Secret returns the provider signing key (raw bytes, read-only
	// configuration).
	Secret() []byte

	// NewExecution returns a fresh per-attempt execution bound to this
	// gateway's creation function.
	NewExecution() *strategy.Execution
}

// StatusChecker is implemented by redirect-based gateways that expose a
// server-side status endpoint for confirming completion signals.
type StatusChecker interface {
	CheckStatus(ctx context.Context, pc *domain.PaymentContext) (*StatusResponse, error)
}

// StatusResponse is the structured status object of the status-check
// endpoint. Everything is optional except the flags, which default to
// false when absent.
type StatusResponse struct {
	Success          bool   `json:"success"`
	Paid             bool   `json:"paid"`
	CardUsed         bool   `json:"cardUsed"`
	WalletUsed       bool   `json:"walletUsed"`
	NetworkReference string `json:"networkReference,omitempty"`
	PaidThrough      string `json:"paidThrough,omitempty"`
	Amount           string `json:"amount,omitempty"`
	SystemReference  string `json:"systemReference,omitempty"`
}
