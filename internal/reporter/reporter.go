// Package reporter delivers final payment results to downstream
// consumers. Delivery is either direct (fire and forget against the
// merchant's result endpoint) or through a persistent outbox drained
// by a background worker.
package reporter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sajilopay/payment-core/internal/domain"
)

// Record is one delivered payment result.
type Record struct {
	ID          string              `json:"id"`
	AttemptID   string              `json:"attempt_id"`
	MerchantRef string              `json:"merchant_ref"`
	Provider    domain.Provider     `json:"provider"`
	Method      domain.Method       `json:"method"`
	Status      domain.ResultStatus `json:"status"`
	InvoiceID   string              `json:"invoice_id,omitempty"`
	ExternalRef string              `json:"external_ref,omitempty"`
	StatusLabel string              `json:"status_label,omitempty"`
	Message     string              `json:"message,omitempty"`
	Retryable   bool                `json:"retryable"`
	Amount      int64               `json:"amount"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// NewRecord builds a delivery record from a resolved attempt.
func NewRecord(attemptID, merchantRef string, provider domain.Provider, method domain.Method, amount int64, res *domain.PaymentResult) *Record {
	return &Record{
		ID:          uuid.New().String(),
		AttemptID:   attemptID,
		MerchantRef: merchantRef,
		Provider:    provider,
		Method:      method,
		Status:      res.Status,
		InvoiceID:   res.InvoiceID,
		ExternalRef: res.ExternalRef,
		StatusLabel: res.StatusLabel,
		Message:     res.Message,
		Retryable:   res.Retryable,
		Amount:      amount,
		OccurredAt:  time.Now().UTC(),
	}
}

// Reporter delivers a single result record.
type Reporter interface {
	Report(ctx context.Context, rec *Record) error
}

// Nop discards every record. Used when no result endpoint is configured.
type Nop struct{}

func (Nop) Report(context.Context, *Record) error { return nil }
