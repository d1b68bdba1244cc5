// Package strategy drives one payment attempt from creation through
// terminal resolution. An Execution is a single-use state machine owned
// by exactly one attempt; external completion signals are reconciled
// against it with a first-writer-wins rule.
package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/sajilopay/payment-core/internal/domain"
	"github.com/sajilopay/payment-core/pkg/logger"
)

// Creator is the gateway-bound function that produces the transaction
// handle for an attempt (invoice creation or local config assembly).
type Creator func(ctx context.Context, pc *domain.PaymentContext) (*domain.TransactionHandle, error)

// Verifier confirms a completion signal against the provider's status
// endpoint. Redirect-based executions verify before resolving success;
// embedded executions trust the surface payload and leave this nil.
type Verifier func(ctx context.Context, pc *domain.PaymentContext) (*domain.CompletionPayload, error)

// Execution is the per-attempt state machine. All transitions are
// serialized under one mutex, so signals take effect in arrival order
// and only the first terminal transition wins.
type Execution struct {
	create Creator
	verify Verifier

	mu     sync.Mutex
	state  domain.State
	pc     *domain.PaymentContext
	handle *domain.TransactionHandle
	result *domain.PaymentResult

	created chan struct{}                // closed when the creation phase finishes
	done    chan *domain.PaymentResult   // buffered 1, written exactly once
}

// NewRedirect creates an execution for a redirect-based gateway. The
// verifier is consulted before a completion signal is allowed to
// resolve the attempt as success.
func NewRedirect(create Creator, verify Verifier) *Execution {
	return &Execution{
		create:  create,
		verify:  verify,
		state:   domain.StateCreated,
		created: make(chan struct{}),
		done:    make(chan *domain.PaymentResult, 1),
	}
}

// NewEmbedded creates an execution for a configuration-driven gateway
// whose embedded surface reports outcomes through callbacks.
func NewEmbedded(create Creator) *Execution {
	return NewRedirect(create, nil)
}

// Run executes the attempt to a terminal state and returns its result.
// It blocks without polling: after a successful creation it suspends
// until a signal resolves the attempt or ctx is cancelled. Context
// cancellation surfaces as a retryable error outcome.
func (e *Execution) Run(ctx context.Context, pc *domain.PaymentContext) *domain.PaymentResult {
	e.mu.Lock()
	e.pc = pc
	e.mu.Unlock()

	handle, err := e.create(ctx, pc)

	e.mu.Lock()
	if err != nil {
		// Failed creation never enters the confirmation phase.
		e.resolveLocked(domain.Failed(err))
		e.mu.Unlock()
		close(e.created)
		return <-e.done
	}
	e.handle = handle
	e.state = domain.StateAwaitingConfirmation
	e.mu.Unlock()
	close(e.created)

	select {
	case res := <-e.done:
		return res
	case <-ctx.Done():
		e.failFrom(ctx, ctx.Err())
		return <-e.done
	}
}

// AwaitHandle blocks until the creation phase finishes and returns the
// transaction handle, or the creation error if the attempt resolved
// before a handle existed.
func (e *Execution) AwaitHandle(ctx context.Context) (*domain.TransactionHandle, error) {
	select {
	case <-e.created:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handle == nil {
		if e.result != nil {
			return nil, errors.New(e.result.Message)
		}
		return nil, domain.ErrCreationFailed
	}
	return e.handle, nil
}

// State returns a snapshot of the current attempt state.
func (e *Execution) State() domain.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Result returns the terminal result, or nil while unresolved.
func (e *Execution) Result() *domain.PaymentResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Complete handles a completion signal. The raw payload is decoded
// defensively: absent optional fields default, a structurally invalid
// payload resolves the attempt as a non-retryable error. Returns false
// if the signal was dropped (attempt not awaiting confirmation).
func (e *Execution) Complete(ctx context.Context, raw []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.acceptingLocked("complete") {
		return false
	}

	var payload domain.CompletionPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			e.resolveLocked(domain.Failed(&domain.ValidationError{Reason: "unparseable completion payload", Err: err}))
			return true
		}
	}

	if e.verify != nil {
		verified, err := e.verify(ctx, e.pc)
		if err != nil {
			e.resolveLocked(domain.Failed(err))
			return true
		}
		if verified.SystemReference != "" {
			payload.SystemReference = verified.SystemReference
		}
		if verified.StatusLabel != "" {
			payload.StatusLabel = verified.StatusLabel
		}
	}

	invoiceID := e.pc.MerchantRef
	if e.handle != nil && e.handle.InvoiceID != "" {
		invoiceID = e.handle.InvoiceID
	}
	e.resolveLocked(domain.Succeeded(invoiceID, payload.SystemReference, payload.StatusLabel))
	return true
}

// Fail handles an explicit error signal or an internal fault surfaced
// during confirmation handling. Returns false if dropped.
func (e *Execution) Fail(ctx context.Context, err error) bool {
	return e.failFrom(ctx, err)
}

// Cancel handles an explicit user-cancellation signal. Cancellation is
// a distinct terminal outcome, never reported as an error. Returns
// false if dropped.
func (e *Execution) Cancel(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.acceptingLocked("cancel") {
		return false
	}
	e.resolveLocked(domain.Cancelled())
	return true
}

func (e *Execution) failFrom(ctx context.Context, err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.acceptingLocked("error") {
		return false
	}
	e.resolveLocked(domain.Failed(err))
	return true
}

// acceptingLocked reports whether an external signal may transition the
// attempt. Late signals after a terminal state are dropped and logged,
// never re-resolved.
func (e *Execution) acceptingLocked(kind string) bool {
	if e.state == domain.StateAwaitingConfirmation {
		return true
	}
	ref := ""
	if e.pc != nil {
		ref = e.pc.MerchantRef
	}
	logger.Get().Warn("dropping payment signal",
		zap.String("signal", kind),
		zap.String("merchant_ref", ref),
		zap.String("state", string(e.state)),
	)
	return false
}

// resolveLocked performs the single terminal transition. Callers hold
// the mutex and have already established that the attempt is live.
func (e *Execution) resolveLocked(res *domain.PaymentResult) {
	switch res.Status {
	case domain.ResultSuccess:
		e.state = domain.StateResolvedSuccess
	case domain.ResultCancelled:
		e.state = domain.StateResolvedCancelled
	default:
		e.state = domain.StateResolvedError
	}
	e.result = res
	e.done <- res
}
