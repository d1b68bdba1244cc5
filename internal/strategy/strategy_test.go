package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sajilopay/payment-core/internal/domain"
)

func testContext() *domain.PaymentContext {
	return &domain.PaymentContext{
		MerchantRef:     "R1",
		Amount:          5000,
		TransactionTime: "20260829144425",
		Signature:       "SIG",
	}
}

func okCreator(handle *domain.TransactionHandle) Creator {
	return func(ctx context.Context, pc *domain.PaymentContext) (*domain.TransactionHandle, error) {
		return handle, nil
	}
}

// runAsync starts the execution and returns a channel with its result.
func runAsync(e *Execution, pc *domain.PaymentContext) <-chan *domain.PaymentResult {
	out := make(chan *domain.PaymentResult, 1)
	go func() {
		out <- e.Run(context.Background(), pc)
	}()
	return out
}

func awaitConfirmationPhase(t *testing.T, e *Execution) {
	t.Helper()
	if _, err := e.AwaitHandle(context.Background()); err != nil {
		t.Fatalf("AwaitHandle: %v", err)
	}
	if got := e.State(); got != domain.StateAwaitingConfirmation {
		t.Fatalf("state = %s, want %s", got, domain.StateAwaitingConfirmation)
	}
}

func TestRunSuccessScenario(t *testing.T) {
	e := NewEmbedded(okCreator(&domain.TransactionHandle{InvoiceID: "R1", RedirectURL: domain.RenderLocal}))
	results := runAsync(e, testContext())
	awaitConfirmationPhase(t, e)

	if !e.Complete(context.Background(), []byte(`{"SystemReference":"SR1"}`)) {
		t.Fatal("completion signal was dropped")
	}

	res := <-results
	if res.Status != domain.ResultSuccess {
		t.Fatalf("status = %s, want success", res.Status)
	}
	if res.InvoiceID != "R1" {
		t.Errorf("invoice id = %q, want R1", res.InvoiceID)
	}
	if res.ExternalRef != "SR1" {
		t.Errorf("external ref = %q, want SR1", res.ExternalRef)
	}
}

func TestRunCreationFailureNeverAwaits(t *testing.T) {
	creationErr := &domain.TransportError{Provider: domain.ProviderFonepay, Endpoint: "/invoice", Err: errors.New("connection refused")}
	e := NewRedirect(func(ctx context.Context, pc *domain.PaymentContext) (*domain.TransactionHandle, error) {
		return nil, creationErr
	}, nil)

	res := e.Run(context.Background(), testContext())

	if res.Status != domain.ResultError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if !res.Retryable {
		t.Error("transport failure during creation should be retryable")
	}
	if got := e.State(); got != domain.StateResolvedError {
		t.Errorf("state = %s, want %s", got, domain.StateResolvedError)
	}
	if _, err := e.AwaitHandle(context.Background()); err == nil {
		t.Error("AwaitHandle should fail after creation failure")
	}
}

func TestMalformedPayloadResolvesError(t *testing.T) {
	e := NewEmbedded(okCreator(&domain.TransactionHandle{RedirectURL: domain.RenderLocal}))
	results := runAsync(e, testContext())
	awaitConfirmationPhase(t, e)

	e.Complete(context.Background(), []byte(`{"SystemReference":`))

	res := <-results
	if res.Status != domain.ResultError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if res.Retryable {
		t.Error("malformed payload must not be retryable")
	}
}

func TestMissingOptionalFieldsDefault(t *testing.T) {
	e := NewEmbedded(okCreator(&domain.TransactionHandle{RedirectURL: domain.RenderLocal}))
	results := runAsync(e, testContext())
	awaitConfirmationPhase(t, e)

	e.Complete(context.Background(), []byte(`{}`))

	res := <-results
	if res.Status != domain.ResultSuccess {
		t.Fatalf("status = %s, want success (missing fields default, not fail)", res.Status)
	}
	if res.ExternalRef != "" {
		t.Errorf("external ref = %q, want empty", res.ExternalRef)
	}
	if res.InvoiceID != "R1" {
		t.Errorf("invoice id = %q, want merchant ref fallback R1", res.InvoiceID)
	}
}

func TestCancellationIsNotError(t *testing.T) {
	e := NewEmbedded(okCreator(&domain.TransactionHandle{RedirectURL: domain.RenderLocal}))
	results := runAsync(e, testContext())
	awaitConfirmationPhase(t, e)

	if !e.Cancel(context.Background()) {
		t.Fatal("cancel signal was dropped")
	}

	res := <-results
	if res.Status != domain.ResultCancelled {
		t.Fatalf("status = %s, want cancelled", res.Status)
	}
	if res.Message != "" {
		t.Errorf("cancellation carried an error message: %q", res.Message)
	}
}

func TestFirstWriterWins(t *testing.T) {
	e := NewEmbedded(okCreator(&domain.TransactionHandle{RedirectURL: domain.RenderLocal}))
	results := runAsync(e, testContext())
	awaitConfirmationPhase(t, e)

	// Error processed first; the later completion signal must be discarded.
	if !e.Fail(context.Background(), errors.New("declined")) {
		t.Fatal("error signal was dropped")
	}
	if e.Complete(context.Background(), []byte(`{"SystemReference":"SR-LATE"}`)) {
		t.Error("stale completion signal was accepted after terminal state")
	}

	res := <-results
	if res.Status != domain.ResultError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if e.Result().ExternalRef == "SR-LATE" {
		t.Error("late completion re-resolved the attempt")
	}
}

func TestAtMostOneResolutionUnderRace(t *testing.T) {
	e := NewEmbedded(okCreator(&domain.TransactionHandle{RedirectURL: domain.RenderLocal}))
	results := runAsync(e, testContext())
	awaitConfirmationPhase(t, e)

	var wg sync.WaitGroup
	var accepted int32
	var mu sync.Mutex
	signals := []func() bool{
		func() bool { return e.Complete(context.Background(), []byte(`{"SystemReference":"SR1"}`)) },
		func() bool { return e.Fail(context.Background(), errors.New("boom")) },
		func() bool { return e.Cancel(context.Background()) },
		func() bool { return e.Complete(context.Background(), []byte(`{"SystemReference":"SR2"}`)) },
	}
	for _, sig := range signals {
		wg.Add(1)
		go func(f func() bool) {
			defer wg.Done()
			if f() {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(sig)
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("accepted signals = %d, want exactly 1", accepted)
	}

	res := <-results
	if !e.State().Terminal() {
		t.Error("attempt did not reach a terminal state")
	}
	if res != e.Result() {
		t.Error("Run result and stored result differ")
	}
}

func TestRedirectVerifierConfirmsCompletion(t *testing.T) {
	verified := &domain.CompletionPayload{SystemReference: "SYS-9", StatusLabel: "paid"}
	e := NewRedirect(
		okCreator(&domain.TransactionHandle{InvoiceID: "INV-7", RedirectURL: "https://pay.example/inv/7"}),
		func(ctx context.Context, pc *domain.PaymentContext) (*domain.CompletionPayload, error) {
			return verified, nil
		},
	)
	results := runAsync(e, testContext())
	awaitConfirmationPhase(t, e)

	e.Complete(context.Background(), nil)

	res := <-results
	if res.Status != domain.ResultSuccess {
		t.Fatalf("status = %s, want success", res.Status)
	}
	if res.ExternalRef != "SYS-9" {
		t.Errorf("external ref = %q, want verifier value SYS-9", res.ExternalRef)
	}
	if res.InvoiceID != "INV-7" {
		t.Errorf("invoice id = %q, want INV-7", res.InvoiceID)
	}
}

func TestRedirectVerifierFailureResolvesError(t *testing.T) {
	e := NewRedirect(
		okCreator(&domain.TransactionHandle{InvoiceID: "INV-8", RedirectURL: "https://pay.example/inv/8"}),
		func(ctx context.Context, pc *domain.PaymentContext) (*domain.CompletionPayload, error) {
			return nil, &domain.ValidationError{Reason: "payment not marked paid"}
		},
	)
	results := runAsync(e, testContext())
	awaitConfirmationPhase(t, e)

	e.Complete(context.Background(), nil)

	res := <-results
	if res.Status != domain.ResultError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if res.Retryable {
		t.Error("status verification mismatch must not be retryable")
	}
}

func TestCallerTimeoutIsRetryableError(t *testing.T) {
	e := NewEmbedded(okCreator(&domain.TransactionHandle{RedirectURL: domain.RenderLocal}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := e.Run(ctx, testContext())

	if res.Status != domain.ResultError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if !res.Retryable {
		t.Error("caller-imposed timeout should surface as retryable")
	}
}

func TestSignalBeforeConfirmationPhaseIsDropped(t *testing.T) {
	e := NewEmbedded(okCreator(&domain.TransactionHandle{RedirectURL: domain.RenderLocal}))

	// Run has not started; the attempt is still in its created state.
	if e.Complete(context.Background(), []byte(`{}`)) {
		t.Error("completion accepted before the confirmation phase")
	}
	if e.State() != domain.StateCreated {
		t.Errorf("state = %s, want created", e.State())
	}
}
