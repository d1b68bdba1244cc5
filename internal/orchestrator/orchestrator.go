// Package orchestrator runs payment attempts end to end: resolve the
// gateway, register the attempt, authenticate, sign, execute, report.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sajilopay/payment-core/internal/domain"
	"github.com/sajilopay/payment-core/internal/gateway"
	"github.com/sajilopay/payment-core/internal/registry"
	"github.com/sajilopay/payment-core/internal/reporter"
	"github.com/sajilopay/payment-core/internal/signature"
	"github.com/sajilopay/payment-core/pkg/logger"
	"github.com/sajilopay/payment-core/pkg/telemetry"
)

// Orchestrator coordinates one payment attempt per merchant reference
// across the gateway factory, the attempt registry, and the result
// reporter.
type Orchestrator struct {
	factory *gateway.Factory
	reg     *registry.Registry
	rep     reporter.Reporter
}

func New(factory *gateway.Factory, reg *registry.Registry, rep reporter.Reporter) *Orchestrator {
	if rep == nil {
		rep = reporter.Nop{}
	}
	return &Orchestrator{factory: factory, reg: reg, rep: rep}
}

// Process runs a payment attempt and blocks until it resolves. Failures
// before the transaction exists (validation, unsupported combination,
// duplicate reference, authentication) return an error and leave no
// registered attempt; everything after that resolves into a result.
func (o *Orchestrator) Process(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	att, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.drive(ctx, att), nil
}

// Start begins a payment attempt and drives it in the background,
// returning the live attempt so the caller can await the transaction
// handle and route signals. The attempt outlives the caller's context.
func (o *Orchestrator) Start(ctx context.Context, req *domain.PaymentRequest) (*registry.Attempt, error) {
	att, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	go o.drive(context.WithoutCancel(ctx), att)
	return att, nil
}

// Lookup returns the live attempt for a merchant reference.
func (o *Orchestrator) Lookup(ref string) (*registry.Attempt, error) {
	return o.reg.Lookup(ref)
}

// begin performs the pre-execution phase: validate the request, resolve
// the gateway, take the merchant-reference lease, authenticate, and
// sign the transaction fields.
func (o *Orchestrator) begin(ctx context.Context, req *domain.PaymentRequest) (*registry.Attempt, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.begin")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Reason: "invalid payment request", Err: err}
	}

	telemetry.SetSpanAttributes(ctx,
		attribute.String("payment.provider", string(req.Provider)),
		attribute.String("payment.method", string(req.Method)),
		attribute.String("payment.merchant_ref", req.MerchantRef),
	)

	gw, err := o.factory.Resolve(req.Provider, req.Method)
	if err != nil {
		return nil, err
	}

	pc := &domain.PaymentContext{
		MerchantRef:     req.MerchantRef,
		Amount:          req.Amount,
		TransactionTime: req.TransactionTime,
		ReturnURL:       req.ReturnURL,
		MobileNumber:    req.MobileNumber,
	}
	if pc.TransactionTime == "" {
		pc.TransactionTime = domain.Timestamp(time.Now())
	}

	att, err := o.reg.Begin(ctx, req.MerchantRef, req.Provider, req.Method, gw.NewExecution(), pc)
	if err != nil {
		return nil, err
	}

	token, err := gw.Authenticate(ctx)
	if err != nil {
		o.reg.End(ctx, req.MerchantRef)
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	pc.AuthToken = token

	canonical := signature.Fields{
		"Amount":            strconv.FormatInt(pc.Amount, 10),
		"DateTimeLocalTrxn": pc.TransactionTime,
		"MerchantRef":       pc.MerchantRef,
	}.Canonical()
	pc.Signature = gw.GenerateSignature(gw.Secret(), canonical)

	return att, nil
}

// drive executes a registered attempt to resolution, reports the
// result, and frees the merchant reference.
func (o *Orchestrator) drive(ctx context.Context, att *registry.Attempt) *domain.PaymentResult {
	defer o.reg.End(ctx, att.MerchantRef)

	res := o.execute(ctx, att)
	o.report(ctx, att, res)
	return res
}

// execute runs the attempt's state machine. A panic inside a gateway is
// normalized into an error result instead of crashing the process.
func (o *Orchestrator) execute(ctx context.Context, att *registry.Attempt) (res *domain.PaymentResult) {
	ctx, span := telemetry.StartSpan(ctx, "payment.execute")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("payment execution panic: %v", r)
			logger.Get().Error("recovered from gateway panic",
				zap.String("merchant_ref", att.MerchantRef),
				zap.String("provider", string(att.Provider)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			telemetry.SetSpanError(ctx, err)
			res = domain.Failed(err)
		}
	}()

	return att.Execution.Run(ctx, att.Context)
}

func (o *Orchestrator) report(ctx context.Context, att *registry.Attempt, res *domain.PaymentResult) {
	rec := reporter.NewRecord(att.ID, att.MerchantRef, att.Provider, att.Method, att.Context.Amount, res)
	if err := o.rep.Report(ctx, rec); err != nil {
		// Delivery is best effort at this layer; the outbox reporter
		// only fails when the store itself is down.
		logger.Get().Warn("payment result not delivered",
			zap.String("merchant_ref", att.MerchantRef),
			zap.String("status", string(res.Status)),
			zap.Error(err))
	}
}
