package gateway

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/sajilopay/payment-core/internal/domain"
	"github.com/sajilopay/payment-core/internal/signature"
	"github.com/sajilopay/payment-core/internal/strategy"
)

// SmartQR method selector values, as enumerated by the provider's
// embedded checkout surface.
const (
	smartQRSelectorCard   = 1
	smartQRSelectorWallet = 2
)

// SmartQRConfig holds credentials for the SmartQR integration. Secret
// is raw bytes, hex-decoded at config load.
type SmartQRConfig struct {
	MerchantID string
	TerminalID string
	Secret     []byte
}

// SmartQRGateway is the configuration-driven gateway: there is no
// server-side invoice call. Creation assembles a signed configuration
// bundle that the embedded surface renders locally, and the surface
// reports the outcome through its three callbacks.
//
// The card and wallet catalog variants share this one implementation;
// they differ only in the method selector stamped into the bundle.
type SmartQRGateway struct {
	cfg      SmartQRConfig
	method   domain.Method
	selector int
}

// NewSmartQRGateway creates the SmartQR variant for one payment method.
func NewSmartQRGateway(cfg SmartQRConfig, method domain.Method) (*SmartQRGateway, error) {
	if len(cfg.Secret) == 0 {
		return nil, domain.ErrEmptySecret
	}

	selector := smartQRSelectorCard
	if method == domain.MethodWallet {
		selector = smartQRSelectorWallet
	}

	return &SmartQRGateway{cfg: cfg, method: method, selector: selector}, nil
}

func (g *SmartQRGateway) Provider() domain.Provider { return domain.ProviderSmartQR }

func (g *SmartQRGateway) Method() domain.Method { return g.method }

// Authenticate is a no-op: SmartQR is a signature-only provider with no
// separate auth step.
func (g *SmartQRGateway) Authenticate(ctx context.Context) (string, error) {
	return "", nil
}

// GenerateSignature signs with SmartQR's base64 encoding.
func (g *SmartQRGateway) GenerateSignature(secret []byte, canonical string) string {
	return signature.Sign(secret, canonical, signature.Base64)
}

// Secret exposes the configured signing key to the orchestrator.
func (g *SmartQRGateway) Secret() []byte { return g.cfg.Secret }

// CreateTransaction assembles the signed configuration bundle. The
// returned handle's redirect target is the render-local sentinel; the
// actual configuration travels inside the handle.
func (g *SmartQRGateway) CreateTransaction(ctx context.Context, pc *domain.PaymentContext) (*domain.TransactionHandle, error) {
	orderID := uuid.New().String()
	amount := strconv.FormatInt(pc.Amount, 10)

	canonical := signature.Fields{
		"Amount":            amount,
		"DateTimeLocalTrxn": pc.TransactionTime,
		"MerchantId":        g.cfg.MerchantID,
		"MerchantRef":       pc.MerchantRef,
		"MethodSelector":    strconv.Itoa(g.selector),
		"OrderId":           orderID,
		"TerminalId":        g.cfg.TerminalID,
	}.Canonical()

	return &domain.TransactionHandle{
		InvoiceID:   pc.MerchantRef,
		RedirectURL: domain.RenderLocal,
		Config: &domain.SurfaceConfig{
			OrderID:        orderID,
			MerchantID:     g.cfg.MerchantID,
			TerminalID:     g.cfg.TerminalID,
			Signature:      g.GenerateSignature(g.cfg.Secret, canonical),
			Timestamp:      pc.TransactionTime,
			Amount:         pc.Amount,
			MerchantRef:    pc.MerchantRef,
			MethodSelector: g.selector,
		},
	}, nil
}

// CheckStatus is not part of the SmartQR protocol; completion arrives
// only through the surface callbacks. Calling it is a wiring defect.
func (g *SmartQRGateway) CheckStatus(ctx context.Context, pc *domain.PaymentContext) (*StatusResponse, error) {
	return nil, &domain.UnsupportedOperationError{Provider: domain.ProviderSmartQR, Operation: "status-check"}
}

// NewExecution binds an embedded-surface execution to this gateway.
func (g *SmartQRGateway) NewExecution() *strategy.Execution {
	return strategy.NewEmbedded(g.CreateTransaction)
}
