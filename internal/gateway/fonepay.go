package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sajilopay/payment-core/internal/domain"
	"github.com/sajilopay/payment-core/internal/signature"
	"github.com/sajilopay/payment-core/internal/strategy"
)

// FonepayConfig holds credentials and endpoints for the Fonepay
// integration. Secret is raw bytes, hex-decoded at config load.
type FonepayConfig struct {
	BaseURL    string
	MerchantID string
	TerminalID string
	Username   string
	Password   string
	Secret     []byte
	Timeout    time.Duration
}

// FonepayGateway is the redirect-based gateway: the provider creates an
// invoice server-side, the user is sent to an external page, and
// completion is confirmed through the status endpoint.
type FonepayGateway struct {
	cfg     FonepayConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewFonepayGateway creates a Fonepay gateway. Provider calls run
// through a circuit breaker so a degraded provider fails fast instead
// of tying up attempts.
func NewFonepayGateway(cfg FonepayConfig) (*FonepayGateway, error) {
	if len(cfg.Secret) == 0 {
		return nil, domain.ErrEmptySecret
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "fonepay",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &FonepayGateway{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}, nil
}

func (g *FonepayGateway) Provider() domain.Provider { return domain.ProviderFonepay }

func (g *FonepayGateway) Method() domain.Method { return domain.MethodCard }

// GenerateSignature signs with Fonepay's uppercase-hex encoding.
func (g *FonepayGateway) GenerateSignature(secret []byte, canonical string) string {
	return signature.Sign(secret, canonical, signature.HexUpper)
}

// Secret exposes the configured signing key to the orchestrator.
func (g *FonepayGateway) Secret() []byte { return g.cfg.Secret }

type fonepayTokenResponse struct {
	Token string `json:"token"`
}

// Authenticate obtains a bearer token from the merchant token endpoint.
func (g *FonepayGateway) Authenticate(ctx context.Context) (string, error) {
	body := map[string]string{
		"username": g.cfg.Username,
		"password": g.cfg.Password,
	}

	var tok fonepayTokenResponse
	if err := g.postJSON(ctx, "/merchant/token", "", body, &tok); err != nil {
		return "", &domain.AuthenticationError{Provider: domain.ProviderFonepay, Err: err}
	}
	if tok.Token == "" {
		return "", &domain.AuthenticationError{Provider: domain.ProviderFonepay, Err: fmt.Errorf("empty token in response")}
	}
	return tok.Token, nil
}

type fonepayInvoiceRequest struct {
	MerchantID        string `json:"MerchantId"`
	TerminalID        string `json:"TerminalId"`
	Amount            string `json:"Amount"`
	MerchantRef       string `json:"MerchantRef"`
	DateTimeLocalTrxn string `json:"DateTimeLocalTrxn"`
	ReturnURL         string `json:"ReturnUrl,omitempty"`
	Signature         string `json:"Signature"`
}

type fonepayInvoiceResponse struct {
	Success     bool   `json:"success"`
	InvoiceID   string `json:"invoiceId"`
	RedirectURL string `json:"redirectUrl"`
	Message     string `json:"message,omitempty"`
}

// CreateTransaction calls the invoice-creation endpoint and returns the
// redirect handle.
func (g *FonepayGateway) CreateTransaction(ctx context.Context, pc *domain.PaymentContext) (*domain.TransactionHandle, error) {
	req := fonepayInvoiceRequest{
		MerchantID:        g.cfg.MerchantID,
		TerminalID:        g.cfg.TerminalID,
		Amount:            strconv.FormatInt(pc.Amount, 10),
		MerchantRef:       pc.MerchantRef,
		DateTimeLocalTrxn: pc.TransactionTime,
		ReturnURL:         pc.ReturnURL,
		Signature:         pc.Signature,
	}

	var resp fonepayInvoiceResponse
	if err := g.postJSON(ctx, "/merchant/invoice", pc.AuthToken, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrCreationFailed, resp.Message)
	}
	if resp.RedirectURL == "" {
		return nil, &domain.ValidationError{Reason: "invoice response missing redirect url"}
	}

	return &domain.TransactionHandle{
		InvoiceID:   resp.InvoiceID,
		RedirectURL: resp.RedirectURL,
	}, nil
}

type fonepayStatusRequest struct {
	MerchantID  string `json:"MerchantId"`
	TerminalID  string `json:"TerminalId"`
	MerchantRef string `json:"MerchantRef"`
	Signature   string `json:"Signature"`
}

// CheckStatus calls the status-check endpoint for a merchant reference.
// The request is freshly signed over its identity fields.
func (g *FonepayGateway) CheckStatus(ctx context.Context, pc *domain.PaymentContext) (*StatusResponse, error) {
	canonical := signature.Fields{
		"MerchantId":  g.cfg.MerchantID,
		"TerminalId":  g.cfg.TerminalID,
		"MerchantRef": pc.MerchantRef,
	}.Canonical()

	req := fonepayStatusRequest{
		MerchantID:  g.cfg.MerchantID,
		TerminalID:  g.cfg.TerminalID,
		MerchantRef: pc.MerchantRef,
		Signature:   g.GenerateSignature(g.cfg.Secret, canonical),
	}

	var resp StatusResponse
	if err := g.postJSON(ctx, "/merchant/status", pc.AuthToken, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NewExecution binds a redirect execution to this gateway. Completion
// signals are confirmed against the status endpoint before the attempt
// resolves as success.
func (g *FonepayGateway) NewExecution() *strategy.Execution {
	return strategy.NewRedirect(g.CreateTransaction, func(ctx context.Context, pc *domain.PaymentContext) (*domain.CompletionPayload, error) {
		st, err := g.CheckStatus(ctx, pc)
		if err != nil {
			return nil, err
		}
		if !st.Paid {
			return nil, &domain.ValidationError{Reason: "status endpoint does not report the payment as paid"}
		}
		return &domain.CompletionPayload{
			SystemReference:  st.SystemReference,
			NetworkReference: st.NetworkReference,
			PaidThrough:      st.PaidThrough,
			StatusLabel:      "paid",
			Amount:           st.Amount,
		}, nil
	})
}

// postJSON performs one provider call through the circuit breaker.
// Network and HTTP-status failures surface as TransportError, bodies
// that fail to decode as ValidationError.
func (g *FonepayGateway) postJSON(ctx context.Context, path, token string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &domain.ValidationError{Reason: "encoding request body", Err: err}
	}

	raw, err := g.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return body, nil
	})
	if err != nil {
		return &domain.TransportError{Provider: domain.ProviderFonepay, Endpoint: path, Err: err}
	}

	if err := json.Unmarshal(raw.([]byte), out); err != nil {
		return &domain.ValidationError{Reason: "decoding " + path + " response", Err: err}
	}
	return nil
}
