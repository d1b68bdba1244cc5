package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajilopay/payment-core/internal/domain"
	"github.com/sajilopay/payment-core/internal/gateway"
	"github.com/sajilopay/payment-core/internal/orchestrator"
	"github.com/sajilopay/payment-core/internal/registry"
	"github.com/sajilopay/payment-core/internal/reporter"
)

var testFonepaySecret = []byte("fonepay-signing-key")

// newTestRouter wires the full payment route group over a SmartQR-only
// flow, so no test leaves the process.
func newTestRouter(t *testing.T) (*gin.Engine, *orchestrator.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	factory, err := gateway.NewFactory(gateway.DefaultCatalog(true, true), gateway.FactoryConfig{
		Fonepay: gateway.FonepayConfig{
			BaseURL:    "http://127.0.0.1:1",
			MerchantID: "11000000025",
			TerminalID: "800022",
			Username:   "merchant",
			Password:   "secret",
			Secret:     testFonepaySecret,
			Timeout:    time.Second,
		},
		SmartQR: gateway.SmartQRConfig{
			MerchantID: "22000000031",
			TerminalID: "900014",
			Secret:     []byte("smartqr-signing-key"),
		},
	})
	require.NoError(t, err)

	orch := orchestrator.New(factory, registry.New(registry.NewMemoryLeaseStore(), 0), reporter.Nop{})
	h := NewPaymentHandler(orch, factory.Catalog())

	router := gin.New()
	router.GET("/gateways", h.ListGateways)
	payments := router.Group("/payments")
	payments.POST("", h.ConfirmPayment)
	payments.GET("/:ref", h.GetAttempt)
	payments.POST("/:ref/complete", h.CompleteAttempt)
	payments.POST("/:ref/error", h.FailAttempt)
	payments.POST("/:ref/cancel", h.CancelAttempt)
	return router, orch
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func confirmBody(ref string) map[string]any {
	return map[string]any{
		"provider":     "smartqr",
		"method":       "wallet",
		"merchant_ref": ref,
		"amount":       5000,
	}
}

type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		AttemptID     string                `json:"attempt_id"`
		MerchantRef   string                `json:"merchant_ref"`
		State         domain.State          `json:"state"`
		RedirectURL   string                `json:"redirect_url"`
		SurfaceConfig *domain.SurfaceConfig `json:"surface_config"`
		Result        *domain.PaymentResult `json:"result"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestConfirmPaymentReturnsSurfaceConfig(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/payments", confirmBody("ORD-100"))

	assert.Equal(t, http.StatusAccepted, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "ORD-100", env.Data.MerchantRef)
	assert.Equal(t, domain.StateAwaitingConfirmation, env.Data.State)
	assert.NotEmpty(t, env.Data.AttemptID)
	require.NotNil(t, env.Data.SurfaceConfig)
	assert.Equal(t, 2, env.Data.SurfaceConfig.MethodSelector)
	assert.Empty(t, env.Data.RedirectURL)
}

func TestConfirmPaymentRejectsMalformedBody(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/payments", map[string]any{"provider": "smartqr"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
}

func TestConfirmPaymentRejectsUnsupportedCombination(t *testing.T) {
	router, _ := newTestRouter(t)

	body := confirmBody("ORD-101")
	body["provider"] = "fonepay"
	body["method"] = "wallet"
	w := doJSON(router, http.MethodPost, "/payments", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNSUPPORTED_GATEWAY", env.Error.Code)
}

func TestConfirmPaymentConflictsOnDuplicateReference(t *testing.T) {
	router, _ := newTestRouter(t)

	first := doJSON(router, http.MethodPost, "/payments", confirmBody("ORD-102"))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := doJSON(router, http.MethodPost, "/payments", confirmBody("ORD-102"))
	assert.Equal(t, http.StatusConflict, second.Code)
	env := decode(t, second)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)
}

func TestGetAttemptUnknownReference(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/payments/ORD-404", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompleteAttemptResolvesSuccess(t *testing.T) {
	router, orch := newTestRouter(t)

	require.Equal(t, http.StatusAccepted,
		doJSON(router, http.MethodPost, "/payments", confirmBody("ORD-103")).Code)

	w := doJSON(router, http.MethodPost, "/payments/ORD-103/complete",
		map[string]any{"SystemReference": "SYS-103", "Status": "paid"})

	assert.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data struct {
			Accepted bool                  `json:"accepted"`
			State    domain.State          `json:"state"`
			Result   *domain.PaymentResult `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Data.Accepted)
	assert.Equal(t, domain.StateResolvedSuccess, env.Data.State)
	require.NotNil(t, env.Data.Result)
	assert.Equal(t, domain.ResultSuccess, env.Data.Result.Status)
	assert.Equal(t, "SYS-103", env.Data.Result.ExternalRef)

	waitReleased(t, orch, "ORD-103")
}

func TestCancelAttemptResolvesCancelled(t *testing.T) {
	router, orch := newTestRouter(t)

	require.Equal(t, http.StatusAccepted,
		doJSON(router, http.MethodPost, "/payments", confirmBody("ORD-104")).Code)

	w := doJSON(router, http.MethodPost, "/payments/ORD-104/cancel", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data struct {
			Accepted bool                  `json:"accepted"`
			Result   *domain.PaymentResult `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Data.Accepted)
	require.NotNil(t, env.Data.Result)
	assert.Equal(t, domain.ResultCancelled, env.Data.Result.Status)

	waitReleased(t, orch, "ORD-104")
}

func TestFailAttemptCarriesSignalMessage(t *testing.T) {
	router, orch := newTestRouter(t)

	require.Equal(t, http.StatusAccepted,
		doJSON(router, http.MethodPost, "/payments", confirmBody("ORD-105")).Code)

	w := doJSON(router, http.MethodPost, "/payments/ORD-105/error",
		map[string]any{"code": "USER_TIMEOUT", "message": "surface timed out"})

	assert.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data struct {
			Result *domain.PaymentResult `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Data.Result)
	assert.Equal(t, domain.ResultError, env.Data.Result.Status)
	assert.Contains(t, env.Data.Result.Message, "USER_TIMEOUT")

	waitReleased(t, orch, "ORD-105")
}

func TestListGateways(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/gateways", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data struct {
			Total    int `json:"total"`
			Gateways []struct {
				ID       string `json:"id"`
				Provider string `json:"provider"`
			} `json:"gateways"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 3, env.Data.Total)
	assert.Len(t, env.Data.Gateways, 3)
}

// waitReleased waits for the background drive goroutine to report and
// deregister the attempt.
func waitReleased(t *testing.T, orch *orchestrator.Orchestrator, ref string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := orch.Lookup(ref); err != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("attempt %s still registered after resolution", ref)
}
