package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajilopay/payment-core/internal/domain"
	"github.com/sajilopay/payment-core/internal/orchestrator"
	"github.com/sajilopay/payment-core/internal/signature"
)

func newWebhookRouter(t *testing.T) (*gin.Engine, *orchestrator.Orchestrator) {
	t.Helper()
	router, orch := newTestRouter(t)
	wh := NewWebhookHandler(orch, testFonepaySecret)
	router.POST("/webhooks/fonepay", wh.HandleFonepayWebhook)
	return router, orch
}

func postWebhook(router *gin.Engine, payload []byte, sign bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/fonepay", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if sign {
		req.Header.Set("X-Fonepay-Signature",
			signature.Sign(testFonepaySecret, string(payload), signature.HexUpper))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookRequiresSignature(t *testing.T) {
	router, _ := newWebhookRouter(t)

	w := postWebhook(router, []byte(`{"MerchantRef":"ORD-200","Status":"paid"}`), false)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	router, _ := newWebhookRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/fonepay",
		bytes.NewReader([]byte(`{"MerchantRef":"ORD-200","Status":"paid"}`)))
	req.Header.Set("X-Fonepay-Signature", "DEADBEEF")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookAcksUnknownReference(t *testing.T) {
	router, _ := newWebhookRouter(t)

	w := postWebhook(router, []byte(`{"MerchantRef":"ORD-201","Status":"paid"}`), true)

	// Unknown references are acknowledged so the provider stops retrying.
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookCompletesLiveAttempt(t *testing.T) {
	router, orch := newWebhookRouter(t)

	require.Equal(t, http.StatusAccepted,
		doJSON(router, http.MethodPost, "/payments", confirmBody("ORD-202")).Code)

	payload, err := json.Marshal(map[string]string{
		"MerchantRef":     "ORD-202",
		"Status":          "paid",
		"SystemReference": "SYS-202",
	})
	require.NoError(t, err)

	w := postWebhook(router, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)

	waitReleased(t, orch, "ORD-202")
}

func TestWebhookCancelsLiveAttempt(t *testing.T) {
	router, orch := newWebhookRouter(t)

	require.Equal(t, http.StatusAccepted,
		doJSON(router, http.MethodPost, "/payments", confirmBody("ORD-203")).Code)

	att, err := orch.Lookup("ORD-203")
	require.NoError(t, err)

	w := postWebhook(router, []byte(`{"MerchantRef":"ORD-203","Status":"cancelled"}`), true)
	assert.Equal(t, http.StatusOK, w.Code)

	res := att.Execution.Result()
	require.NotNil(t, res)
	assert.Equal(t, domain.ResultCancelled, res.Status)

	waitReleased(t, orch, "ORD-203")
}
