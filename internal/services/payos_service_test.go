package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexbus/booking-backend/internal/config"
	"github.com/vexbus/booking-backend/internal/models"
)

func testPaymentConfig(baseURL string) *config.PaymentConfig {
	return &config.PaymentConfig{
		Environment: "sandbox",
		BaseURL:     baseURL,
		ClientID:    "test-client",
		APIKey:      "test-api-key",
		ChecksumKey: "test-checksum-key",
		ReturnURL:   "http://localhost:3000/payment/success",
		CancelURL:   "http://localhost:3000/payment/cancel",
	}
}

func TestCreatePaymentLink(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var received payosCreateRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/payment-requests", r.URL.Path)
			assert.Equal(t, "test-client", r.Header.Get("x-client-id"))
			assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"code":"00","desc":"success","data":{"checkoutUrl":"https://pay.example.com/abc","paymentLinkId":"link-abc"}}`)
		}))
		defer server.Close()

		service := NewPayOSService(testPaymentConfig(server.URL), testLogger())

		link, err := service.CreatePaymentLink(context.Background(), &PaymentLinkRequest{
			OrderCode:   123456789,
			Amount:      90,
			Description: "VEX-7KQ2M",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/abc", link.CheckoutURL)
		assert.Equal(t, "link-abc", link.PaymentLinkID)

		// Request signature covers the five fields in alphabetical order
		expected := "amount=90&cancelUrl=http://localhost:3000/payment/cancel&description=VEX-7KQ2M&orderCode=123456789&returnUrl=http://localhost:3000/payment/success"
		mac := hmac.New(sha256.New, []byte("test-checksum-key"))
		mac.Write([]byte(expected))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), received.Signature)
	})

	t.Run("Gateway Rejects Order", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"code":"231","desc":"duplicate order code","data":{}}`)
		}))
		defer server.Close()

		service := NewPayOSService(testPaymentConfig(server.URL), testLogger())

		link, err := service.CreatePaymentLink(context.Background(), &PaymentLinkRequest{OrderCode: 1, Amount: 10})
		assert.Error(t, err)
		assert.Nil(t, link)
		assert.Contains(t, err.Error(), "duplicate order code")
	})

	t.Run("HTTP Error Status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		service := NewPayOSService(testPaymentConfig(server.URL), testLogger())

		link, err := service.CreatePaymentLink(context.Background(), &PaymentLinkRequest{OrderCode: 1, Amount: 10})
		assert.Error(t, err)
		assert.Nil(t, link)
	})

	t.Run("Not Configured", func(t *testing.T) {
		cfg := testPaymentConfig("http://unused")
		cfg.ChecksumKey = ""
		service := NewPayOSService(cfg, testLogger())

		link, err := service.CreatePaymentLink(context.Background(), &PaymentLinkRequest{OrderCode: 1, Amount: 10})
		assert.Error(t, err)
		assert.Nil(t, link)
		assert.Contains(t, err.Error(), "not configured")
	})
}

func TestVerifyWebhook(t *testing.T) {
	service := NewPayOSService(testPaymentConfig("http://unused"), testLogger())

	t.Run("Valid Signature", func(t *testing.T) {
		payload := signedWebhook(t, "test-checksum-key", "00", true, map[string]interface{}{
			"orderCode": 123456789,
			"amount":    90,
			"reference": "FT2026123",
		})

		result, err := service.VerifyWebhook(payload)
		require.NoError(t, err)
		assert.Equal(t, "00", result.Code)
		assert.True(t, result.Success)
		assert.Equal(t, int64(123456789), result.OrderCode)
		assert.Equal(t, int64(90), result.Amount)
		assert.Equal(t, "FT2026123", result.Reference)
	})

	t.Run("Wrong Checksum Key", func(t *testing.T) {
		payload := signedWebhook(t, "attacker-key", "00", true, map[string]interface{}{
			"orderCode": 123456789,
			"amount":    90,
		})

		result, err := service.VerifyWebhook(payload)
		assert.ErrorIs(t, err, models.ErrPaymentVerificationFailed)
		assert.Nil(t, result)
	})

	t.Run("Tampered Data", func(t *testing.T) {
		payload := signedWebhook(t, "test-checksum-key", "00", true, map[string]interface{}{
			"orderCode": 123456789,
			"amount":    90,
		})
		var envelope map[string]interface{}
		require.NoError(t, json.Unmarshal(payload, &envelope))
		envelope["data"].(map[string]interface{})["amount"] = 9000
		modified, err := json.Marshal(envelope)
		require.NoError(t, err)

		result, err := service.VerifyWebhook(modified)
		assert.ErrorIs(t, err, models.ErrPaymentVerificationFailed)
		assert.Nil(t, result)
	})

	t.Run("Missing Signature", func(t *testing.T) {
		result, err := service.VerifyWebhook([]byte(`{"code":"00","success":true,"data":{"orderCode":1}}`))
		assert.ErrorIs(t, err, models.ErrPaymentVerificationFailed)
		assert.Nil(t, result)
	})

	t.Run("Malformed Payload", func(t *testing.T) {
		result, err := service.VerifyWebhook([]byte(`not json`))
		assert.ErrorIs(t, err, models.ErrPaymentVerificationFailed)
		assert.Nil(t, result)
	})

	t.Run("Null Values Sign As Empty", func(t *testing.T) {
		// null fields canonicalize to key= with no value
		canonical := "amount=90&orderCode=123456789&reference="
		mac := hmac.New(sha256.New, []byte("test-checksum-key"))
		mac.Write([]byte(canonical))
		signature := hex.EncodeToString(mac.Sum(nil))

		payload := []byte(fmt.Sprintf(
			`{"code":"00","desc":"ok","success":true,"data":{"orderCode":123456789,"amount":90,"reference":null},"signature":"%s"}`,
			signature))

		result, err := service.VerifyWebhook(payload)
		require.NoError(t, err)
		assert.Equal(t, int64(123456789), result.OrderCode)
	})
}
