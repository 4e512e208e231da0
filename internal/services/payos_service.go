package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vexbus/booking-backend/internal/config"
	"github.com/vexbus/booking-backend/internal/models"
)

// PaymentLinkRequest describes the payment intent created after a
// booking commit.
type PaymentLinkRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
}

// PaymentLinkResponse is the gateway's checkout handle.
type PaymentLinkResponse struct {
	CheckoutURL   string
	PaymentLinkID string
}

// WebhookResult is the verified outcome of a gateway callback.
type WebhookResult struct {
	Code      string
	Success   bool
	OrderCode int64
	Amount    int64
	Reference string
}

// PaymentGateway creates payment intents and verifies gateway callbacks.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, req *PaymentLinkRequest) (*PaymentLinkResponse, error)
	VerifyWebhook(raw []byte) (*WebhookResult, error)
}

// PayOSService talks to the PayOS merchant API. Requests carry an
// HMAC-SHA256 signature over the alphabetically sorted key=value form,
// keyed with the merchant checksum key; webhook payloads are verified
// the same way before any state change.
type PayOSService struct {
	config     *config.PaymentConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewPayOSService creates a new PayOS gateway client
func NewPayOSService(cfg *config.PaymentConfig, logger *logrus.Logger) *PayOSService {
	return &PayOSService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// IsConfigured reports whether gateway credentials are present.
func (s *PayOSService) IsConfigured() bool {
	return s.config.ClientID != "" && s.config.APIKey != "" && s.config.ChecksumKey != ""
}

type payosCreateRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	Signature   string `json:"signature"`
}

type payosCreateResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data struct {
		CheckoutURL   string `json:"checkoutUrl"`
		PaymentLinkID string `json:"paymentLinkId"`
	} `json:"data"`
}

// CreatePaymentLink registers a payment intent and returns the hosted
// checkout URL.
func (s *PayOSService) CreatePaymentLink(ctx context.Context, req *PaymentLinkRequest) (*PaymentLinkResponse, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("payment gateway is not configured")
	}

	// Create-request signature covers exactly these five fields in
	// alphabetical key order.
	signaturePayload := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		req.Amount, s.config.CancelURL, req.Description, req.OrderCode, s.config.ReturnURL)

	body := payosCreateRequest{
		OrderCode:   req.OrderCode,
		Amount:      req.Amount,
		Description: req.Description,
		ReturnURL:   s.config.ReturnURL,
		CancelURL:   s.config.CancelURL,
		Signature:   s.sign(signaturePayload),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	url := s.config.BaseURL + "/v2/payment-requests"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", s.config.ClientID)
	httpReq.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var createResp payosCreateResponse
	if err := json.Unmarshal(respBody, &createResp); err != nil {
		return nil, fmt.Errorf("failed to parse payment response: %w", err)
	}
	if createResp.Code != "00" {
		return nil, fmt.Errorf("payment gateway rejected order %d: %s (%s)", req.OrderCode, createResp.Desc, createResp.Code)
	}

	s.logger.WithFields(logrus.Fields{
		"order_code":      req.OrderCode,
		"amount":          req.Amount,
		"payment_link_id": createResp.Data.PaymentLinkID,
	}).Info("Payment link created")

	return &PaymentLinkResponse{
		CheckoutURL:   createResp.Data.CheckoutURL,
		PaymentLinkID: createResp.Data.PaymentLinkID,
	}, nil
}

type payosWebhookEnvelope struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// VerifyWebhook checks the callback signature and extracts the outcome.
// The signature is computed over the data object's fields sorted by key,
// joined as key=value&..., with null rendered as the empty string.
func (s *PayOSService) VerifyWebhook(raw []byte) (*WebhookResult, error) {
	var envelope payosWebhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", models.ErrPaymentVerificationFailed)
	}
	if envelope.Signature == "" || len(envelope.Data) == 0 {
		return nil, fmt.Errorf("%w: missing signature or data", models.ErrPaymentVerificationFailed)
	}

	decoder := json.NewDecoder(bytes.NewReader(envelope.Data))
	decoder.UseNumber()
	var data map[string]interface{}
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: malformed data object", models.ErrPaymentVerificationFailed)
	}

	expected := s.sign(canonicalForm(data))
	if !hmac.Equal([]byte(expected), []byte(envelope.Signature)) {
		return nil, models.ErrPaymentVerificationFailed
	}

	result := &WebhookResult{
		Code:    envelope.Code,
		Success: envelope.Success,
	}
	if v, ok := data["orderCode"].(json.Number); ok {
		result.OrderCode, _ = v.Int64()
	}
	if v, ok := data["amount"].(json.Number); ok {
		result.Amount, _ = v.Int64()
	}
	if v, ok := data["reference"].(string); ok {
		result.Reference = v
	}
	return result, nil
}

func (s *PayOSService) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.config.ChecksumKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalForm renders the data object as key=value&... with keys in
// alphabetical order, matching the gateway's signing convention.
func canonicalForm(data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(canonicalValue(data[key]))
	}
	return buf.String()
}

func canonicalValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
