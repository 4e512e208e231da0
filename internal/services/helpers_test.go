package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vexbus/booking-backend/internal/events"
	"github.com/vexbus/booking-backend/pkg/mailer"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakePublisher records published events in memory.
type fakePublisher struct {
	mu         sync.Mutex
	published  []*events.SeatEvent
	publishErr error
}

func (p *fakePublisher) Publish(_ context.Context, event *events.SeatEvent) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) eventsOfType(eventType string) []*events.SeatEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	matched := []*events.SeatEvent{}
	for _, event := range p.published {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// fakeMailer records notifications and signals on a channel so tests can
// wait for fire-and-forget sends.
type fakeMailer struct {
	mu            sync.Mutex
	tickets       []*mailer.Ticket
	cancellations []*mailer.Cancellation
	reminders     []*mailer.Reminder
	sent          chan struct{}
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: make(chan struct{}, 16)}
}

func (m *fakeMailer) SendTicket(_ context.Context, ticket *mailer.Ticket) error {
	m.mu.Lock()
	m.tickets = append(m.tickets, ticket)
	m.mu.Unlock()
	m.sent <- struct{}{}
	return nil
}

func (m *fakeMailer) SendCancellation(_ context.Context, cancellation *mailer.Cancellation) error {
	m.mu.Lock()
	m.cancellations = append(m.cancellations, cancellation)
	m.mu.Unlock()
	m.sent <- struct{}{}
	return nil
}

func (m *fakeMailer) SendReminder(_ context.Context, reminder *mailer.Reminder) error {
	m.mu.Lock()
	m.reminders = append(m.reminders, reminder)
	m.mu.Unlock()
	m.sent <- struct{}{}
	return nil
}

func (m *fakeMailer) waitForSend(t *testing.T) {
	t.Helper()
	select {
	case <-m.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func (m *fakeMailer) ticketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}

// fakeGateway stubs the payment gateway for booking flow tests.
type fakeGateway struct {
	link        *PaymentLinkResponse
	createErr   error
	createCalls int

	verifyResult *WebhookResult
	verifyErr    error
}

func (g *fakeGateway) CreatePaymentLink(_ context.Context, _ *PaymentLinkRequest) (*PaymentLinkResponse, error) {
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.link, nil
}

func (g *fakeGateway) VerifyWebhook(_ []byte) (*WebhookResult, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.verifyResult, nil
}

// failingStore simulates a lock store outage.
type failingStore struct{}

func (failingStore) Acquire(context.Context, int64, string, string, time.Duration) (bool, error) {
	return false, fmt.Errorf("connection refused")
}

func (failingStore) Release(context.Context, int64, string, string) (bool, error) {
	return false, fmt.Errorf("connection refused")
}

func (failingStore) Owner(context.Context, int64, string) (string, error) {
	return "", fmt.Errorf("connection refused")
}

func (failingStore) ActiveLocks(context.Context, int64) ([]string, error) {
	return nil, fmt.Errorf("connection refused")
}

func (failingStore) Close() error { return nil }

// signedWebhook builds a gateway callback whose signature matches the
// canonical sorted key=value form under the given checksum key. Data
// values are limited to strings and integers, which cover the fields the
// reconciler reads.
func signedWebhook(t *testing.T, checksumKey, code string, success bool, data map[string]interface{}) []byte {
	t.Helper()

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}

	canonical := ""
	for i, key := range keys {
		if i > 0 {
			canonical += "&"
		}
		canonical += fmt.Sprintf("%s=%v", key, data[key])
	}

	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write([]byte(canonical))
	signature := hex.EncodeToString(mac.Sum(nil))

	payload, err := json.Marshal(map[string]interface{}{
		"code":      code,
		"desc":      "success",
		"success":   success,
		"data":      data,
		"signature": signature,
	})
	if err != nil {
		t.Fatalf("failed to marshal webhook payload: %v", err)
	}
	return payload
}
