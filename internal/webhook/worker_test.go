package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/cityvoice/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestWorker(url string, retries int) *WebhookWorker {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cfg := &config.Config{
		WebhookURL:        url,
		WebhookSecret:     "s3cret",
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: retries,
		WebhookBaseDelay:  10 * time.Millisecond,
	}
	w := NewWebhookWorker(nil, logger, cfg)
	w.sleep = func(context.Context, time.Duration) error { return nil }
	return w
}

func TestDeliver_SignsPayload(t *testing.T) {
	payload := `{"type":"issue.created"}`
	var gotSignature string
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Webhook-Signature")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := newTestWorker(srv.URL, 3)
	ok := w.deliver(context.Background(), IssueEvent{Type: EventIssueCreated, IssueID: uuid.New()}, payload)

	assert.True(t, ok)
	assert.Equal(t, payload, gotBody)
	assert.Equal(t, generateHMACSHA256(payload, "s3cret"), gotSignature)
}

func TestDeliver_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := newTestWorker(srv.URL, 3)
	ok := w.deliver(context.Background(), IssueEvent{Type: EventIssueVoted}, `{}`)

	assert.True(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDeliver_GivesUp(t *testing.T) {
	var calls int32
	var delays []time.Duration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := newTestWorker(srv.URL, 3)
	w.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	ok := w.deliver(context.Background(), IssueEvent{Type: EventIssueStatusChanged}, `{}`)

	assert.False(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, delays)
}

func TestDeliver_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		cancel() // остановка сервиса во время доставки
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w := newTestWorker(srv.URL, 5)
	w.cfg.WebhookBaseDelay = time.Hour
	w.sleep = sleepContext

	done := make(chan bool, 1)
	go func() { done <- w.deliver(ctx, IssueEvent{Type: EventIssueCreated}, `{}`) }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("deliver kept waiting after cancellation")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestDeliver_NoURL(t *testing.T) {
	w := newTestWorker("", 3)
	assert.False(t, w.deliver(context.Background(), IssueEvent{}, `{}`))
}

func TestGenerateHMACSHA256(t *testing.T) {
	// echo -n 'data' | openssl dgst -sha256 -hmac 'key'
	assert.Equal(t, "5031fe3d989c6d1537a013fa6e739da23463fdaec3b70137d828e36ace221bd0", generateHMACSHA256("data", "key"))
}
