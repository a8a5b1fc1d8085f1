package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/shenikar/cityvoice/internal/webhook"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return NewHub(logger, []string{"http://dashboard.test"})
}

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := dial(t, srv, "http://dashboard.test")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	event := webhook.IssueEvent{
		Type:    webhook.EventIssueStatusChanged,
		IssueID: uuid.New(),
		Status:  models.StatusResolved,
	}
	require.NoError(t, hub.Publish(context.Background(), event))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got webhook.IssueEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, event.Type, got.Type)
	assert.Equal(t, event.IssueID, got.IssueID)
	assert.Equal(t, models.StatusResolved, got.Status)
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, resp, err := dial(t, srv, "http://evil.test")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, hub.ClientCount())
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := dial(t, srv, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := newTestHub()
	assert.NoError(t, hub.Publish(context.Background(), webhook.IssueEvent{Type: webhook.EventIssueCreated}))
}
