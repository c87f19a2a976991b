package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"main/internal/feed"
	"main/internal/session"
)

type idleFeed struct{}

func (idleFeed) SetSubscriptions(feed.Subscriptions) error { return nil }
func (idleFeed) Start()                                    {}
func (idleFeed) Stop()                                     {}
func (idleFeed) Report() feed.SubscriptionReport           { return feed.SubscriptionReport{} }

func newTestServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	manager := session.NewManager(session.Deps{
		FeedFactory: func(feed.Callbacks) feed.MarketFeed { return idleFeed{} },
	})
	hub := NewHub(manager, "test")
	server := NewServer(manager, hub, nil, "v-test")
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return ts, manager
}

func TestHealthAndVersion(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status mismatch! should be 200 but got %d", resp.StatusCode)
	}
	var health HealthResponse
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if !health.OK || health.Session.State != string(session.StateStopped) {
		t.Fatalf("health mismatch! got %+v", health)
	}
	if health.WsClientsConnected != 0 {
		t.Fatalf("client count mismatch! should be 0 but got %d", health.WsClientsConnected)
	}

	resp, err = ts.Client().Get(ts.URL + "/api/version")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	defer resp.Body.Close()
	var version VersionResponse
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&version); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if !version.OK || version.Version != "v-test" {
		t.Fatalf("version mismatch! got %+v", version)
	}
}

func TestStartRejectsBadPayloads(t *testing.T) {
	ts, manager := newTestServer(t)

	for _, tc := range []struct {
		name string
		body string
	}{
		{"malformed json", `{"tfMin": `},
		{"invalid config", `{"tfMin": 0}`},
		{"empty body", ``},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := ts.Client().Post(ts.URL+"/api/session/start", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != 400 {
				t.Fatalf("status mismatch! should be 400 but got %d", resp.StatusCode)
			}
			var apiErr session.ErrorMessage
			if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			if apiErr.Type != "error" || apiErr.Code != "VALIDATION_ERROR" || apiErr.Scope != "API" {
				t.Fatalf("error body mismatch! got %+v", apiErr)
			}
		})
	}

	if manager.Status().State != session.StateStopped {
		t.Fatalf("rejected start must have no side effects, state %s", manager.Status().State)
	}
}

func TestMethodGuards(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/session/start")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 405 {
		t.Fatalf("status mismatch! should be 405 but got %d", resp.StatusCode)
	}

	resp, err = ts.Client().Post(ts.URL+"/api/session/status", "application/json", nil)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 405 {
		t.Fatalf("status mismatch! should be 405 but got %d", resp.StatusCode)
	}
}

func TestStopWithoutSession(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/api/session/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	defer resp.Body.Close()
	var stop session.StopResponse
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&stop); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if !stop.OK || stop.SessionID != nil || stop.State != session.StateStopped {
		t.Fatalf("stop response mismatch! got %+v", stop)
	}
}

func TestWebsocketHelloAndSnapshot(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	var hello HelloMessage
	if err := sonic.ConfigFastest.Unmarshal(first, &hello); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if hello.Type != "hello" || hello.ProtocolVersion != 1 {
		t.Fatalf("hello mismatch! got %+v", hello)
	}

	_, second, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	var snapshot session.SnapshotMessage
	if err := sonic.ConfigFastest.Unmarshal(second, &snapshot); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if snapshot.Type != "snapshot" {
		t.Fatalf("snapshot mismatch! got type %s", snapshot.Type)
	}
	if snapshot.Session.State != session.StateStopped {
		t.Fatalf("state mismatch! should be STOPPED but got %s", snapshot.Session.State)
	}
}
