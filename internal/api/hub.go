package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"main/internal/event"
	"main/internal/session"
)

const (
	_clientQueueSize = 256
	_writeTimeout    = 10 * time.Second
	_protocolVersion = 1
	_serverName      = "bybit-paper-bot"
)

var _json = sonic.ConfigFastest

// Hub fans the session's outbound messages to websocket clients. A client
// that cannot keep up with its queue is dropped so the session never blocks
// on a slow reader.
type Hub struct {
	manager  *session.Manager
	upgrader websocket.Upgrader
	env      string

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	closed  bool
}

type hubClient struct {
	conn   *websocket.Conn
	queue  *event.Queue
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub subscribes to every manager stream and starts broadcasting.
func NewHub(manager *session.Manager, env string) *Hub {
	if env == "" {
		env = "local"
	}
	h := &Hub{
		manager: manager,
		env:     env,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 << 10,
			WriteBufferSize: 16 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}

	manager.OnTick(func(msg session.TickMessage) { h.Broadcast(msg) })
	manager.OnEventsAppend(func(msg session.EventsAppendMessage) { h.Broadcast(msg) })
	manager.OnSessionState(func(msg session.StateMessage) { h.Broadcast(msg) })
	manager.OnError(func(msg session.ErrorMessage) { h.Broadcast(msg) })
	return h
}

// ServeHTTP upgrades the connection and replays hello + full snapshot before
// the client joins the broadcast set.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Errorf("ws upgrade failed, err: %+v", err)
		return
	}

	clientCtx, clientCancel := context.WithCancel(context.Background())
	client := &hubClient{
		conn:   conn,
		queue:  event.NewQueue(_clientQueueSize),
		ctx:    clientCtx,
		cancel: clientCancel,
	}

	// hello and snapshot go in before the client joins the broadcast set so
	// they are always the first two frames.
	hello := HelloMessage{
		Type:            "hello",
		Ts:              time.Now().UnixMilli(),
		ProtocolVersion: _protocolVersion,
		Server:          ServerIdent{Name: _serverName, Env: h.env},
	}
	h.enqueue(client, hello)
	h.enqueue(client, h.manager.Snapshot())

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	logs.Infof("ws client connected, remote: %s, clients: %d", r.RemoteAddr, count)

	go client.writePump()
	go h.readPump(client)
}

// ClientCount reports the connected client count for health checks.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast marshals once and fans out without blocking.
func (h *Hub) Broadcast(message any) {
	payload, err := _json.Marshal(message)
	if err != nil {
		logs.Errorf("ws marshal failed, err: %+v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if err := client.queue.TryPublish(payload); err != nil {
			delete(h.clients, client)
			client.queue.Close()
			logs.Infof("ws client dropped, err: %v, clients: %d", err, len(h.clients))
		}
	}
}

// Close disconnects every client. The hub stays subscribed to the manager
// but broadcasts to an empty set.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		client.queue.Close()
	}
}

func (h *Hub) enqueue(client *hubClient, message any) {
	payload, err := _json.Marshal(message)
	if err != nil {
		logs.Errorf("ws marshal failed, err: %+v", err)
		return
	}
	if err := client.queue.TryPublish(payload); err != nil {
		logs.Errorf("ws initial frame dropped, err: %+v", err)
	}
}

func (h *Hub) readPump(client *hubClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()
	client.queue.Close()
	logs.Infof("ws client disconnected, clients: %d", count)
}

// writePump drains the client queue onto the socket. A write failure cancels
// the client context; only the hub may close the queue itself.
func (c *hubClient) writePump() {
	defer func() {
		c.cancel()
		_ = c.conn.Close()
	}()

	failed := false
	c.queue.Run(c.ctx, func(payload []byte) {
		if failed {
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(_writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			failed = true
			c.cancel()
		}
	})
	if !failed {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}
}
