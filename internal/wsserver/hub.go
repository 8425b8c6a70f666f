package wsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"homepin/internal/ipc"

	"github.com/gorilla/websocket"
)

// writeDeadline is the maximum time allowed for a single WebSocket write.
const writeDeadline = 5 * time.Second

// readDeadline is the maximum time the server waits for any read activity
// (including pong responses). 90 seconds allows ~3 missed pings.
const readDeadline = 90 * time.Second

// pingInterval is the interval between server-initiated pings.
const pingInterval = 30 * time.Second

// maxReadMessageSize limits incoming frames. Icons travel base64 encoded in
// pin requests, so this matches the IPC request cap.
const maxReadMessageSize = 16 << 20

var wsUpgrader = websocket.Upgrader{
	// The server binds to 127.0.0.1 only; origin checks add nothing for a
	// local UI and break some embedded webviews.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 4 * 1024,
}

// HubOptions configures the WebSocket server.
type HubOptions struct {
	// Addr is the listen address. Use "127.0.0.1:0" for an OS-assigned port.
	Addr string
	// Executor runs decoded requests. Required.
	Executor ipc.CommandExecutor
	// Metrics, if set, is served at /metrics.
	Metrics http.Handler
}

// Hub manages a single WebSocket client that sends commands and receives
// their results.
//
// Single-connection model: a new connection replaces the existing one so a
// reloaded UI takes over cleanly. Requests still running for a replaced
// connection finish, but their responses are dropped.
//
// Lock ordering (never acquire in reverse):
//
//	writeMu -> mu
//
// mu protects conn and stopped. writeMu serializes gorilla/websocket
// writes, which are not concurrency-safe. requests.Go is only called under
// mu with stopped false, so Stop's requests.Wait never races a new request.
//
// Write failure policy: any write failure disconnects the client via
// clearIfCurrent+closeConn. The client must reconnect.
type Hub struct {
	opts HubOptions

	mu      sync.RWMutex
	conn    *websocket.Conn
	stopped bool

	writeMu sync.Mutex

	// requests tracks in-flight request goroutines across connections.
	requests sync.WaitGroup

	listener net.Listener
	server   *http.Server
	url      string

	closeOnce sync.Once
}

// NewHub creates a Hub with the given options.
// The hub is not started until Start is called.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{opts: opts}
}

// Handler returns the HTTP handler serving /ws and, when configured,
// /metrics. Start uses it; tests can mount it on an httptest server.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	if h.opts.Metrics != nil {
		mux.Handle("/metrics", h.opts.Metrics)
	}
	return mux
}

// Start begins listening on the configured address. ctx becomes the base
// context of every request; the server itself must be stopped via Stop.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return errors.New("wsserver: already started")
	}
	if h.opts.Executor == nil {
		return errors.New("wsserver: executor is required")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	h.listener = ln
	h.url = fmt.Sprintf("ws://%s/ws", ln.Addr().String())

	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("[DEBUG-WS] server error", "error", serveErr)
		}
	}()

	slog.Info("[DEBUG-WS] server started", "url", h.url)
	return nil
}

// Stop shuts down the HTTP server, closes the active connection and waits
// for in-flight requests. Safe to call multiple times.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.stopped = true
		conn := h.conn
		h.conn = nil
		h.mu.Unlock()

		if conn != nil {
			h.closeConn(conn, "hub stop")
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("wsserver: shutdown: %w", err)
			}
		}
		h.requests.Wait()

		slog.Info("[DEBUG-WS] server stopped")
	})
	return stopErr
}

// URL returns the WebSocket URL (e.g. "ws://127.0.0.1:54321/ws"), or ""
// before Start.
func (h *Hub) URL() string {
	return h.url
}

// HasActiveConnection reports whether a client is currently connected.
func (h *Hub) HasActiveConnection() bool {
	h.mu.RLock()
	active := h.conn != nil
	h.mu.RUnlock()
	return active
}

// clearIfCurrent clears the connection only if conn is still current.
// Caller must NOT hold h.mu.
func (h *Hub) clearIfCurrent(conn *websocket.Conn) bool {
	h.mu.Lock()
	isCurrent := h.conn == conn
	if isCurrent {
		h.conn = nil
	}
	h.mu.Unlock()
	return isCurrent
}

func (h *Hub) isStopped() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stopped
}

func (h *Hub) isCurrent(conn *websocket.Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn == conn
}

// closeConn closes conn. Double close is expected when several goroutines
// give up on the same connection and is logged at Debug.
func (h *Hub) closeConn(conn *websocket.Conn, reason string) {
	if closeErr := conn.Close(); closeErr != nil {
		slog.Debug("[DEBUG-WS] connection close", "reason", reason, "error", closeErr)
	}
}

// writeMessage writes one message under writeMu with a deadline. On failure
// the connection is dropped per the write failure policy.
func (h *Hub) writeMessage(conn *websocket.Conn, msgType int, payload []byte, reason string) bool {
	h.writeMu.Lock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		h.writeMu.Unlock()
		slog.Warn("[DEBUG-WS] SetWriteDeadline failed, closing connection", "error", err)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "SetWriteDeadline failure")
		return false
	}
	err := conn.WriteMessage(msgType, payload)
	if clearErr := conn.SetWriteDeadline(time.Time{}); clearErr != nil {
		slog.Debug("[DEBUG-WS] clearing write deadline failed (non-fatal)", "error", clearErr)
	}
	h.writeMu.Unlock()

	if err != nil {
		slog.Debug("[DEBUG-WS] write failed, closing connection", "reason", reason, "error", err)
		h.clearIfCurrent(conn)
		h.closeConn(conn, reason)
		return false
	}
	return true
}

// handleWS upgrades to WebSocket and runs the read pump.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	if h.opts.Executor == nil {
		http.Error(w, "no executor configured", http.StatusServiceUnavailable)
		return
	}
	if h.isStopped() {
		http.Error(w, "server stopping", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[DEBUG-WS] upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[DEBUG-WS] SetReadDeadline failed on new connection", "error", err)
		h.closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		h.closeConn(conn, "hub stopped")
		return
	}
	oldConn := h.conn
	h.conn = conn
	h.mu.Unlock()
	if oldConn != nil {
		h.closeConn(oldConn, "replaced by new connection")
	}

	slog.Info("[DEBUG-WS] client connected", "remoteAddr", conn.RemoteAddr())

	// connCtx ends with the connection; executors stop waiting on it but
	// commands already dispatched run to completion.
	connCtx, cancel := context.WithCancel(r.Context())
	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver handleWS recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
		cancel()
		close(pingDone)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "read pump exit")
		slog.Info("[DEBUG-WS] client disconnected")
	}()

	for {
		msgType, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[DEBUG-WS] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			slog.Debug("[DEBUG-WS] non-text frame ignored", "type", msgType)
			continue
		}

		req, decodeErr := decodeFrame(msg)
		if decodeErr != nil {
			slog.Debug("[DEBUG-WS] invalid frame from client", "error", decodeErr)
			h.respond(conn, ipc.ErrorResponse("", ipc.CodeBadRequest, decodeErr.Error()))
			continue
		}
		if !h.startRequest(func() { h.runRequest(connCtx, conn, req) }) {
			slog.Debug("[DEBUG-WS] request dropped, hub stopped", "method", req.Method, "id", req.ID)
			return
		}
	}
}

// startRequest runs fn as a tracked request unless the hub is stopping.
func (h *Hub) startRequest(fn func()) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return false
	}
	h.requests.Go(fn)
	return true
}

// runRequest executes req and writes the response if conn is still the
// current connection.
func (h *Hub) runRequest(ctx context.Context, conn *websocket.Conn, req ipc.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver request recovered",
				"method", req.Method,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.respond(conn, ipc.ErrorResponse(req.ID, req.Method+"-exception", fmt.Sprintf("panic: %v", rec)))
		}
	}()

	slog.Debug("[DEBUG-WS] request received", "method", req.Method, "id", req.ID)
	resp := h.opts.Executor.Execute(ctx, req)
	resp.ID = req.ID
	if !h.isCurrent(conn) {
		slog.Debug("[DEBUG-WS] response dropped for stale connection", "method", req.Method, "id", req.ID)
		return
	}
	h.respond(conn, resp)
}

func (h *Hub) respond(conn *websocket.Conn, resp ipc.Response) {
	payload, err := encodeFrame(resp)
	if err != nil {
		slog.Warn("[DEBUG-WS] failed to encode response", "id", resp.ID, "error", err)
		return
	}
	h.writeMessage(conn, websocket.TextMessage, payload, "write error in respond")
}

// pingLoop sends periodic pings to detect dead connections.
func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver pingLoop recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.clearIfCurrent(conn)
			h.closeConn(conn, "pingLoop panic recovery")
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !h.writeMessage(conn, websocket.PingMessage, nil, "ping failure") {
				return
			}
		}
	}
}
