package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"homepin/internal/workerutil"
)

const (
	// defaultConnTimeout covers reading the request, running the command
	// (including icon decoding) and writing the response.
	defaultConnTimeout = 60 * time.Second
	// maxRequestBytes bounds one request frame. Icons travel base64 encoded
	// inside the JSON, so this is well above typical thumbnail sizes.
	maxRequestBytes                 = 16 << 20
	defaultMaxConcurrentConnections = 64
	connSlotAcquireTimeout          = 5 * time.Second
)

// Server accepts command connections on a local socket.
type Server struct {
	path     string
	executor CommandExecutor

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listener  net.Listener
	started   bool
	wg        sync.WaitGroup
	connSlots chan struct{}
}

// NewServer constructs a Server. An empty path selects DefaultSocketPath.
func NewServer(path string, executor CommandExecutor) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	if path == "" {
		path = DefaultSocketPath()
	}
	return &Server{
		path:      path,
		executor:  executor,
		ctx:       ctx,
		cancel:    cancel,
		connSlots: make(chan struct{}, defaultMaxConcurrentConnections),
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Start listens and begins accepting in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("ipc server already started")
	}
	if s.executor == nil {
		return errors.New("ipc server requires an executor")
	}
	listener, err := listenSocket(s.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	s.listener = listener
	s.started = true

	workerutil.RunWithPanicRecovery(s.ctx, "ipc-accept", &s.wg, func(context.Context) {
		s.acceptLoop()
	}, workerutil.RecoveryOptions{
		IsShutdown: func() bool { return s.ctx.Err() != nil },
	})
	slog.Info("[DEBUG-IPC] listening", "path", s.path)
	return nil
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil {
			slog.Warn("[DEBUG-IPC] failed to close listener during shutdown", "error", err)
		}
	}
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop() {
	consecutiveErrors := 0
	for {
		s.mu.Lock()
		listener := s.listener
		s.mu.Unlock()
		if listener == nil {
			return
		}

		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			consecutiveErrors++
			if consecutiveErrors > 10 {
				slog.Warn("[DEBUG-IPC] repeated accept failures", "error", err, "count", consecutiveErrors)
				time.Sleep(500 * time.Millisecond)
			} else {
				slog.Debug("[DEBUG-IPC] accept error", "error", err)
			}
			continue
		}
		consecutiveErrors = 0

		if !s.acquireConnectionSlot() {
			s.writeResponse(conn, ErrorResponse("", "busy", "server busy, try again later"))
			if closeErr := conn.Close(); closeErr != nil {
				slog.Debug("[DEBUG-IPC] failed to close rejected connection", "error", closeErr)
			}
			continue
		}
		s.wg.Go(func() {
			defer s.releaseConnectionSlot()
			s.handleConnection(conn)
		})
	}
}

// handleConnection serves one request on conn.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		slog.Warn("[DEBUG-IPC] failed to set connection deadline", "error", err)
		return
	}

	reader := bufio.NewReaderSize(conn, 64*1024)
	rawReq, err := readFrame(reader, maxRequestBytes)
	if errors.Is(err, io.EOF) {
		slog.Debug("[DEBUG-IPC] client disconnected without sending data")
		return
	}
	if err != nil {
		s.writeResponse(conn, ErrorResponse("", CodeBadRequest, fmt.Sprintf("invalid request: %v", err)))
		return
	}
	req, err := DecodeRequest(rawReq)
	if err != nil {
		s.writeResponse(conn, ErrorResponse("", CodeBadRequest, fmt.Sprintf("invalid request: %v", err)))
		return
	}

	slog.Debug("[DEBUG-IPC] request received", "method", req.Method, "id", req.ID, "argsBytes", len(req.Args))
	resp := s.executor.Execute(s.ctx, req)
	resp.ID = req.ID
	s.writeResponse(conn, resp)
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	raw, err := EncodeResponse(resp)
	if err != nil {
		slog.Warn("[DEBUG-IPC] failed to encode response", "error", err)
		raw = []byte(`{"ok":false,"error":{"code":"internal","message":"response encode error"}}`)
	}
	raw = append(raw, '\n')
	if _, err := conn.Write(raw); err != nil {
		slog.Debug("[DEBUG-IPC] failed to write response", "error", err)
	}
}

// readFrame reads one newline-terminated frame of at most maxBytes. A final
// frame without a newline is accepted at EOF.
func readFrame(reader *bufio.Reader, maxBytes int) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(frame)+len(chunk) > maxBytes+1 {
			return nil, fmt.Errorf("frame exceeds %d bytes", maxBytes)
		}
		frame = append(frame, chunk...)
		switch {
		case err == nil:
			return frame, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(frame) == 0 {
				return nil, io.EOF
			}
			return frame, nil
		default:
			return nil, err
		}
	}
}

func (s *Server) acquireConnectionSlot() bool {
	timer := time.NewTimer(connSlotAcquireTimeout)
	defer timer.Stop()
	select {
	case s.connSlots <- struct{}{}:
		return true
	case <-timer.C:
		slog.Warn("[DEBUG-IPC] connection slots exhausted, rejecting client")
		return false
	case <-s.ctx.Done():
		return false
	}
}

func (s *Server) releaseConnectionSlot() {
	select {
	case <-s.connSlots:
	default:
		slog.Warn("[DEBUG-IPC] releaseConnectionSlot: no slot to release")
	}
}
