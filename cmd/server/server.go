package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nickyhof/ShopQL"
	"github.com/nickyhof/ShopQL/db"
)

// Server exposes the ShopQL engine over newline-delimited JSON on TCP and,
// optionally, over HTTP.
type Server struct {
	listener   net.Listener
	instance   *ShopQL.Instance
	engine     *db.Engine
	authConfig *AuthConfig
	tlsEnabled bool
	rateLimit  rate.Limit
	rateBurst  int
	logger     *slog.Logger

	httpServer   *http.Server
	httpListener net.Listener

	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type Option func(*Server)

// WithAuth requires clients to authenticate when cfg.Enabled is set.
func WithAuth(cfg *AuthConfig) Option {
	return func(s *Server) {
		s.authConfig = cfg
	}
}

// WithRateLimit throttles each TCP connection, and the HTTP API as a whole,
// to limit requests per second with the given burst. A limit of zero
// disables throttling.
func WithRateLimit(limit float64, burst int) Option {
	return func(s *Server) {
		s.rateLimit = rate.Limit(limit)
		s.rateBurst = max(burst, 1)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new query server over the given ShopQL instance.
func NewServer(instance *ShopQL.Instance, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		instance: instance,
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = instance.Engine(db.WithLogger(s.logger))
	return s
}

// NewServerWithAuth creates a server that authenticates clients with cfg.
func NewServerWithAuth(instance *ShopQL.Instance, cfg *AuthConfig) *Server {
	return NewServer(instance, WithAuth(cfg))
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	s.logger.Info("query server listening", "addr", listener.Addr().String())

	go s.acceptLoop()
	return nil
}

// StartTLS begins listening for TLS connections using the given certificate
// and key files.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	listener, err := tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.listener = listener
	s.tlsEnabled = true

	s.logger.Info("query server listening", "addr", listener.Addr().String(), "tls", true)

	go s.acceptLoop()
	return nil
}

func (s *Server) TLSEnabled() bool {
	return s.tlsEnabled
}

func (s *Server) authRequired() bool {
	return s.authConfig != nil && s.authConfig.Enabled
}

// Stop closes the listeners and open connections and waits for in-flight
// queries to finish.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.stop()
	})
	return err
}

func (s *Server) stop() error {
	close(s.done)
	s.cancel()

	var errs []error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, s.httpServer.Shutdown(ctx))
		cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return errors.Join(errs...)
}

// Addr returns the server's TCP listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// maxAcceptDelay caps the pause between failed Accept calls.
const maxAcceptDelay = time.Second

// nextAcceptDelay doubles the previous pause, starting at 5ms.
func nextAcceptDelay(previous time.Duration) time.Duration {
	if previous == 0 {
		return 5 * time.Millisecond
	}
	return min(2*previous, maxAcceptDelay)
}

func (s *Server) acceptLoop() {
	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}

			delay = nextAcceptDelay(delay)
			s.logger.Warn("accept error", "error", err, "retry_in", delay)
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		s.track(conn, true)
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) newLimiter() *rate.Limiter {
	if s.rateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(s.rateLimit, s.rateBurst)
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.track(conn, false)
	defer conn.Close()

	logger := s.logger.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String())
	logger.Info("client connected")

	reader := bufio.NewReader(conn)
	limiter := s.newLimiter()
	state := &ConnectionState{}

	for {
		select {
		case <-s.done:
			return
		default:
		}

		// One request per line
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				logger.Warn("read error", "error", err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			logger.Info("client disconnected")
			return
		}

		response := s.handleLine(line, state, limiter, logger)

		data, err := EncodeResponse(response)
		if err != nil {
			logger.Error("failed to encode response", "error", err)
			continue
		}

		if _, err := conn.Write(data); err != nil {
			logger.Warn("write error", "error", err)
			return
		}
	}
}

// handleLine answers one non-empty request line.
func (s *Server) handleLine(line string, state *ConnectionState, limiter *rate.Limiter, logger *slog.Logger) Response {
	if limiter != nil && !limiter.Allow() {
		return Response{Success: false, Error: "rate limit exceeded", ErrorKind: "rate_limited"}
	}

	if isAuthCommand(line) {
		response := s.handleAuth(line, state)
		if response.Success {
			logger.Info("client authenticated", "identity", state.Identity().String())
		} else {
			logger.Warn("authentication failed", "error", response.Error)
		}
		return response
	}

	req, err := DecodeRequest([]byte(line))
	if err != nil {
		return Response{Success: false, Error: fmt.Sprintf("invalid request: %v", err), ErrorKind: "malformed"}
	}

	response := s.authorize(state)
	if response == nil {
		r := s.executeQuery(s.ctx, req.Query)
		response = &r
	}
	response.Seq = req.Seq
	return *response
}

// authorize returns a failure response when the connection may not query.
func (s *Server) authorize(state *ConnectionState) *Response {
	if !s.authRequired() {
		return nil
	}
	if state.expired(time.Now()) {
		*state = ConnectionState{}
		return &Response{Success: false, Type: "auth", Error: "token expired: re-authenticate with AUTH JWT <token>"}
	}
	if !state.IsAuthenticated() {
		return &Response{Success: false, Type: "auth", Error: errAuthRequired.Error()}
	}
	return nil
}

func (s *Server) executeQuery(ctx context.Context, query string) Response {
	result, err := s.engine.Execute(ctx, query)
	if err != nil {
		return queryError(err)
	}
	return queryResult(result)
}
