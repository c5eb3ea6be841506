package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/drawerq/internal/observability"
	"github.com/harun/drawerq/internal/tracing"
	"github.com/harun/drawerq/pkg/drawer"
	"github.com/harun/drawerq/pkg/navigation"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const methodAuthResponse = "auth.response"

// lifecycleEvents are mirrored to clients as drawer.<type> events.
var lifecycleEvents = []drawer.EventType{
	drawer.EventQueued,
	drawer.EventShown,
	drawer.EventClosing,
	drawer.EventClosed,
	drawer.EventCancelled,
	drawer.EventEvicted,
	drawer.EventPurged,
	drawer.EventHeld,
	drawer.EventDeferred,
	drawer.EventLocked,
	drawer.EventUnlocked,
}

// Server bridges a drawer Controller to out-of-process renderers. The
// controller stays the single authority; clients mirror the current overlay
// and acknowledge close transitions.
type Server struct {
	host           string
	port           int
	tickInterval   time.Duration
	server         *http.Server
	listener       net.Listener
	upgrader       websocket.Upgrader
	clients        *ClientRegistry
	router         *RPCRouter
	auth           *AuthHandler
	broadcaster    *EventBroadcaster
	controller     *drawer.Controller
	navigation     *navigation.Stack
	logger         zerolog.Logger
	unsubscribe    func()
	stopped        atomic.Bool
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	tickCancel     context.CancelFunc
	tickWG         sync.WaitGroup

	// overlayMu orders a joining client's initial overlay against broadcasts.
	overlayMu sync.Mutex
	mirror    drawer.Overlay
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int // 0 picks a free port
	SharedSecret string
	TickInterval time.Duration // 0 disables ticks
	Controller   *drawer.Controller
	Navigation   *navigation.Stack // optional, enables nav.* methods
	Logger       zerolog.Logger
}

// NewServer creates a new Gateway Server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Controller == nil {
		return nil, fmt.Errorf("drawer controller is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	logger := cfg.Logger.With().Str("component", "gateway").Logger()
	clients := NewClientRegistry()

	s := &Server{
		host:         cfg.Host,
		port:         cfg.Port,
		tickInterval: cfg.TickInterval,
		clients:      clients,
		router:       NewRPCRouter(),
		auth:         NewAuthHandler(cfg.SharedSecret),
		broadcaster:  NewEventBroadcaster(clients, logger),
		controller:   cfg.Controller,
		navigation:   cfg.Navigation,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.registerBuiltinMethods()
	s.attach()

	return s, nil
}

// attach mirrors overlay changes and lifecycle events to clients.
// The mirror is the last overlay delivered to clients, which can lag
// Controller.Current while notifications are still being dispatched.
func (s *Server) attach() {
	s.mirror = s.controller.Current()
	s.unsubscribe = s.controller.Subscribe(func(o drawer.Overlay) {
		if s.stopped.Load() {
			return
		}
		s.overlayMu.Lock()
		defer s.overlayMu.Unlock()
		s.mirror = o
		s.broadcaster.PublishOverlay(o)
	})

	for _, eventType := range lifecycleEvents {
		s.controller.On(eventType, func(e drawer.Event) {
			if s.stopped.Load() {
				return
			}
			s.overlayMu.Lock()
			defer s.overlayMu.Unlock()
			s.broadcaster.PublishLifecycle(e)
		})
	}
}

// Handler returns the HTTP routes served by the gateway.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting Gateway Server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	s.startTickEmitter()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the Gateway Server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	if s.isShuttingDown {
		s.shutdownMu.Unlock()
		return nil
	}
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down Gateway Server")
	s.stopTickEmitter()

	s.broadcaster.Broadcast(EventShutdown, map[string]interface{}{
		"message": "Server is shutting down",
	})
	s.stopped.Store(true)
	if s.unsubscribe != nil {
		s.unsubscribe()
	}

	for _, client := range s.clients.List() {
		client.Close()
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway Server stopped")
	return nil
}

func (s *Server) startTickEmitter() {
	if s.tickInterval <= 0 {
		return
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	s.tickCancel = cancel
	s.tickWG.Add(1)

	go func() {
		defer s.tickWG.Done()

		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				s.broadcaster.Broadcast(EventTick, map[string]interface{}{
					"status":  "alive",
					"clients": s.clients.Len(),
				})
			}
		}
	}()
}

func (s *Server) stopTickEmitter() {
	if s.tickCancel != nil {
		s.tickCancel()
		s.tickCancel = nil
	}
	s.tickWG.Wait()
}

// handleWebSocket handles WebSocket connections. A client that presents
// the shared secret joins at once; one that presents nothing is challenged
// first.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	challenge := s.auth.Enabled() && !s.auth.Presented(r)
	if !challenge && !s.auth.Authorize(r) {
		s.logger.Warn().Str("ip", r.RemoteAddr).Msg("Rejected unauthorized WebSocket client")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := NewClient(clientID, conn, func(c *Client) { s.clients.Remove(c.ID) })
	client.IPAddress = r.RemoteAddr

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Bool("challenged", challenge).
		Msg("Client connected")

	if challenge {
		err = s.sendAuthChallenge(client)
	} else {
		err = s.join(client)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("clientId", clientID).Msg("Failed to greet client")
		client.Close()
		return
	}

	go s.handleClient(client)
}

// join admits client to broadcasts and queues the overlay it starts from.
// Holding overlayMu puts that frame ahead of every later overlay frame.
func (s *Server) join(client *Client) error {
	s.overlayMu.Lock()
	defer s.overlayMu.Unlock()

	client.awaitingAuth.Store(false)
	s.clients.Add(client)
	return s.broadcaster.SendTo(client, EventMessage{Event: EventOverlay, Data: s.mirror})
}

func (s *Server) sendAuthChallenge(client *Client) error {
	challenge, err := s.auth.GenerateChallenge()
	if err != nil {
		return err
	}
	client.Challenge = challenge
	client.awaitingAuth.Store(true)
	s.clients.Add(client)

	return s.broadcaster.SendTo(client, EventMessage{
		Event: EventAuthChallenge,
		Data:  map[string]string{"challenge": challenge},
	})
}

// handleClient handles messages from a client
func (s *Server) handleClient(client *Client) {
	defer func() {
		client.Close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			return
		}

		s.clients.Touch(client.ID)
		s.handleMessage(client, message)
	}
}

// handleMessage handles a single message from a client. Requests from one
// client are applied in the order they were sent.
func (s *Server) handleMessage(client *Client, message []byte) {
	req, err := s.router.ParseRequest(message)
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			s.sendError(client, "", rpcErr.Code, rpcErr.Message)
		} else {
			s.sendError(client, "", ParseError, err.Error())
		}
		return
	}

	if req.Method == methodAuthResponse {
		s.handleAuthMessage(client, req)
		return
	}
	if client.AwaitingAuth() {
		s.sendError(client, req.ID, AuthRequired, "authentication required")
		return
	}

	if !client.RateLimiter.Allow() {
		s.sendError(client, req.ID, RateLimitExceeded, "rate limit exceeded")
		return
	}

	ctx := tracing.NewRequestContext(context.Background())
	ctx = tracing.WithClientID(ctx, client.ID)

	response := s.router.RouteRequest(ctx, req)
	if err := client.WriteJSON(response); err != nil {
		s.logger.Error().
			Err(err).
			Str("clientId", client.ID).
			Str("requestId", req.ID).
			Msg("Failed to send response")
	}
}

// handleAuthMessage answers an auth.response. Success admits the client;
// the last failed attempt disconnects it once the error is flushed.
func (s *Server) handleAuthMessage(client *Client, req *RPCRequest) {
	signature, _ := req.Params["signature"].(string)
	result := s.auth.HandleAuthResponse(client, signature)

	if !result.Success {
		s.logger.Warn().
			Str("clientId", client.ID).
			Int("attempts", client.AuthAttempts).
			Str("reason", result.Message).
			Msg("Authentication failed")
		s.sendError(client, req.ID, Unauthorized, result.Message)
		if result.Disconnect {
			client.Close()
		}
		return
	}

	if err := client.WriteJSON(RPCResponse{ID: req.ID, JSONRPC: "2.0", Result: result}); err != nil {
		s.logger.Error().Err(err).Str("clientId", client.ID).Msg("Failed to send auth result")
		return
	}
	s.logger.Info().Str("clientId", client.ID).Msg("Client authenticated")

	if err := s.join(client); err != nil {
		s.logger.Error().Err(err).Str("clientId", client.ID).Msg("Failed to send initial overlay")
		client.Close()
	}
}

// handleRPC handles single-shot HTTP JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.auth.Authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	req, err := s.router.ParseRequest(body)
	if err != nil {
		code := ParseError
		if rpcErr, ok := err.(*RPCError); ok {
			code = rpcErr.Code
		}
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse("", code, err.Error()))
		return
	}

	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	ctx := tracing.WithTraceID(r.Context(), traceID)
	ctx = tracing.WithClientID(ctx, httpClientID(r))
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Str("requestId", req.ID).
		Str("method", req.Method).
		Msg("Gateway received HTTP RPC request")

	resp := s.router.RouteRequest(ctx, req)

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("Failed to encode RPC response")
	}
}

// httpClientID names the caller of a single-shot request. Callers that
// retry with an idempotency key send X-Drawerq-Client so a retry from a new
// connection replays the first response.
func httpClientID(r *http.Request) string {
	if name := r.Header.Get(ClientHeader); name != "" {
		return "http:" + name
	}
	return "http:" + r.RemoteAddr
}

// sendError sends an error response to a client
func (s *Server) sendError(client *Client, requestID string, code int, message string) {
	if err := client.WriteJSON(errorResponse(requestID, code, message)); err != nil {
		s.logger.Error().
			Err(err).
			Str("clientId", client.ID).
			Msg("Failed to send error response")
	}
}

func (s *Server) logFor(ctx context.Context) *zerolog.Logger {
	logger := tracing.LoggerFromContext(ctx, s.logger)
	return &logger
}

// Broadcast broadcasts an event to all clients
func (s *Server) Broadcast(event string, data interface{}) {
	s.broadcaster.Broadcast(event, data)
}

// RegisterMethod registers an RPC method handler
func (s *Server) RegisterMethod(name string, handler RequestHandler) error {
	return s.router.RegisterMethod(name, handler)
}

// UnregisterMethod unregisters an RPC method handler
func (s *Server) UnregisterMethod(name string) {
	s.router.UnregisterMethod(name)
}

// Methods lists the registered RPC methods.
func (s *Server) Methods() []string {
	return s.router.Methods()
}

// GetConnectedClients returns information about all connected clients
func (s *Server) GetConnectedClients() []ClientInfo {
	return s.clients.Infos()
}
