package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/harun/drawerq/internal/observability"
	"github.com/harun/drawerq/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// RequestHandler handles one RPC method. Returning an *RPCError selects the
// JSON-RPC error code; any other error maps to InternalError.
type RequestHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// RPCRouter dispatches JSON-RPC requests to registered methods.
type RPCRouter struct {
	mu      sync.RWMutex
	methods map[string]RequestHandler
	replay  *responseCache
}

// NewRPCRouter creates a router with no methods.
func NewRPCRouter() *RPCRouter {
	return &RPCRouter{
		methods: make(map[string]RequestHandler),
		replay:  newResponseCache(defaultIdempotencyTTL),
	}
}

// RegisterMethod registers handler under name, replacing any previous one.
func (r *RPCRouter) RegisterMethod(name string, handler RequestHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.methods[name] = handler
	return nil
}

// UnregisterMethod removes a method. Unknown names are ignored.
func (r *RPCRouter) UnregisterMethod(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.methods, name)
}

// ParseRequest decodes a request frame. The id and method are required;
// jsonrpc defaults to "2.0".
func (r *RPCRouter) ParseRequest(data []byte) (*RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{Code: ParseError, Message: "Parse error", Data: err.Error()}
	}

	switch {
	case req.ID == "":
		return nil, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing id field"}
	case req.Method == "":
		return nil, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing method field"}
	}

	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}
	return &req, nil
}

// RouteRequest runs the handler for req inside an rpc.<method> span. A
// repeated idempotency key replays the first response under the new id
// without calling the handler.
func (r *RPCRouter) RouteRequest(ctx context.Context, req *RPCRequest) *RPCResponse {
	if req == nil {
		return errorResponse("", InvalidRequest, "invalid request")
	}

	handler, ok := r.handler(req.Method)
	if !ok {
		observability.RecordGatewayRequest("unknown", false)
		return errorResponse(req.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}

	key, keyed := cacheKey(ctx, req)
	if !keyed {
		return r.invoke(ctx, handler, req)
	}

	f, leader := r.replay.acquire(key)
	if !leader {
		return r.replay.wait(ctx, f, req.ID)
	}
	defer r.replay.release(key, f)

	response := r.invoke(ctx, handler, req)
	r.replay.finish(key, f, *response)
	return response
}

func (r *RPCRouter) handler(method string) (RequestHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.methods[method]
	return handler, ok
}

func (r *RPCRouter) invoke(ctx context.Context, handler RequestHandler, req *RPCRequest) *RPCResponse {
	ctx = tracing.WithRequestID(ctx, req.ID)
	ctx, span := tracing.StartSpan(ctx, "drawerq/gateway", "rpc."+req.Method,
		attribute.String("rpc.method", req.Method),
		attribute.String("rpc.request_id", req.ID),
	)
	defer span.End()

	result, err := handler(ctx, req.Params)
	observability.RecordGatewayRequest(req.Method, err == nil)
	if err == nil {
		return &RPCResponse{ID: req.ID, JSONRPC: "2.0", Result: result}
	}

	tracing.FailSpan(span, err)

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return errorResponse(req.ID, rpcErr.Code, rpcErr.Message)
	}
	return errorResponse(req.ID, InternalError, err.Error())
}

// HasMethod reports whether name is registered.
func (r *RPCRouter) HasMethod(name string) bool {
	_, ok := r.handler(name)
	return ok
}

// Methods returns the registered method names, sorted.
func (r *RPCRouter) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

func errorResponse(id string, code int, message string) *RPCResponse {
	return &RPCResponse{
		ID:      id,
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
	}
}
