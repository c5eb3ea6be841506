package gateway

import (
	"context"
	"fmt"

	"github.com/harun/drawerq/internal/observability"
	"github.com/harun/drawerq/internal/tracing"
	"github.com/harun/drawerq/pkg/drawer"
	"github.com/harun/drawerq/pkg/navigation"
)

// registerBuiltinMethods registers all built-in RPC methods
func (s *Server) registerBuiltinMethods() {
	_ = s.RegisterMethod("drawer.open", s.handleDrawerOpen)
	_ = s.RegisterMethod("drawer.close", s.handleDrawerClose)
	_ = s.RegisterMethod("drawer.toggle", s.handleDrawerToggle)
	_ = s.RegisterMethod("drawer.force", s.handleDrawerForce)
	_ = s.RegisterMethod("drawer.ack", s.handleDrawerAck)
	_ = s.RegisterMethod("drawer.lock", s.handleDrawerLock)
	_ = s.RegisterMethod("drawer.unlock", s.handleDrawerUnlock)
	_ = s.RegisterMethod("drawer.snapshot", s.handleDrawerSnapshot)
	_ = s.RegisterMethod("gateway.clients", s.handleGatewayClients)

	if s.navigation != nil {
		_ = s.RegisterMethod("nav.push", s.handleNavPush)
		_ = s.RegisterMethod("nav.pop", s.handleNavPop)
		_ = s.RegisterMethod("nav.replace", s.handleNavReplace)
		_ = s.RegisterMethod("nav.stack", s.handleNavStack)
	}
}

func invalidParams(message string) *RPCError {
	return &RPCError{Code: InvalidParams, Message: message}
}

func requiredString(params map[string]interface{}, key string) (string, error) {
	value, ok := params[key].(string)
	if !ok || value == "" {
		return "", invalidParams(fmt.Sprintf("%s parameter is required and must be a string", key))
	}
	return value, nil
}

// drawerTarget reads id, scope and payload. A missing scope means the
// screen on top of the navigation stack; an explicit "" is the app scope.
func (s *Server) drawerTarget(params map[string]interface{}) (id, scope string, payload interface{}, err error) {
	id, err = requiredString(params, "id")
	if err != nil {
		return "", "", nil, err
	}

	raw, present := params["scope"]
	switch {
	case present:
		var ok bool
		if scope, ok = raw.(string); !ok {
			return "", "", nil, invalidParams("scope parameter must be a string")
		}
	case s.navigation != nil:
		if top, ok := s.navigation.Top(); ok {
			scope = top.ID
		}
	default:
		scope = drawer.AppScope
	}

	return id, scope, params["payload"], nil
}

func (s *Server) handleDrawerOpen(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, scope, payload, err := s.drawerTarget(params)
	if err != nil {
		return nil, err
	}
	s.logFor(tracing.WithDrawer(ctx, id, scope)).Debug().Msg("Gateway drawer open")
	s.controller.RequestOpen(id, scope, payload)
	return s.controller.Snapshot(), nil
}

func (s *Server) handleDrawerClose(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := requiredString(params, "id")
	if err != nil {
		return nil, err
	}
	s.controller.RequestClose(id)
	return s.controller.Snapshot(), nil
}

func (s *Server) handleDrawerToggle(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, scope, payload, err := s.drawerTarget(params)
	if err != nil {
		return nil, err
	}
	s.controller.Toggle(id, scope, payload)
	return s.controller.Snapshot(), nil
}

func (s *Server) handleDrawerForce(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, scope, payload, err := s.drawerTarget(params)
	if err != nil {
		return nil, err
	}
	ctx = tracing.WithDrawer(ctx, id, scope)

	evicted, locked := s.controller.ForceOpenReport(id, scope, payload)

	observability.AuditForce(ctx, tracing.GetClientID(ctx), id, scope, evicted, locked)
	s.logFor(ctx).Info().Strs("evicted", evicted).Bool("locked", locked).Msg("Gateway forced drawer")
	return s.controller.Snapshot(), nil
}

func (s *Server) handleDrawerAck(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := requiredString(params, "id")
	if err != nil {
		return nil, err
	}
	s.controller.Acknowledge(id)
	s.clients.RecordAck(tracing.GetClientID(ctx), id)
	return s.controller.Snapshot(), nil
}

func (s *Server) handleDrawerLock(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	s.controller.Lock()
	observability.AuditLock(ctx, tracing.GetClientID(ctx))
	return s.controller.Snapshot(), nil
}

func (s *Server) handleDrawerUnlock(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	replayed, evicted := s.controller.UnlockReport()
	observability.AuditUnlock(ctx, tracing.GetClientID(ctx), replayed, evicted)
	return s.controller.Snapshot(), nil
}

func (s *Server) handleDrawerSnapshot(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return s.controller.Snapshot(), nil
}

func (s *Server) handleGatewayClients(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return s.GetConnectedClients(), nil
}

func (s *Server) handleNavPush(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	route, err := requiredString(params, "route")
	if err != nil {
		return nil, err
	}
	return s.navigation.Push(route), nil
}

func (s *Server) handleNavPop(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"popped": s.navigation.Pop()}, nil
}

func (s *Server) handleNavReplace(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	route, err := requiredString(params, "route")
	if err != nil {
		return nil, err
	}
	return s.navigation.Replace(route), nil
}

func (s *Server) handleNavStack(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	scopes := s.navigation.Scopes()
	if scopes == nil {
		scopes = []navigation.Scope{}
	}
	return scopes, nil
}
