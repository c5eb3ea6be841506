// Package navigation provides a route stack that reports scope lifecycle to
// drawer.ScopeListener subscribers.
//
// Every pushed route gets a fresh scope id. ScopeEntered fires after the
// route is on the stack; ScopeWillExit fires while the route is still on the
// stack, before it is removed, so listeners can release anything the scope
// owns before its subtree goes away.
package navigation
