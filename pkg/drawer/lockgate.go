package drawer

// LockGate suspends visibility changes while held. By default it is a plain
// boolean: a second Lock is a no-op and a single Unlock releases it. With
// reference counting every Lock needs a matching Unlock.
type LockGate struct {
	refCounted bool
	holds      int
}

// NewLockGate creates an open gate.
func NewLockGate(refCounted bool) *LockGate {
	return &LockGate{refCounted: refCounted}
}

// Lock acquires the gate and reports whether it went from open to held.
func (g *LockGate) Lock() bool {
	if g.holds > 0 && !g.refCounted {
		return false
	}
	g.holds++
	return g.holds == 1
}

// Unlock releases the gate and reports whether it went from held to open.
// Unlocking an open gate is a no-op.
func (g *LockGate) Unlock() bool {
	if g.holds == 0 {
		return false
	}
	g.holds--
	return g.holds == 0
}

// Held reports whether the gate is currently held.
func (g *LockGate) Held() bool {
	return g.holds > 0
}
