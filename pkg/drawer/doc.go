// Package drawer arbitrates modal overlay ("drawer") requests from many
// independent producers into a single visible overlay.
//
// Invariants:
// - At most one request is current at any time.
// - A producer id appears at most once across current and pending.
// - Normal requests are served FIFO; a forced request preempts the current
//   overlay and discards everything pending.
// - A current overlay that is closing stays current until the rendering
//   layer acknowledges the end of its exit transition.
// - While the lock gate is held, operations are journaled and replayed in
//   arrival order on unlock.
//
// Usage:
//
//	ctrl := drawer.New(drawer.WithLogger(logger))
//	cancel := ctrl.Subscribe(func(o drawer.Overlay) { render(o) })
//	defer cancel()
//	ctrl.RequestOpen("receive-info", scope, payload)
//	// ... renderer finished the exit animation:
//	ctrl.Acknowledge("receive-info")
package drawer
