package drawer

type desire struct {
	scope   string
	payload any
}

// Registry records the latest desired open state of each producer. It is
// the toggle layer: a repeated request with the same desired state is a
// no-op. Registry is not safe for concurrent use; the Controller guards it.
type Registry struct {
	desired map[string]desire
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{desired: make(map[string]desire)}
}

// SetDesired records the desired state for id and reports whether it changed.
// Closing an id that is not desired is a no-op.
func (r *Registry) SetDesired(id, scope string, payload any, open bool) bool {
	_, exists := r.desired[id]
	if open {
		if exists {
			return false
		}
		r.desired[id] = desire{scope: scope, payload: payload}
		return true
	}
	if !exists {
		return false
	}
	delete(r.desired, id)
	return true
}

// Desired reports whether id currently wants to be open.
func (r *Registry) Desired(id string) bool {
	_, ok := r.desired[id]
	return ok
}

// SetPayload updates the payload of an open desire. It does nothing when id
// is not desired.
func (r *Registry) SetPayload(id string, payload any) {
	if d, ok := r.desired[id]; ok {
		d.payload = payload
		r.desired[id] = d
	}
}

// Forget drops id regardless of its state. Used when the queue destroys the
// request so a later open counts as a fresh submission.
func (r *Registry) Forget(id string) {
	delete(r.desired, id)
}

// Len returns the number of open desires.
func (r *Registry) Len() int {
	return len(r.desired)
}
