package drawer

import "sync"

// dispatcher delivers notifications in the order they were produced. The
// goroutine that finds the queue idle drains it; notifications produced by
// handlers during delivery are appended and delivered after the current one.
type dispatcher struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

func (d *dispatcher) enqueue(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
}

func (d *dispatcher) drain() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	for len(d.queue) > 0 {
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()
		fn()
		d.mu.Lock()
	}
	d.running = false
	d.mu.Unlock()
}

type subscriber struct {
	id uint64
	fn func(Overlay)
}

// Signal is the observable current-overlay slot.
type Signal struct {
	mu      sync.RWMutex
	current Overlay
	subs    []subscriber
	nextID  uint64
	out     *dispatcher
}

func newSignal(out *dispatcher) *Signal {
	return &Signal{out: out}
}

// Current returns the latest overlay, including changes whose notifications
// have not been delivered yet.
func (s *Signal) Current() Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn for every visibility change and returns a function
// that removes it.
func (s *Signal) Subscribe(fn func(Overlay)) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Signal) publish(o Overlay) {
	s.mu.Lock()
	s.current = o
	s.mu.Unlock()

	s.out.enqueue(func() {
		s.mu.RLock()
		subs := append([]subscriber(nil), s.subs...)
		s.mu.RUnlock()
		for _, sub := range subs {
			sub.fn(o)
		}
	})
}
