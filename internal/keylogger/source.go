package keylogger

import (
	"sync"

	"wordlog/internal/keys"
)

// Source delivers raw key transitions. Implementations call registered
// callbacks on their own goroutines for as long as the registration is
// held, and must accept several registrations of each kind.
type Source interface {
	OnKeyDown(fn func(keys.Keycode)) (Guard, error)
	OnKeyUp(fn func(keys.Keycode)) (Guard, error)
}

// Guard keeps a registration alive until Release is called.
type Guard interface {
	Release()
}

// SimulatedSource is a Source driven by code rather than a keyboard.
// Press and Release invoke callbacks synchronously on the caller's
// goroutine, in registration order.
type SimulatedSource struct {
	mu     sync.Mutex
	nextID uint64
	down   map[uint64]func(keys.Keycode)
	up     map[uint64]func(keys.Keycode)
	order  []uint64
}

// NewSimulated creates an empty SimulatedSource.
func NewSimulated() *SimulatedSource {
	return &SimulatedSource{
		down: make(map[uint64]func(keys.Keycode)),
		up:   make(map[uint64]func(keys.Keycode)),
	}
}

// OnKeyDown registers fn for key presses.
func (s *SimulatedSource) OnKeyDown(fn func(keys.Keycode)) (Guard, error) {
	return s.register(s.down, fn), nil
}

// OnKeyUp registers fn for key releases.
func (s *SimulatedSource) OnKeyUp(fn func(keys.Keycode)) (Guard, error) {
	return s.register(s.up, fn), nil
}

func (s *SimulatedSource) register(set map[uint64]func(keys.Keycode), fn func(keys.Keycode)) Guard {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	set[id] = fn
	s.order = append(s.order, id)
	return &simGuard{src: s, id: id}
}

// Press delivers a key press to every key-down registration.
func (s *SimulatedSource) Press(k keys.Keycode) {
	for _, fn := range s.snapshot(s.down) {
		fn(k)
	}
}

// Release delivers a key release to every key-up registration.
func (s *SimulatedSource) Release(k keys.Keycode) {
	for _, fn := range s.snapshot(s.up) {
		fn(k)
	}
}

// Tap presses and releases k.
func (s *SimulatedSource) Tap(k keys.Keycode) {
	s.Press(k)
	s.Release(k)
}

// Listeners returns the number of live key-down and key-up registrations.
func (s *SimulatedSource) Listeners() (down, up int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.down), len(s.up)
}

func (s *SimulatedSource) snapshot(set map[uint64]func(keys.Keycode)) []func(keys.Keycode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fns := make([]func(keys.Keycode), 0, len(set))
	for _, id := range s.order {
		if fn, ok := set[id]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

type simGuard struct {
	src  *SimulatedSource
	id   uint64
	once sync.Once
}

func (g *simGuard) Release() {
	g.once.Do(func() {
		s := g.src
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.down, g.id)
		delete(s.up, g.id)
		for i, id := range s.order {
			if id == g.id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	})
}
