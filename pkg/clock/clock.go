// Package clock is the ledger time source. Timestamps have second
// resolution and are UTC.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// System reads wall time but never returns a value earlier than one it
// already returned, so an NTP step backwards holds the clock still.
type System struct {
	mu   sync.Mutex
	last time.Time
	wall func() time.Time
}

func NewSystem() *System { return &System{wall: time.Now} }

func (s *System) Now() time.Time {
	t := s.wall().UTC().Truncate(time.Second)
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Before(s.last) {
		return s.last
	}
	s.last = t
	return t
}

// Manual only moves when told to, and never backwards.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC().Truncate(time.Second)}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.now = m.now.Add(d).Truncate(time.Second)
	m.mu.Unlock()
}

// Set moves the clock to t unless t is earlier than the current reading.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t = t.UTC().Truncate(time.Second)
	if t.After(m.now) {
		m.now = t
	}
}
