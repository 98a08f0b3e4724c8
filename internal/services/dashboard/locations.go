package dashboard

import (
	"sync"

	"github.com/BearBump/OrderPulse/internal/models"
)

// LocationMap holds the latest known pin per booking. Last write wins; there
// is no client-side track history. A pin disappears when the booking stops
// sharing or reaches a terminal status.
type LocationMap struct {
	mu   sync.RWMutex
	pins map[string]models.LocationSample
}

func NewLocationMap() *LocationMap {
	return &LocationMap{pins: make(map[string]models.LocationSample)}
}

// ApplySample replaces the booking's pin wholesale.
func (m *LocationMap) ApplySample(s models.LocationSample) {
	if s.BookingID == "" {
		return
	}
	m.mu.Lock()
	m.pins[s.BookingID] = s
	m.mu.Unlock()
}

// ApplyStatus drops the pin once the order can no longer move.
func (m *LocationMap) ApplyStatus(upd models.StatusUpdate) {
	if models.IsTerminal(upd.Status) {
		m.Remove(upd.BookingID)
	}
}

// Remove drops one booking's pin. No-op if absent.
func (m *LocationMap) Remove(bookingID string) {
	m.mu.Lock()
	delete(m.pins, bookingID)
	m.mu.Unlock()
}

// Clear drops every pin; called on leaving the location group.
func (m *LocationMap) Clear() {
	m.mu.Lock()
	m.pins = make(map[string]models.LocationSample)
	m.mu.Unlock()
}

// Pins returns a copy of the current pins keyed by booking.
func (m *LocationMap) Pins() map[string]models.LocationSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.LocationSample, len(m.pins))
	for k, v := range m.pins {
		out[k] = v
	}
	return out
}

// Get returns the booking's latest pin.
func (m *LocationMap) Get(bookingID string) (models.LocationSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.pins[bookingID]
	return s, ok
}
