package relay

import "sync/atomic"

// Selector holds the active upstream channel id. Switch replaces the value
// atomically; concurrent readers observe either the old or the new id,
// never a torn value. No reachability or authorization check is performed
// on the new id — downstream operations surface their own errors.
type Selector struct {
	id atomic.Int64
}

func NewSelector(id int64) *Selector {
	s := &Selector{}
	s.id.Store(id)
	return s
}

func (s *Selector) Current() int64 { return s.id.Load() }

// Switch installs a new active channel and returns the previous one.
func (s *Selector) Switch(id int64) int64 { return s.id.Swap(id) }
