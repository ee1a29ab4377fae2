// Package timeline produces ordered (time, event) sequences for the
// engine, from recorded sessions or standard MIDI files. Sources are
// replayable: export consumes them from t=0 deterministically.
package timeline

import (
	"io"
	"sort"

	"midiphoria/midi"
)

// Source is an ordered, finite producer of timed MIDI events. Next
// returns io.EOF when exhausted; Reset rewinds to t=0.
type Source interface {
	Next() (midi.TimedEvent, error)
	Reset() error
}

// SliceSource replays an in-memory event list.
type SliceSource struct {
	events []midi.TimedEvent
	pos    int
}

// NewSliceSource builds a source from events, stably sorted by time so
// simultaneous events keep their original relative order.
func NewSliceSource(events []midi.TimedEvent) *SliceSource {
	sorted := make([]midi.TimedEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return &SliceSource{events: sorted}
}

func (s *SliceSource) Next() (midi.TimedEvent, error) {
	if s.pos >= len(s.events) {
		return midi.TimedEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *SliceSource) Reset() error {
	s.pos = 0
	return nil
}

// Len returns the number of events.
func (s *SliceSource) Len() int {
	return len(s.events)
}

// LastTime returns the timestamp of the final event, or 0 when empty.
func (s *SliceSource) LastTime() float64 {
	if len(s.events) == 0 {
		return 0
	}
	return s.events[len(s.events)-1].Time
}
