package midi

import (
	"context"
	"time"
)

// Generator emits a note-on/note-off pulse once a second for debugging
// without hardware: 0.2s on, 0.8s off.
type Generator struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
}

// NewGenerator returns a generator with the default pulse (middle C,
// full velocity, channel 1).
func NewGenerator() *Generator {
	return &Generator{Channel: 1, Note: 60, Velocity: 127}
}

// Run emits pulses until the context is cancelled (blocking - run in
// goroutine). Arrival times are seconds since Run started.
func (g *Generator) Run(ctx context.Context, out chan<- TimedEvent) {
	start := time.Now()
	emit := func(ev Event) {
		te := TimedEvent{Time: time.Since(start).Seconds(), Event: ev}
		select {
		case out <- te:
		case <-ctx.Done():
		}
	}

	for {
		emit(Event{Type: NoteOn, Channel: g.Channel, Note: g.Note, Value: g.Velocity})
		select {
		case <-ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}

		emit(Event{Type: NoteOff, Channel: g.Channel, Note: g.Note})
		select {
		case <-ctx.Done():
			return
		case <-time.After(800 * time.Millisecond):
		}
	}
}
