package engine

import (
	"sort"

	"midiphoria/midi"
)

// TriggerMode selects which MIDI events drive the gate.
type TriggerMode string

const (
	// TriggerMapped gates on a single learned note or CC.
	TriggerMapped TriggerMode = "mapped"
	// TriggerAllNotes gates on any note; overlapping notes keep it open.
	TriggerAllNotes TriggerMode = "all_notes"
	// TriggerNoteSet gates on a configured set of notes.
	TriggerNoteSet TriggerMode = "note_set"
)

// MappingKind distinguishes note mappings from CC mappings.
type MappingKind string

const (
	MapNote MappingKind = "note"
	MapCC   MappingKind = "cc"
)

// Mapping is the single learned trigger target used in mapped mode.
type Mapping struct {
	Kind    MappingKind `json:"kind"`
	Channel uint8       `json:"channel"`
	Number  uint8       `json:"number"`
}

// Matches reports whether the event targets this mapping.
func (m Mapping) Matches(ev midi.Event) bool {
	if ev.Channel != m.Channel || ev.Note != m.Number {
		return false
	}
	if ev.IsNote() {
		return m.Kind == MapNote
	}
	return ev.Type == midi.ControlChange && m.Kind == MapCC
}

// DefaultCCThreshold opens the gate for mapped CC values at or above it.
const DefaultCCThreshold uint8 = 64

// TriggerConfig is the full classification policy. It is only mutated by
// explicit config or learn operations, never by the sampler.
type TriggerConfig struct {
	Mode          TriggerMode `json:"mode"`
	Mapping       Mapping     `json:"mapping"`
	NoteSet       []uint8     `json:"noteSet,omitempty"`
	ChannelFilter []uint8     `json:"channelFilter,omitempty"`

	// CCThreshold is the mapped-CC open threshold (0 means the default).
	// A single threshold; hysteresis is a possible future tunable.
	CCThreshold uint8 `json:"ccThreshold,omitempty"`
}

// DefaultTriggerConfig maps middle C on channel 1.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		Mode:    TriggerMapped,
		Mapping: Mapping{Kind: MapNote, Channel: 1, Number: 60},
	}
}

func (c TriggerConfig) ccThreshold() uint8 {
	if c.CCThreshold == 0 {
		return DefaultCCThreshold
	}
	return c.CCThreshold
}

func (c TriggerConfig) channelAllowed(ch uint8) bool {
	if len(c.ChannelFilter) == 0 {
		return true
	}
	for _, f := range c.ChannelFilter {
		if f == ch {
			return true
		}
	}
	return false
}

func (c TriggerConfig) inNoteSet(note uint8) bool {
	for _, n := range c.NoteSet {
		if n == note {
			return true
		}
	}
	return false
}

// AddNote adds a note to the note set, keeping it sorted and unique.
func (c *TriggerConfig) AddNote(note uint8) {
	if c.inNoteSet(note) {
		return
	}
	c.NoteSet = append(c.NoteSet, note)
	sort.Slice(c.NoteSet, func(i, j int) bool { return c.NoteSet[i] < c.NoteSet[j] })
}

// noteAllowed reports whether a note press may open the gate.
func (c TriggerConfig) noteAllowed(ev midi.Event) bool {
	switch c.Mode {
	case TriggerAllNotes:
		return true
	case TriggerNoteSet:
		return c.inNoteSet(ev.Note)
	default:
		return c.Mapping.Kind == MapNote && c.Mapping.Channel == ev.Channel && c.Mapping.Number == ev.Note
	}
}

// TransitionKind labels a recorded gate transition.
type TransitionKind int

const (
	// GateOpen is a 0->1 held-count transition; it anchors envelope time.
	GateOpen TransitionKind = iota
	// GateClose is a 1->0 transition; it starts the release phase.
	GateClose
	// GateUpdate changes the color/velocity reference while the gate stays
	// open. It never re-anchors envelope time.
	GateUpdate
)

func (k TransitionKind) String() string {
	switch k {
	case GateOpen:
		return "open"
	case GateClose:
		return "close"
	case GateUpdate:
		return "update"
	}
	return "unknown"
}

// Transition is one recorded change of the logical gate. The ordered
// sequence of transitions is the authoritative record the envelope
// evaluator consumes; it is append-only and non-decreasing in time.
type Transition struct {
	Time  float64
	Kind  TransitionKind
	Note  uint8 // note or CC number, for color mapping
	Value uint8 // velocity or CC value, 0-127
}

// Gate folds classified MIDI events into gate transitions. It owns the
// held-note count: the gate is open while the count is above zero, so
// overlapping notes keep it open. An Open is emitted only on 0->1 and a
// Close only on 1->0.
type Gate struct {
	cfg    TriggerConfig
	held   []uint8 // insertion-ordered; last element is the color reference
	ccOpen bool

	transitions []Transition
}

// NewGate creates a gate recorder for the given trigger config.
func NewGate(cfg TriggerConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Config returns the current trigger config.
func (g *Gate) Config() TriggerConfig {
	return g.cfg
}

// SetConfig swaps the trigger policy, releasing any held notes. If the
// gate was open a Close is recorded at the given time.
func (g *Gate) SetConfig(t float64, cfg TriggerConfig) {
	if g.Open() {
		last := g.lastNote()
		g.append(Transition{Time: t, Kind: GateClose, Note: last})
	}
	g.cfg = cfg
	g.held = g.held[:0]
	g.ccOpen = false
}

// Open reports whether the gate is currently open.
func (g *Gate) Open() bool {
	return len(g.held) > 0 || g.ccOpen
}

// HeldCount returns the number of currently held notes.
func (g *Gate) HeldCount() int {
	return len(g.held)
}

// Held returns the held notes in press order.
func (g *Gate) Held() []uint8 {
	out := make([]uint8, len(g.held))
	copy(out, g.held)
	return out
}

// Transitions returns the recorded transition list. The slice is owned
// by the gate; callers must not mutate it.
func (g *Gate) Transitions() []Transition {
	return g.transitions
}

func (g *Gate) lastNote() uint8 {
	if n := len(g.transitions); n > 0 {
		return g.transitions[n-1].Note
	}
	return 0
}

func (g *Gate) append(tr Transition) *Transition {
	// Clamp regressions from sloppy upstream clocks; the record must stay
	// non-decreasing.
	if n := len(g.transitions); n > 0 && tr.Time < g.transitions[n-1].Time {
		tr.Time = g.transitions[n-1].Time
	}
	g.transitions = append(g.transitions, tr)
	return &g.transitions[len(g.transitions)-1]
}

// Apply classifies one event at time t and records a transition when the
// gate's state or its color/velocity reference changes. It returns the
// appended transition, or nil when the event was ignored or changed
// nothing. Malformed events are ignored.
func (g *Gate) Apply(t float64, ev midi.Event) *Transition {
	if !ev.Valid() {
		return nil
	}
	if !g.cfg.channelAllowed(ev.Channel) {
		return nil
	}

	if ev.IsNote() {
		return g.applyNote(t, ev)
	}
	if ev.Type == midi.ControlChange {
		return g.applyCC(t, ev)
	}
	return nil
}

func (g *Gate) applyNote(t float64, ev midi.Event) *Transition {
	held := g.heldIndex(ev.Note)

	// Releases of already-held notes are always honored, even if the
	// config changed since the press.
	if !g.cfg.noteAllowed(ev) && held < 0 {
		return nil
	}

	if ev.NotePressed() {
		wasOpen := g.Open()
		if held < 0 {
			g.held = append(g.held, ev.Note)
		}
		if !wasOpen {
			return g.append(Transition{Time: t, Kind: GateOpen, Note: ev.Note, Value: ev.Value})
		}
		// Already open, including a re-sent press of a held note: capture
		// the new color/velocity reference without restarting the attack.
		return g.append(Transition{Time: t, Kind: GateUpdate, Note: ev.Note, Value: ev.Value})
	}

	// Release
	if held < 0 {
		return nil
	}
	g.held = append(g.held[:held], g.held[held+1:]...)
	if len(g.held) == 0 {
		if g.ccOpen {
			return nil
		}
		return g.append(Transition{Time: t, Kind: GateClose, Note: ev.Note})
	}
	// The color reference shifts to the most recently pressed note that
	// is still held.
	last := g.held[len(g.held)-1]
	return g.append(Transition{Time: t, Kind: GateUpdate, Note: last, Value: 0})
}

func (g *Gate) applyCC(t float64, ev midi.Event) *Transition {
	// CC drives the gate only in mapped mode.
	if g.cfg.Mode != TriggerMapped || g.cfg.Mapping.Kind != MapCC {
		return nil
	}
	if !g.cfg.Mapping.Matches(ev) {
		return nil
	}

	open := ev.Value >= g.cfg.ccThreshold()
	switch {
	case open && !g.ccOpen:
		g.ccOpen = true
		if len(g.held) > 0 {
			return g.append(Transition{Time: t, Kind: GateUpdate, Note: ev.Note, Value: ev.Value})
		}
		return g.append(Transition{Time: t, Kind: GateOpen, Note: ev.Note, Value: ev.Value})
	case open && g.ccOpen:
		return g.append(Transition{Time: t, Kind: GateUpdate, Note: ev.Note, Value: ev.Value})
	case !open && g.ccOpen:
		g.ccOpen = false
		if len(g.held) > 0 {
			return g.append(Transition{Time: t, Kind: GateUpdate, Note: g.held[len(g.held)-1], Value: 0})
		}
		return g.append(Transition{Time: t, Kind: GateClose, Note: ev.Note})
	}
	return nil
}

func (g *Gate) heldIndex(note uint8) int {
	for i, n := range g.held {
		if n == note {
			return i
		}
	}
	return -1
}
