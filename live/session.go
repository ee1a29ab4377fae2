// Package live holds the mutable state behind the live preview: the
// wall-clock gate, learn modes and optional session recording. Live mode
// is best-effort by design; only export mode is deterministic.
package live

import (
	"fmt"
	"sync"
	"time"

	"midiphoria/config"
	"midiphoria/engine"
	"midiphoria/midi"
	"midiphoria/timeline"
)

const maxLogLines = 200

// Session applies incoming MIDI events to the gate and answers level and
// color queries from the render loop. All methods are safe for
// concurrent use; the input goroutine and the TUI share one session.
type Session struct {
	mu    sync.Mutex
	cfg   config.Config
	gate  *engine.Gate
	start time.Time

	mapper engine.ColorMapper

	learnMapping  bool
	learnAddToSet bool

	recorder *timeline.Recorder
	log      []string // newest first
}

// Snapshot is a consistent copy of session state for the overlay.
type Snapshot struct {
	Config        config.Config
	Held          []uint8
	LearnMapping  bool
	LearnAddToSet bool
	Recording     bool
	Log           []string
}

// NewSession starts the session clock.
func NewSession(cfg config.Config, mapper engine.ColorMapper) *Session {
	return &Session{
		cfg:    cfg,
		gate:   engine.NewGate(cfg.Trigger),
		start:  time.Now(),
		mapper: mapper,
	}
}

// StartRecording attaches a JSONL recorder; the meta line snapshots the
// current config.
func (s *Session) StartRecording(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := timeline.NewRecorder(path, timeline.SnapshotFrom(s.cfg))
	if err != nil {
		return err
	}
	s.recorder = rec
	s.logf("recording to %s", path)
	return nil
}

// Close stops the recorder if one is attached.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorder != nil {
		s.recorder.Close()
		s.recorder = nil
	}
}

func (s *Session) now() float64 {
	return time.Since(s.start).Seconds()
}

func (s *Session) logf(format string, args ...any) {
	s.log = append([]string{fmt.Sprintf(format, args...)}, s.log...)
	if len(s.log) > maxLogLines {
		s.log = s.log[:maxLogLines]
	}
}

// HandleEvent applies one incoming MIDI event. Events are applied in
// arrival order before the next frame's brightness is computed.
func (s *Session) HandleEvent(ev midi.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.logf("%s", ev)

	if s.recorder != nil {
		s.recorder.RecordAt(now, ev)
	}

	if s.learnAddToSet && ev.NotePressed() {
		s.cfg.Trigger.AddNote(ev.Note)
		s.cfg.Trigger.Mode = engine.TriggerNoteSet
		s.learnAddToSet = false
		s.gate.SetConfig(now, s.cfg.Trigger)
		s.logf("added note %d to set", ev.Note)
	}

	if s.learnMapping {
		switch {
		case ev.NotePressed():
			s.cfg.Trigger.Mapping = engine.Mapping{Kind: engine.MapNote, Channel: ev.Channel, Number: ev.Note}
			s.cfg.Trigger.Mode = engine.TriggerMapped
			s.learnMapping = false
			s.gate.SetConfig(now, s.cfg.Trigger)
			s.logf("mapped note ch=%d note=%d", ev.Channel, ev.Note)
		case ev.Type == midi.ControlChange:
			s.cfg.Trigger.Mapping = engine.Mapping{Kind: engine.MapCC, Channel: ev.Channel, Number: ev.Note}
			s.cfg.Trigger.Mode = engine.TriggerMapped
			s.learnMapping = false
			s.gate.SetConfig(now, s.cfg.Trigger)
			s.logf("mapped cc ch=%d cc=%d", ev.Channel, ev.Note)
		}
	}

	s.gate.Apply(now, ev)
}

// Level returns the current envelope brightness.
func (s *Session) Level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.ADSR.Evaluate(s.gate.Transitions(), s.now(), s.cfg.VelocitySensitive)
}

// Frame returns the current brightness and final color for the preview.
func (s *Session) Frame() engine.FrameState {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sampler := engine.Sampler{
		ADSR:              s.cfg.ADSR,
		VelocitySensitive: s.cfg.VelocitySensitive,
		ColorMode:         s.cfg.ColorMode,
		Mapper:            s.mapper,
	}
	ts := s.gate.Transitions()
	level := s.cfg.ADSR.Evaluate(ts, now, s.cfg.VelocitySensitive)
	return engine.FrameState{Brightness: level, Color: sampler.ColorAt(ts, now, level)}
}

// State returns a copy of the session state for rendering.
func (s *Session) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	logCopy := make([]string, len(s.log))
	copy(logCopy, s.log)
	return Snapshot{
		Config:        s.cfg,
		Held:          s.gate.Held(),
		LearnMapping:  s.learnMapping,
		LearnAddToSet: s.learnAddToSet,
		Recording:     s.recorder != nil,
		Log:           logCopy,
	}
}

// ToggleLearnMapping arms or disarms mapping learn mode.
func (s *Session) ToggleLearnMapping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learnMapping = !s.learnMapping
	s.logf("learn mapping %s", onOff(s.learnMapping))
}

// ToggleLearnAddToSet arms add-to-set learn and switches to note-set
// triggering.
func (s *Session) ToggleLearnAddToSet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learnAddToSet = !s.learnAddToSet
	if s.learnAddToSet {
		s.cfg.Trigger.Mode = engine.TriggerNoteSet
		s.gate.SetConfig(s.now(), s.cfg.Trigger)
		s.logf("add-to-set learn on (next note adds)")
	} else {
		s.logf("add-to-set learn off")
	}
}

// CycleTriggerMode steps mapped -> all_notes -> note_set, releasing any
// held notes.
func (s *Session) CycleTriggerMode() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.cfg.Trigger.Mode {
	case engine.TriggerMapped:
		s.cfg.Trigger.Mode = engine.TriggerAllNotes
	case engine.TriggerAllNotes:
		s.cfg.Trigger.Mode = engine.TriggerNoteSet
	default:
		s.cfg.Trigger.Mode = engine.TriggerMapped
	}
	s.gate.SetConfig(s.now(), s.cfg.Trigger)
	s.logf("trigger mode: %s", s.cfg.Trigger.Mode)
}

// ClearNoteSet empties the note set.
func (s *Session) ClearNoteSet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Trigger.NoteSet = nil
	s.gate.SetConfig(s.now(), s.cfg.Trigger)
	s.logf("note set cleared")
}

// ToggleColorMode flips per-note coloring.
func (s *Session) ToggleColorMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ColorMode = !s.cfg.ColorMode
	s.logf("color mode %s", onOff(s.cfg.ColorMode))
}

// ToggleVelocitySensitive flips velocity scaling.
func (s *Session) ToggleVelocitySensitive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.VelocitySensitive = !s.cfg.VelocitySensitive
	s.logf("velocity sensitive %s", onOff(s.cfg.VelocitySensitive))
}

// ResetADSR restores the instantaneous step envelope.
func (s *Session) ResetADSR() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ADSR = engine.DefaultADSR()
	s.logf("adsr reset")
}

// AdjustADSR nudges one parameter by delta and clamps.
func (s *Session) AdjustADSR(apply func(*engine.ADSR)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(&s.cfg.ADSR)
	s.cfg.ADSR.Clamp()
	a := s.cfg.ADSR
	s.logf("adsr a=%.2f d=%.2f s=%.2f r=%.2f", a.Attack, a.Decay, a.Sustain, a.Release)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
