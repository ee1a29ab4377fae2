package live

import (
	"path/filepath"
	"testing"

	"midiphoria/config"
	"midiphoria/engine"
	"midiphoria/midi"
	"midiphoria/theme"
	"midiphoria/timeline"
)

func newTestSession() *Session {
	cfg := config.Default() // mapped middle C, step envelope
	return NewSession(cfg, theme.HueWheel{})
}

func TestSessionGateAndLevel(t *testing.T) {
	s := newTestSession()
	defer s.Close()

	if s.Level() != 0 {
		t.Errorf("idle level = %v, want 0", s.Level())
	}

	s.HandleEvent(midi.Event{Type: midi.NoteOn, Channel: 1, Note: 60, Value: 100})
	if s.Level() != 1 {
		t.Errorf("level while held = %v, want 1 (step envelope)", s.Level())
	}
	if held := s.State().Held; len(held) != 1 || held[0] != 60 {
		t.Errorf("held = %v, want [60]", held)
	}

	s.HandleEvent(midi.Event{Type: midi.NoteOff, Channel: 1, Note: 60})
	if s.Level() != 0 {
		t.Errorf("level after release = %v, want 0", s.Level())
	}
}

func TestSessionLearnMapping(t *testing.T) {
	s := newTestSession()
	defer s.Close()

	s.ToggleLearnMapping()
	if !s.State().LearnMapping {
		t.Fatal("learn mapping not armed")
	}

	s.HandleEvent(midi.Event{Type: midi.ControlChange, Channel: 2, Note: 7, Value: 100})
	st := s.State()
	if st.LearnMapping {
		t.Error("learn mapping still armed after the event")
	}
	want := engine.Mapping{Kind: engine.MapCC, Channel: 2, Number: 7}
	if st.Config.Trigger.Mapping != want {
		t.Errorf("learned mapping = %+v, want %+v", st.Config.Trigger.Mapping, want)
	}
	if st.Config.Trigger.Mode != engine.TriggerMapped {
		t.Errorf("mode = %s, want mapped", st.Config.Trigger.Mode)
	}
}

func TestSessionLearnAddToSet(t *testing.T) {
	s := newTestSession()
	defer s.Close()

	s.ToggleLearnAddToSet()
	s.HandleEvent(midi.Event{Type: midi.NoteOn, Channel: 1, Note: 62, Value: 100})

	st := s.State()
	if st.Config.Trigger.Mode != engine.TriggerNoteSet {
		t.Errorf("mode = %s, want note_set", st.Config.Trigger.Mode)
	}
	if set := st.Config.Trigger.NoteSet; len(set) != 1 || set[0] != 62 {
		t.Errorf("note set = %v, want [62]", set)
	}
	// The learned note also opened the gate.
	if s.Level() != 1 {
		t.Errorf("level = %v, want 1", s.Level())
	}

	s.ClearNoteSet()
	if set := s.State().Config.Trigger.NoteSet; len(set) != 0 {
		t.Errorf("note set after clear = %v, want empty", set)
	}
}

func TestSessionCycleTriggerMode(t *testing.T) {
	s := newTestSession()
	defer s.Close()

	want := []engine.TriggerMode{engine.TriggerAllNotes, engine.TriggerNoteSet, engine.TriggerMapped}
	for _, m := range want {
		s.CycleTriggerMode()
		if got := s.State().Config.Trigger.Mode; got != m {
			t.Errorf("mode = %s, want %s", got, m)
		}
	}
}

func TestSessionAdjustADSRClamps(t *testing.T) {
	s := newTestSession()
	defer s.Close()

	s.AdjustADSR(func(a *engine.ADSR) { a.Attack -= 0.05 })
	if a := s.State().Config.ADSR.Attack; a != 0 {
		t.Errorf("attack = %v, want clamped 0", a)
	}
	s.AdjustADSR(func(a *engine.ADSR) { a.Sustain += 0.5 })
	if v := s.State().Config.ADSR.Sustain; v != 1 {
		t.Errorf("sustain = %v, want clamped 1", v)
	}

	s.ResetADSR()
	if s.State().Config.ADSR != engine.DefaultADSR() {
		t.Errorf("adsr after reset = %+v", s.State().Config.ADSR)
	}
}

func TestSessionRecording(t *testing.T) {
	s := newTestSession()
	path := filepath.Join(t.TempDir(), "live.jsonl")
	if err := s.StartRecording(path); err != nil {
		t.Fatal(err)
	}
	if !s.State().Recording {
		t.Fatal("recording flag not set")
	}

	s.HandleEvent(midi.Event{Type: midi.NoteOn, Channel: 1, Note: 60, Value: 100})
	s.HandleEvent(midi.Event{Type: midi.NoteOff, Channel: 1, Note: 60})
	s.Close()

	meta, src, err := timeline.ReadRecording(path)
	if err != nil {
		t.Fatal(err)
	}
	if meta.State == nil {
		t.Fatal("recording missing its state snapshot")
	}
	if src.Len() != 2 {
		t.Errorf("recorded %d events, want 2", src.Len())
	}
}

func TestSessionFrameMonochrome(t *testing.T) {
	s := newTestSession()
	defer s.Close()

	s.HandleEvent(midi.Event{Type: midi.NoteOn, Channel: 1, Note: 60, Value: 100})
	f := s.Frame()
	if f.Brightness != 1 {
		t.Errorf("brightness = %v, want 1", f.Brightness)
	}
	if f.Color.R != 1 || f.Color.G != 1 || f.Color.B != 1 {
		t.Errorf("color = %+v, want white (color mode off)", f.Color)
	}
}
