package timeline

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"midiphoria/config"
	"midiphoria/engine"
	"midiphoria/midi"
)

func TestRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")

	cfg := config.Default()
	cfg.Trigger.Mode = engine.TriggerNoteSet
	cfg.Trigger.AddNote(60)
	cfg.Trigger.AddNote(64)
	cfg.ColorMode = true
	cfg.ADSR = engine.ADSR{Attack: 0.05, Decay: 0.1, Sustain: 0.7, Release: 0.2}

	rec, err := NewRecorder(path, SnapshotFrom(cfg))
	if err != nil {
		t.Fatal(err)
	}
	// Out of order on purpose; the reader must sort.
	rec.RecordAt(2.0, midi.Event{Type: midi.NoteOff, Channel: 1, Note: 60})
	rec.RecordAt(1.0, midi.Event{Type: midi.NoteOn, Channel: 1, Note: 60, Value: 100})
	rec.Close()

	meta, src, err := ReadRecording(path)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Schema != RecordingSchema {
		t.Errorf("schema = %q, want %q", meta.Schema, RecordingSchema)
	}
	if meta.State == nil {
		t.Fatal("meta state snapshot missing")
	}
	if meta.State.TriggerMode != engine.TriggerNoteSet {
		t.Errorf("restored mode = %s, want note_set", meta.State.TriggerMode)
	}
	if got := meta.State.NoteSet; len(got) != 2 || got[0] != 60 || got[1] != 64 {
		t.Errorf("restored note set = %v, want [60 64]", got)
	}
	if meta.State.ADSR != cfg.ADSR {
		t.Errorf("restored adsr = %+v, want %+v", meta.State.ADSR, cfg.ADSR)
	}

	if src.Len() != 2 {
		t.Fatalf("event count = %d, want 2", src.Len())
	}
	first, _ := src.Next()
	second, _ := src.Next()
	if first.Time != 1.0 || first.Event.Type != midi.NoteOn {
		t.Errorf("first event = %+v, want note_on at 1.0", first)
	}
	if second.Time != 2.0 || second.Event.Type != midi.NoteOff {
		t.Errorf("second event = %+v, want note_off at 2.0", second)
	}
	if _, err := src.Next(); err != io.EOF {
		t.Errorf("exhausted source returned %v, want io.EOF", err)
	}
	if err := src.Reset(); err != nil {
		t.Fatal(err)
	}
	again, _ := src.Next()
	if again != first {
		t.Errorf("after reset got %+v, want %+v", again, first)
	}
}

func TestMetaIsFirstLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	rec, err := NewRecorder(path, SnapshotFrom(config.Default()))
	if err != nil {
		t.Fatal(err)
	}
	rec.RecordAt(0, midi.Event{Type: midi.NoteOn, Channel: 1, Note: 60, Value: 1})
	rec.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("empty recording file")
	}
	if !strings.Contains(sc.Text(), `"type":"meta"`) {
		t.Errorf("first line is not the meta record: %s", sc.Text())
	}
}

func TestRecorderCloseThenRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.jsonl")
	rec, err := NewRecorder(path, SnapshotFrom(config.Default()))
	if err != nil {
		t.Fatal(err)
	}
	rec.RecordAt(0.5, midi.Event{Type: midi.NoteOn, Channel: 1, Note: 60, Value: 100})
	rec.Close()

	// Input callbacks can race shutdown; late events are dropped, not a
	// panic, and a second Close is a no-op.
	rec.RecordAt(1.0, midi.Event{Type: midi.NoteOff, Channel: 1, Note: 60})
	rec.Close()

	_, src, err := ReadRecording(path)
	if err != nil {
		t.Fatal(err)
	}
	if src.Len() != 1 {
		t.Errorf("event count = %d, want 1 (post-close event dropped)", src.Len())
	}
}

func TestReadRecordingMalformedLineFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	content := `{"type":"meta","schema":"midiphoria.midi_recording.v1"}
{"type":"midi","t":0.5,"data":[144,60,100]}
not json at all
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadRecording(path); err == nil {
		t.Fatal("expected an error for the malformed line")
	}
}

func TestReadRecordingSkipsUnknownEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.jsonl")
	content := `{"type":"meta","schema":"midiphoria.midi_recording.v1"}
{"type":"midi","t":0.1,"data":[192,5]}
{"type":"midi","t":-0.5,"data":[144,60,100]}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	_, src, err := ReadRecording(path)
	if err != nil {
		t.Fatal(err)
	}
	// The program change is skipped; the negative timestamp is clamped.
	if src.Len() != 1 {
		t.Fatalf("event count = %d, want 1", src.Len())
	}
	ev, _ := src.Next()
	if ev.Time != 0 || ev.Event.Type != midi.NoteOn {
		t.Errorf("event = %+v, want clamped note_on at t=0", ev)
	}
}

func TestReadRecordingMissingFile(t *testing.T) {
	if _, _, err := ReadRecording(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestSnapshotApplyTo(t *testing.T) {
	snap := StateSnapshot{
		Mapping:           engine.Mapping{Kind: engine.MapCC, Channel: 3, Number: 7},
		TriggerMode:       engine.TriggerMapped,
		NoteSet:           []uint8{64, 60, 200}, // out-of-range entry dropped
		ColorMode:         true,
		VelocitySensitive: true,
		ADSR:              engine.ADSR{Attack: 0.1, Decay: 0.2, Sustain: 2.0, Release: 0.3},
	}

	cfg := config.Default()
	snap.ApplyTo(&cfg)

	if cfg.Trigger.Mapping != snap.Mapping {
		t.Errorf("mapping = %+v, want %+v", cfg.Trigger.Mapping, snap.Mapping)
	}
	if len(cfg.Trigger.NoteSet) != 2 || cfg.Trigger.NoteSet[0] != 60 || cfg.Trigger.NoteSet[1] != 64 {
		t.Errorf("note set = %v, want sorted [60 64]", cfg.Trigger.NoteSet)
	}
	if cfg.ADSR.Sustain != 1 {
		t.Errorf("sustain = %v, want clamped to 1", cfg.ADSR.Sustain)
	}
	if !cfg.ColorMode || !cfg.VelocitySensitive {
		t.Error("bool flags not restored")
	}
}

func TestSliceSourceStableOrder(t *testing.T) {
	// Two events at the same timestamp keep their input order.
	events := []midi.TimedEvent{
		{Time: 1.0, Event: midi.Event{Type: midi.NoteOn, Channel: 1, Note: 60, Value: 1}},
		{Time: 1.0, Event: midi.Event{Type: midi.NoteOn, Channel: 1, Note: 64, Value: 1}},
		{Time: 0.5, Event: midi.Event{Type: midi.NoteOn, Channel: 1, Note: 55, Value: 1}},
	}
	src := NewSliceSource(events)

	want := []uint8{55, 60, 64}
	for i, n := range want {
		ev, err := src.Next()
		if err != nil {
			t.Fatal(err)
		}
		if ev.Event.Note != n {
			t.Errorf("event %d note = %d, want %d", i, ev.Event.Note, n)
		}
	}
	if src.LastTime() != 1.0 {
		t.Errorf("last time = %v, want 1.0", src.LastTime())
	}
}
