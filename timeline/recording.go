package timeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"midiphoria/config"
	"midiphoria/engine"
	"midiphoria/midi"
)

// RecordingSchema tags the JSONL session format.
const RecordingSchema = "midiphoria.midi_recording.v1"

// StateSnapshot is the run configuration captured in a recording's meta
// line, so a replayed export reproduces the session's trigger setup.
type StateSnapshot struct {
	Mapping           engine.Mapping     `json:"mapping"`
	TriggerMode       engine.TriggerMode `json:"trigger_mode"`
	NoteSet           []uint8            `json:"note_set"`
	ColorMode         bool               `json:"color_mode"`
	VelocitySensitive bool               `json:"velocity_sensitive"`
	ADSR              engine.ADSR        `json:"adsr"`
}

// SnapshotFrom captures a run config for a recording's meta line.
func SnapshotFrom(cfg config.Config) StateSnapshot {
	noteSet := cfg.Trigger.NoteSet
	if noteSet == nil {
		noteSet = []uint8{}
	}
	return StateSnapshot{
		Mapping:           cfg.Trigger.Mapping,
		TriggerMode:       cfg.Trigger.Mode,
		NoteSet:           noteSet,
		ColorMode:         cfg.ColorMode,
		VelocitySensitive: cfg.VelocitySensitive,
		ADSR:              cfg.ADSR,
	}
}

// ApplyTo restores a recorded snapshot into a run config, so replaying a
// session reproduces the trigger setup it was captured with.
func (s StateSnapshot) ApplyTo(cfg *config.Config) {
	cfg.Trigger.Mapping = s.Mapping
	cfg.Trigger.Mode = s.TriggerMode
	cfg.Trigger.NoteSet = nil
	for _, n := range s.NoteSet {
		if n <= 127 {
			cfg.Trigger.AddNote(n)
		}
	}
	cfg.ColorMode = s.ColorMode
	cfg.VelocitySensitive = s.VelocitySensitive
	cfg.ADSR = s.ADSR
	cfg.ADSR.Clamp()
}

// Meta is the first line of a recording.
type Meta struct {
	Schema       string         `json:"schema"`
	CreatedUnixS float64        `json:"created_unix_s"`
	App          string         `json:"app"`
	AppVersion   string         `json:"app_version"`
	State        *StateSnapshot `json:"state,omitempty"`
}

// record is the union of both JSONL line shapes.
type record struct {
	Type string `json:"type"`

	// meta line
	Schema       string         `json:"schema,omitempty"`
	CreatedUnixS float64        `json:"created_unix_s,omitempty"`
	App          string         `json:"app,omitempty"`
	AppVersion   string         `json:"app_version,omitempty"`
	State        *StateSnapshot `json:"state,omitempty"`

	// midi line
	T    float64 `json:"t,omitempty"`
	Data []int   `json:"data,omitempty"`
}

// ReadRecording loads a JSONL session. An unreadable file or malformed
// line is fatal: export is a one-shot batch operation and does not retry.
// Events are sorted by time; bytes that do not decode to a known event
// type are skipped.
func ReadRecording(path string) (Meta, *SliceSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	var meta Meta
	var events []midi.TimedEvent

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return Meta{}, nil, fmt.Errorf("recording %s line %d: %w", path, lineNo, err)
		}
		switch rec.Type {
		case "meta":
			if meta.Schema == "" {
				meta = Meta{
					Schema:       rec.Schema,
					CreatedUnixS: rec.CreatedUnixS,
					App:          rec.App,
					AppVersion:   rec.AppVersion,
					State:        rec.State,
				}
			}
		case "midi":
			data := make([]byte, len(rec.Data))
			for i, b := range rec.Data {
				if b < 0 || b > 255 {
					return Meta{}, nil, fmt.Errorf("recording %s line %d: byte out of range", path, lineNo)
				}
				data[i] = byte(b)
			}
			ev, ok := midi.FromBytes(data)
			if !ok {
				continue
			}
			t := rec.T
			if t < 0 {
				t = 0
			}
			events = append(events, midi.TimedEvent{Time: t, Event: ev})
		}
	}
	if err := scanner.Err(); err != nil {
		return Meta{}, nil, fmt.Errorf("read recording: %w", err)
	}

	return meta, NewSliceSource(events), nil
}

// Recorder writes a JSONL session: one meta line, then one line per MIDI
// event. Writing happens on a background goroutine fed by a channel so
// the live input callback never blocks on disk. Record and Close are safe
// to call concurrently; events arriving after Close are dropped.
type Recorder struct {
	mu     sync.Mutex
	closed bool

	lines chan []byte
	done  chan struct{}
	start time.Time
}

// NewRecorder creates the file, writes the meta line and starts the
// writer goroutine.
func NewRecorder(path string, snap StateSnapshot) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	meta := record{
		Type:         "meta",
		Schema:       RecordingSchema,
		CreatedUnixS: float64(time.Now().UnixNano()) / 1e9,
		App:          "midiphoria",
		AppVersion:   "0.1.0",
		State:        &snap,
	}
	line, err := json.Marshal(meta)
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &Recorder{
		lines: make(chan []byte, 256),
		done:  make(chan struct{}),
		start: time.Now(),
	}
	r.lines <- line

	go func() {
		defer close(r.done)
		defer f.Close()
		w := bufio.NewWriter(f)
		defer w.Flush()
		for l := range r.lines {
			w.Write(l)
			w.WriteByte('\n')
			w.Flush() // keep the file usable even after a crash
		}
	}()

	return r, nil
}

// Record appends an event stamped with seconds since the recorder
// started.
func (r *Recorder) Record(ev midi.Event) {
	r.RecordAt(time.Since(r.start).Seconds(), ev)
}

// RecordAt appends an event with an explicit timestamp.
func (r *Recorder) RecordAt(t float64, ev midi.Event) {
	raw := ev.Bytes()
	data := make([]int, len(raw))
	for i, b := range raw {
		data[i] = int(b)
	}
	line, err := json.Marshal(record{Type: "midi", T: t, Data: data})
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.lines <- line
}

// Close flushes and closes the recording file. Idempotent.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.lines)
	r.mu.Unlock()
	<-r.done
}
