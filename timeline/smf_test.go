package timeline

import (
	"bytes"
	"math"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"midiphoria/midi"
)

// writeSMF builds a single-track file at 96 ticks per quarter note.
func writeSMF(t *testing.T, build func(tr *smf.Track)) []byte {
	t.Helper()
	mf := smf.New()
	mf.TimeFormat = smf.MetricTicks(96)

	var tr smf.Track
	build(&tr)
	tr.Close(0)
	mf.Add(tr)

	var buf bytes.Buffer
	if _, err := mf.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadSMFTiming(t *testing.T) {
	// At 120 bpm a quarter note (96 ticks) is half a second.
	data := writeSMF(t, func(tr *smf.Track) {
		tr.Add(0, smf.MetaTempo(120))
		tr.Add(0, gomidi.NoteOn(0, 60, 100))
		tr.Add(96, gomidi.NoteOff(0, 60))
	})

	meta, src, err := ReadSMFFrom(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatal(err)
	}
	if meta.TicksPerBeat != 96 {
		t.Errorf("ticks per beat = %d, want 96", meta.TicksPerBeat)
	}
	if src.Len() != 2 {
		t.Fatalf("event count = %d, want 2", src.Len())
	}

	on, _ := src.Next()
	off, _ := src.Next()
	if on.Event.Type != midi.NoteOn || on.Time != 0 {
		t.Errorf("first event = %+v, want note_on at 0", on)
	}
	if off.Event.Type != midi.NoteOff || math.Abs(off.Time-0.5) > 1e-6 {
		t.Errorf("second event = %+v, want note_off at 0.5", off)
	}
	if meta.Duration < 0.5 {
		t.Errorf("duration = %v, want >= 0.5", meta.Duration)
	}
}

func TestReadSMFTempoMap(t *testing.T) {
	// A mid-track tempo change stretches later deltas: the first quarter
	// runs at 120 bpm (0.5s), the second at 60 bpm (1.0s).
	data := writeSMF(t, func(tr *smf.Track) {
		tr.Add(0, smf.MetaTempo(120))
		tr.Add(0, gomidi.NoteOn(0, 60, 100))
		tr.Add(96, smf.MetaTempo(60))
		tr.Add(96, gomidi.NoteOff(0, 60))
	})

	_, src, err := ReadSMFFrom(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = src.Next()
	off, _ := src.Next()
	if math.Abs(off.Time-1.5) > 1e-6 {
		t.Errorf("note_off time = %v, want 1.5", off.Time)
	}
}

func TestReadSMFChannelFilter(t *testing.T) {
	data := writeSMF(t, func(tr *smf.Track) {
		tr.Add(0, smf.MetaTempo(120))
		tr.Add(0, gomidi.NoteOn(0, 60, 100)) // wire channel 0 = channel 1
		tr.Add(0, gomidi.NoteOn(1, 64, 100)) // wire channel 1 = channel 2
		tr.Add(96, gomidi.NoteOff(0, 60))
		tr.Add(0, gomidi.NoteOff(1, 64))
	})

	_, src, err := ReadSMFFrom(bytes.NewReader(data), []uint8{2})
	if err != nil {
		t.Fatal(err)
	}
	if src.Len() != 2 {
		t.Fatalf("event count = %d, want 2 on channel 2", src.Len())
	}
	for {
		ev, err := src.Next()
		if err != nil {
			break
		}
		if ev.Event.Channel != 2 {
			t.Errorf("event on channel %d leaked through the filter", ev.Event.Channel)
		}
	}
}

func TestReadSMFGarbage(t *testing.T) {
	if _, _, err := ReadSMFFrom(bytes.NewReader([]byte("not a midi file")), nil); err == nil {
		t.Fatal("expected an error for non-SMF data")
	}
}
