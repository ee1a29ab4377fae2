package timeline

import (
	"fmt"
	"io"
	"os"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"midiphoria/midi"
)

// FileMeta describes a parsed standard MIDI file.
type FileMeta struct {
	TicksPerBeat uint16
	// Duration is the absolute time of the last event in any track,
	// including meta events, with the tempo map applied.
	Duration float64
}

// ReadSMF parses a .mid file into absolute-time events. The tempo map is
// resolved by the SMF reader, so event times are in real seconds. An
// optional channel filter (1-16) drops events on other channels before
// classification.
func ReadSMF(path string, channels []uint8) (FileMeta, *SliceSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileMeta{}, nil, fmt.Errorf("open midi file: %w", err)
	}
	defer f.Close()
	return ReadSMFFrom(f, channels)
}

// ReadSMFFrom parses SMF data from a reader.
func ReadSMFFrom(r io.Reader, channels []uint8) (FileMeta, *SliceSource, error) {
	wanted := map[uint8]bool{}
	for _, ch := range channels {
		wanted[ch] = true
	}

	var meta FileMeta
	var events []midi.TimedEvent

	rd := smf.ReadTracksFrom(r)
	rd.Do(func(te smf.TrackEvent) {
		t := float64(te.AbsMicroSeconds) / 1e6
		if t > meta.Duration {
			meta.Duration = t
		}

		ev, ok := midi.FromMessage(gomidi.Message(te.Message))
		if !ok {
			return
		}
		if len(wanted) > 0 && !wanted[ev.Channel] {
			return
		}
		events = append(events, midi.TimedEvent{Time: t, Event: ev})
	})
	if err := rd.Error(); err != nil {
		return FileMeta{}, nil, fmt.Errorf("parse midi file: %w", err)
	}

	if mt, ok := rd.SMF().TimeFormat.(smf.MetricTicks); ok {
		meta.TicksPerBeat = mt.Resolution()
	}

	return meta, NewSliceSource(events), nil
}
