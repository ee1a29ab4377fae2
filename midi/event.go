package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI status bytes (channel stripped)
const (
	NoteOn        uint8 = 0x90
	NoteOff       uint8 = 0x80
	ControlChange uint8 = 0xB0
)

// Event is a single MIDI channel event. Note holds the note number for
// note events and the controller number for CC events; Value holds the
// velocity or the CC value. Channel is 1-16.
type Event struct {
	Type    uint8
	Channel uint8
	Note    uint8
	Value   uint8
}

// Valid reports whether the event is well-formed. Out-of-range events are
// dropped upstream rather than failing a run.
func (e Event) Valid() bool {
	switch e.Type {
	case NoteOn, NoteOff, ControlChange:
	default:
		return false
	}
	if e.Channel < 1 || e.Channel > 16 {
		return false
	}
	return e.Note <= 127 && e.Value <= 127
}

// IsNote reports whether the event is a note-on or note-off.
func (e Event) IsNote() bool {
	return e.Type == NoteOn || e.Type == NoteOff
}

// NotePressed reports whether the event starts a note. A note-on with
// velocity 0 counts as a release, per MIDI convention.
func (e Event) NotePressed() bool {
	return e.Type == NoteOn && e.Value > 0
}

// Message converts the event to a gomidi wire message.
func (e Event) Message() gomidi.Message {
	ch := e.Channel - 1
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(ch, e.Note, e.Value)
	case NoteOff:
		return gomidi.NoteOff(ch, e.Note)
	case ControlChange:
		return gomidi.ControlChange(ch, e.Note, e.Value)
	}
	return nil
}

// FromMessage converts a gomidi message to an Event. Returns false for
// message types the engine does not consume (clock, sysex, meta, ...).
func FromMessage(msg gomidi.Message) (Event, bool) {
	var ch, key, vel, ctrl, val uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return Event{Type: NoteOn, Channel: ch + 1, Note: key, Value: vel}, true
	case msg.GetNoteOff(&ch, &key, &vel):
		return Event{Type: NoteOff, Channel: ch + 1, Note: key, Value: vel}, true
	case msg.GetControlChange(&ch, &ctrl, &val):
		return Event{Type: ControlChange, Channel: ch + 1, Note: ctrl, Value: val}, true
	}
	return Event{}, false
}

// FromBytes decodes raw status/data bytes (as stored in recordings).
func FromBytes(data []byte) (Event, bool) {
	return FromMessage(gomidi.Message(data))
}

// Bytes encodes the event as raw wire bytes for recording.
func (e Event) Bytes() []byte {
	return []byte(e.Message())
}

func (e Event) String() string {
	switch e.Type {
	case NoteOn:
		return fmt.Sprintf("note_on ch=%d note=%d vel=%d", e.Channel, e.Note, e.Value)
	case NoteOff:
		return fmt.Sprintf("note_off ch=%d note=%d vel=%d", e.Channel, e.Note, e.Value)
	case ControlChange:
		return fmt.Sprintf("cc ch=%d cc=%d val=%d", e.Channel, e.Note, e.Value)
	}
	return fmt.Sprintf("unknown type=0x%02x", e.Type)
}
