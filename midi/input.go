package midi

import (
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// TimedEvent pairs an event with its arrival time in seconds since the
// input was opened.
type TimedEvent struct {
	Time  float64
	Event Event
}

// ListPorts returns the names of all MIDI input ports. Port enumeration
// can hang on a wedged CoreMIDI, so it gives up after a timeout.
func ListPorts() ([]string, error) {
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()

	select {
	case ins := <-ch:
		names := make([]string, 0, len(ins))
		for _, p := range ins {
			names = append(names, p.String())
		}
		return names, nil
	case <-time.After(3 * time.Second):
		return nil, fmt.Errorf("timed out listing MIDI ports (MIDI server may be hung)")
	}
}

// Input listens on one or more MIDI input ports and forwards events on a
// bounded channel. Events that arrive while the channel is full are
// dropped; the live path is best-effort by design.
type Input struct {
	events    chan TimedEvent
	stopFuncs []func()
	opened    []string
	start     time.Time
}

// OpenInput opens every port whose name contains the filter substring
// (case-insensitive). An empty filter with all=false opens the first
// port; all=true opens every port.
func OpenInput(filter string, all bool) (*Input, error) {
	ports := gomidi.GetInPorts()
	if len(ports) == 0 {
		return nil, fmt.Errorf("no MIDI input ports found")
	}

	var selected []drivers.In
	switch {
	case all:
		selected = ports
	case filter != "":
		for i, p := range ports {
			if strings.Contains(strings.ToLower(p.String()), strings.ToLower(filter)) {
				selected = append(selected, ports[i])
			}
		}
		if len(selected) == 0 {
			return nil, fmt.Errorf("no MIDI input port matches %q", filter)
		}
	default:
		selected = ports[:1]
	}

	in := &Input{
		events: make(chan TimedEvent, 256),
		start:  time.Now(),
	}

	for i := range selected {
		port := selected[i]
		stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, timestampms int32) {
			ev, ok := FromMessage(msg)
			if !ok {
				return
			}
			in.push(ev)
		})
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("open input %s: %w", port.String(), err)
		}
		in.stopFuncs = append(in.stopFuncs, stop)
		in.opened = append(in.opened, port.String())
	}

	return in, nil
}

func (in *Input) push(ev Event) {
	te := TimedEvent{Time: time.Since(in.start).Seconds(), Event: ev}
	select {
	case in.events <- te:
	default:
	}
}

// Events returns the channel of incoming events.
func (in *Input) Events() <-chan TimedEvent {
	return in.events
}

// Ports returns the names of the ports that were opened.
func (in *Input) Ports() []string {
	return in.opened
}

// Close stops listening on all ports.
func (in *Input) Close() {
	for _, stop := range in.stopFuncs {
		stop()
	}
	in.stopFuncs = nil
}
