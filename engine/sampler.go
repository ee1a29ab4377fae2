package engine

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// ShutterMode is the policy for resolving a frame's value when MIDI
// activity falls between two adjacent frame times.
type ShutterMode string

const (
	// ShutterSample evaluates at a single instant per frame.
	ShutterSample ShutterMode = "sample"
	// ShutterMax takes the maximum over evenly spaced subsamples,
	// preserving short hits that a single sample would miss at low fps.
	ShutterMax ShutterMode = "max"
	// ShutterAvg takes the arithmetic mean over the same subsamples. A
	// binary gate active for part of a frame yields intermediate grays;
	// that is the contract, not a bug.
	ShutterAvg ShutterMode = "avg"
)

// SamplePoint places the single evaluation instant within a frame window.
type SamplePoint string

const (
	SampleStart  SamplePoint = "start"
	SampleCenter SamplePoint = "center"
	SampleEnd    SamplePoint = "end"
)

// ShutterConfig selects a shutter mode and its parameters.
type ShutterConfig struct {
	Mode       ShutterMode `json:"mode"`
	SampleAt   SamplePoint `json:"sampleAt,omitempty"`   // sample mode only
	Subsamples int         `json:"subsamples,omitempty"` // max/avg modes only
}

// DefaultShutter samples once per frame at the window end.
func DefaultShutter() ShutterConfig {
	return ShutterConfig{Mode: ShutterSample, SampleAt: SampleEnd, Subsamples: 8}
}

// Validate fails fast on an inconsistent shutter config.
func (c ShutterConfig) Validate() error {
	switch c.Mode {
	case ShutterSample:
		switch c.SampleAt {
		case SampleStart, SampleCenter, SampleEnd:
		case "":
			return &ConfigError{Field: "shutter.sampleAt", Reason: "required for sample mode"}
		default:
			return &ConfigError{Field: "shutter.sampleAt", Reason: "must be one of: start, center, end"}
		}
	case ShutterMax, ShutterAvg:
		if c.Subsamples < 1 {
			return &ConfigError{Field: "shutter.subsamples", Reason: "must be >= 1 for max/avg modes"}
		}
	default:
		return &ConfigError{Field: "shutter.mode", Reason: "must be one of: sample, max, avg"}
	}
	return nil
}

// ColorMapper converts a note (or CC) number to its full-brightness base
// color. The sampler scales it by the envelope level.
type ColorMapper interface {
	Map(note uint8) colorful.Color
}

// FrameState is one output frame: brightness in [0,1] plus the final RGB
// color. The per-run sequence of frame states is the export artifact.
type FrameState struct {
	Brightness float64
	Color      colorful.Color
}

// RGB255 quantizes the frame color to 8-bit channels.
func (f FrameState) RGB255() (r, g, b uint8) {
	return f.Color.Clamped().RGB255()
}

// Sampler evaluates the envelope and color state on the uniform output
// frame grid. Evaluation times are computed purely from the frame index
// and fps, never from a clock, so a fixed (transitions, fps, shutter)
// triple always produces identical frames.
type Sampler struct {
	ADSR              ADSR
	Shutter           ShutterConfig
	FPS               float64
	VelocitySensitive bool
	ColorMode         bool
	Mapper            ColorMapper

	// Start offsets the grid: frame i covers [Start+i/FPS, Start+(i+1)/FPS).
	Start float64
}

// Frame computes the frame state for output frame index i against the
// transition history.
func (s Sampler) Frame(ts []Transition, i int) FrameState {
	switch s.Shutter.Mode {
	case ShutterMax:
		return s.maxFrame(ts, i)
	case ShutterAvg:
		return s.avgFrame(ts, i)
	default:
		t := s.sampleTime(i)
		level := s.ADSR.Evaluate(ts, t, s.VelocitySensitive)
		return FrameState{Brightness: level, Color: s.ColorAt(ts, t, level)}
	}
}

func (s Sampler) sampleTime(i int) float64 {
	off := 1.0 // end is the default
	switch s.Shutter.SampleAt {
	case SampleStart:
		off = 0
	case SampleCenter:
		off = 0.5
	}
	return s.Start + (float64(i)+off)/s.FPS
}

// subsampleTime returns the j-th of n evenly spaced instants in frame i's
// window. For n >= 2 the spacing includes both window edges; a single
// subsample lands on the window center.
func (s Sampler) subsampleTime(i, j, n int) float64 {
	if n < 2 {
		return s.Start + (float64(i)+0.5)/s.FPS
	}
	return s.Start + (float64(i)+float64(j)/float64(n-1))/s.FPS
}

func (s Sampler) maxFrame(ts []Transition, i int) FrameState {
	n := s.Shutter.Subsamples
	best := 0.0
	bestT := s.subsampleTime(i, 0, n)
	for j := 0; j < n; j++ {
		t := s.subsampleTime(i, j, n)
		v := s.ADSR.Evaluate(ts, t, s.VelocitySensitive)
		// Strict comparison: ties keep the earliest subsample.
		if v > best {
			best = v
			bestT = t
		}
	}
	return FrameState{Brightness: best, Color: s.ColorAt(ts, bestT, best)}
}

func (s Sampler) avgFrame(ts []Transition, i int) FrameState {
	n := s.Shutter.Subsamples
	sum := 0.0
	var wr, wg, wb, wsum float64
	for j := 0; j < n; j++ {
		t := s.subsampleTime(i, j, n)
		v := s.ADSR.Evaluate(ts, t, s.VelocitySensitive)
		sum += v
		if s.ColorMode && v > 0 {
			if note, ok := ActiveNote(ts, t); ok {
				base := s.Mapper.Map(note)
				wr += base.R * v
				wg += base.G * v
				wb += base.B * v
				wsum += v
			}
		}
	}
	mean := sum / float64(n)

	if s.ColorMode && wsum > 0 {
		base := colorful.Color{R: wr / wsum, G: wg / wsum, B: wb / wsum}
		return FrameState{Brightness: mean, Color: scale(base, mean)}
	}
	// Degenerate weights (or monochrome): plain gray at the mean level.
	return FrameState{Brightness: mean, Color: gray(mean)}
}

// ColorAt resolves the final color at an instant: the mapped base color
// of the governing note scaled by the envelope level, or a plain gray
// when color mode is off.
func (s Sampler) ColorAt(ts []Transition, t, level float64) colorful.Color {
	if !s.ColorMode || s.Mapper == nil || level <= 0 {
		return gray(level)
	}
	note, ok := ActiveNote(ts, t)
	if !ok {
		return gray(level)
	}
	return scale(s.Mapper.Map(note), level)
}

func gray(level float64) colorful.Color {
	return colorful.Color{R: level, G: level, B: level}
}

func scale(c colorful.Color, level float64) colorful.Color {
	return colorful.Color{R: c.R * level, G: c.G * level, B: c.B * level}
}
