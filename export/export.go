// Package export runs the deterministic batch render: it replays a
// timeline source through the gate, then walks the output frame grid.
// Two runs with identical inputs produce identical frame sequences; no
// wall-clock time enters the computation.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"

	"midiphoria/config"
	"midiphoria/engine"
	"midiphoria/theme"
	"midiphoria/timeline"
)

// Result summarizes a finished export.
type Result struct {
	Frames int
	FPS    float64
	Start  float64
	End    float64
}

// Exporter renders a timeline source to an encoder.
type Exporter struct {
	Config config.Config

	// Start and End clamp the render window. End <= 0 resolves from the
	// duration mode plus the tail.
	Start float64
	End   float64

	// FileDuration is the full source duration, used by duration mode
	// "file" (MIDI file exports).
	FileDuration float64

	Log *zap.Logger
}

// Run materializes the source's gate transitions and samples every
// output frame. Cancellation is checked between frames, never mid-frame.
func (e *Exporter) Run(ctx context.Context, src timeline.Source, enc Encoder) (Result, error) {
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}

	cfg := e.Config
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if cfg.Duration == config.DurationFile && e.FileDuration <= 0 {
		return Result{}, &engine.ConfigError{Field: "duration", Reason: "file mode needs a source with a known duration"}
	}

	mapper, err := mapperFor(cfg)
	if err != nil {
		return Result{}, err
	}

	if err := src.Reset(); err != nil {
		return Result{}, fmt.Errorf("reset timeline: %w", err)
	}

	// Materialize the transition record in time order before sampling.
	// Nothing mutates it while frames are computed.
	gate := engine.NewGate(cfg.Trigger)
	lastEvent := 0.0
	for {
		te, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read timeline: %w", err)
		}
		if te.Time > lastEvent {
			lastEvent = te.Time
		}
		gate.Apply(te.Time, te.Event)
	}
	transitions := gate.Transitions()

	start := math.Max(0, e.Start)
	end := e.End
	if end <= 0 {
		base := lastEvent
		if cfg.Duration == config.DurationFile {
			base = e.FileDuration
		}
		end = base + cfg.TailSeconds
	}
	if end < start {
		end = start
	}

	numFrames := int(math.Floor((end-start)*cfg.FPS + 1e-9))
	res := Result{Frames: numFrames, FPS: cfg.FPS, Start: start, End: end}

	log.Info("export starting",
		zap.Float64("fps", cfg.FPS),
		zap.Int("frames", numFrames),
		zap.Int("transitions", len(transitions)),
		zap.String("shutter", string(cfg.Shutter.Mode)),
		zap.Float64("start", start),
		zap.Float64("end", end),
	)

	sampler := engine.Sampler{
		ADSR:              cfg.ADSR,
		Shutter:           cfg.Shutter,
		FPS:               cfg.FPS,
		VelocitySensitive: cfg.VelocitySensitive,
		ColorMode:         cfg.ColorMode,
		Mapper:            mapper,
		Start:             start,
	}

	for i := 0; i < numFrames; i++ {
		select {
		case <-ctx.Done():
			// Close even on abort so buffering encoders flush what they have.
			enc.Close()
			return res, ctx.Err()
		default:
		}

		frame := sampler.Frame(transitions, i)
		if err := enc.WriteFrame(i, frame); err != nil {
			enc.Close()
			return res, err
		}
	}

	if err := enc.Close(); err != nil {
		return res, err
	}

	log.Info("export complete", zap.Int("frames", numFrames))
	return res, nil
}

func mapperFor(cfg config.Config) (engine.ColorMapper, error) {
	if cfg.Palette != "" {
		p, err := theme.LoadGPL(cfg.Palette)
		if err != nil {
			return nil, fmt.Errorf("load palette: %w", err)
		}
		return p, nil
	}
	return theme.HueWheel{}, nil
}
