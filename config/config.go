package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"midiphoria/engine"
)

// DurationMode decides how export length is resolved before the tail is
// added.
type DurationMode string

const (
	// DurationEvents ends at the last event.
	DurationEvents DurationMode = "events"
	// DurationFile ends at the full source duration (MIDI files only).
	DurationFile DurationMode = "file"
)

// Config is the full run configuration consumed by the engine, the
// exporter and the live preview. Width and height are passed through to
// the frame encoder; the core logic never reads them.
type Config struct {
	FPS    float64 `json:"fps"`
	Width  int     `json:"width"`
	Height int     `json:"height"`

	Trigger           engine.TriggerConfig `json:"trigger"`
	ADSR              engine.ADSR          `json:"adsr"`
	VelocitySensitive bool                 `json:"velocitySensitive"`
	ColorMode         bool                 `json:"colorMode"`

	Shutter engine.ShutterConfig `json:"shutter"`

	Duration    DurationMode `json:"duration"`
	TailSeconds float64      `json:"tailSeconds"`

	// Palette optionally replaces the hue wheel with a .gpl color ramp.
	Palette string `json:"palette,omitempty"`
}

// Default returns a config with sensible defaults: 24 fps, end-of-frame
// sampling, instantaneous envelope, mapped trigger on middle C.
func Default() Config {
	return Config{
		FPS:         24,
		Width:       960,
		Height:      540,
		Trigger:     engine.DefaultTriggerConfig(),
		ADSR:        engine.DefaultADSR(),
		Shutter:     engine.DefaultShutter(),
		Duration:    DurationEvents,
		TailSeconds: 1,
	}
}

// Validate fails fast with a descriptive ConfigError before any frame is
// computed.
func (c *Config) Validate() error {
	if c.FPS <= 0 {
		return &engine.ConfigError{Field: "fps", Reason: "must be > 0"}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return &engine.ConfigError{Field: "width/height", Reason: "must be > 0"}
	}
	switch c.Trigger.Mode {
	case engine.TriggerMapped, engine.TriggerAllNotes, engine.TriggerNoteSet:
	default:
		return &engine.ConfigError{Field: "trigger.mode", Reason: "must be one of: mapped, all_notes, note_set"}
	}
	for _, ch := range c.Trigger.ChannelFilter {
		if ch < 1 || ch > 16 {
			return &engine.ConfigError{Field: "trigger.channelFilter", Reason: "channels must be 1-16"}
		}
	}
	for _, n := range c.Trigger.NoteSet {
		if n > 127 {
			return &engine.ConfigError{Field: "trigger.noteSet", Reason: "notes must be 0-127"}
		}
	}
	switch c.Duration {
	case DurationEvents, DurationFile:
	default:
		return &engine.ConfigError{Field: "duration", Reason: "must be one of: events, file"}
	}
	if c.TailSeconds < 0 {
		return &engine.ConfigError{Field: "tailSeconds", Reason: "must be >= 0"}
	}
	c.ADSR.Clamp()
	return c.Shutter.Validate()
}

// Dir returns the config directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midiphoria"), nil
}

// Path returns the full path to config.json.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := Path()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
