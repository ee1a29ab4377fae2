package config

import (
	"errors"
	"testing"

	"midiphoria/engine"
)

func TestValidateDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero fps", func(c *Config) { c.FPS = 0 }, "fps"},
		{"negative fps", func(c *Config) { c.FPS = -24 }, "fps"},
		{"zero width", func(c *Config) { c.Width = 0 }, "width/height"},
		{"bad trigger mode", func(c *Config) { c.Trigger.Mode = "sometimes" }, "trigger.mode"},
		{"channel out of range", func(c *Config) { c.Trigger.ChannelFilter = []uint8{17} }, "trigger.channelFilter"},
		{"note out of range", func(c *Config) { c.Trigger.NoteSet = []uint8{128} }, "trigger.noteSet"},
		{"bad duration mode", func(c *Config) { c.Duration = "forever" }, "duration"},
		{"negative tail", func(c *Config) { c.TailSeconds = -1 }, "tailSeconds"},
		{"bad shutter", func(c *Config) { c.Shutter.Mode = "blur" }, "shutter.mode"},
	}

	for _, c := range cases {
		cfg := Default()
		c.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected an error", c.name)
			continue
		}
		var ce *engine.ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("%s: error %v is not a ConfigError", c.name, err)
			continue
		}
		if ce.Field != c.field {
			t.Errorf("%s: field = %q, want %q", c.name, ce.Field, c.field)
		}
	}
}

func TestValidateClampsADSR(t *testing.T) {
	cfg := Default()
	cfg.ADSR = engine.ADSR{Attack: -1, Decay: 0.1, Sustain: 5, Release: 0.2}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.ADSR.Attack != 0 || cfg.ADSR.Sustain != 1 {
		t.Errorf("adsr not clamped: %+v", cfg.ADSR)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg.FPS != def.FPS || cfg.Shutter != def.Shutter || cfg.Trigger.Mode != def.Trigger.Mode {
		t.Errorf("missing config loaded %+v, want defaults", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Default()
	cfg.FPS = 60
	cfg.ColorMode = true
	cfg.Trigger.Mode = engine.TriggerAllNotes
	cfg.ADSR = engine.ADSR{Attack: 0.05, Decay: 0.1, Sustain: 0.7, Release: 0.2}
	cfg.Shutter = engine.ShutterConfig{Mode: engine.ShutterAvg, Subsamples: 4}
	if err := cfg.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.FPS != 60 || !loaded.ColorMode {
		t.Errorf("loaded = %+v, want saved values", loaded)
	}
	if loaded.Trigger.Mode != engine.TriggerAllNotes {
		t.Errorf("trigger mode = %s, want all_notes", loaded.Trigger.Mode)
	}
	if loaded.ADSR != cfg.ADSR {
		t.Errorf("adsr = %+v, want %+v", loaded.ADSR, cfg.ADSR)
	}
	if loaded.Shutter != cfg.Shutter {
		t.Errorf("shutter = %+v, want %+v", loaded.Shutter, cfg.Shutter)
	}
}
