package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"midiphoria/config"
	"midiphoria/engine"
	"midiphoria/export"
	"midiphoria/live"
	"midiphoria/logging"
	"midiphoria/midi"
	"midiphoria/theme"
	"midiphoria/timeline"
	"midiphoria/tui"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "live":
		err = runLive(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "ports":
		err = runPorts()
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("midiphoria - MIDI-driven visual gate/envelope engine")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  live    - live preview (TUI), optional session recording")
	fmt.Println("  export  - deterministic frame export from a recording or .mid file")
	fmt.Println("  ports   - list MIDI input ports")
}

// triggerFlags holds the CLI overrides shared by live and export.
type triggerFlags struct {
	mode       string
	mapNote    int
	mapCC      int
	mapChannel int
	noteSet    string
	attack     float64
	decay      float64
	sustain    float64
	release    float64
	colorMode  bool
	velocity   bool
	palette    string
}

func (t *triggerFlags) register(fs *flag.FlagSet, cfg config.Config) {
	fs.StringVar(&t.mode, "trigger-mode", string(cfg.Trigger.Mode), "trigger mode: mapped, all_notes, note_set")
	fs.IntVar(&t.mapNote, "map-note", -1, "mapped trigger note (0-127)")
	fs.IntVar(&t.mapCC, "map-cc", -1, "mapped trigger CC number (0-127)")
	fs.IntVar(&t.mapChannel, "map-channel", int(cfg.Trigger.Mapping.Channel), "mapped trigger channel (1-16)")
	fs.StringVar(&t.noteSet, "note-set", "", "comma-separated note numbers for note_set mode")
	fs.Float64Var(&t.attack, "attack", cfg.ADSR.Attack, "envelope attack seconds")
	fs.Float64Var(&t.decay, "decay", cfg.ADSR.Decay, "envelope decay seconds")
	fs.Float64Var(&t.sustain, "sustain", cfg.ADSR.Sustain, "envelope sustain level 0-1")
	fs.Float64Var(&t.release, "release", cfg.ADSR.Release, "envelope release seconds")
	fs.BoolVar(&t.colorMode, "color", cfg.ColorMode, "per-note color mode")
	fs.BoolVar(&t.velocity, "velocity", cfg.VelocitySensitive, "velocity-sensitive brightness")
	fs.StringVar(&t.palette, "palette", cfg.Palette, "optional .gpl palette for note colors")
}

func (t *triggerFlags) apply(cfg *config.Config) error {
	cfg.Trigger.Mode = engine.TriggerMode(t.mode)
	if t.mapChannel >= 1 && t.mapChannel <= 16 {
		cfg.Trigger.Mapping.Channel = uint8(t.mapChannel)
	}
	if t.mapNote >= 0 {
		cfg.Trigger.Mapping.Kind = engine.MapNote
		cfg.Trigger.Mapping.Number = uint8(min(t.mapNote, 127))
	}
	if t.mapCC >= 0 {
		cfg.Trigger.Mapping.Kind = engine.MapCC
		cfg.Trigger.Mapping.Number = uint8(min(t.mapCC, 127))
	}
	if t.noteSet != "" {
		notes, err := parseByteList(t.noteSet, 0, 127)
		if err != nil {
			return fmt.Errorf("note-set: %w", err)
		}
		cfg.Trigger.NoteSet = nil
		for _, n := range notes {
			cfg.Trigger.AddNote(n)
		}
		cfg.Trigger.Mode = engine.TriggerNoteSet
	}
	cfg.ADSR = engine.ADSR{Attack: t.attack, Decay: t.decay, Sustain: t.sustain, Release: t.release}
	cfg.ADSR.Clamp()
	cfg.ColorMode = t.colorMode
	cfg.VelocitySensitive = t.velocity
	cfg.Palette = t.palette
	return nil
}

func runExport(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("export", flag.ExitOnError)
	recording := fs.String("recording", "", "JSONL session recording to replay")
	midiPath := fs.String("midi", "", ".mid file to render")
	outDir := fs.String("out", "frames", "output directory for .ppm frames (empty = discard)")
	start := fs.Float64("start", 0, "start time seconds")
	end := fs.Float64("end", 0, "end time seconds (0 = auto from duration mode + tail)")
	channels := fs.String("channels", "", "comma-separated MIDI channels 1-16 to keep (.mid only)")
	duration := fs.String("duration", string(cfg.Duration), "duration mode: events or file")
	noMeta := fs.Bool("no-meta", false, "ignore the recording's embedded state snapshot")
	verbose := fs.Bool("verbose", false, "debug logging")

	fs.Float64Var(&cfg.FPS, "fps", cfg.FPS, "output frame rate")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "frame width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "frame height")
	fs.Float64Var(&cfg.TailSeconds, "tail", cfg.TailSeconds, "seconds rendered past the end")
	shutterMode := fs.String("shutter", string(cfg.Shutter.Mode), "shutter mode: sample, max, avg")
	sampleAt := fs.String("sample-at", string(cfg.Shutter.SampleAt), "sample point: start, center, end")
	subsamples := fs.Int("subsamples", cfg.Shutter.Subsamples, "subsamples per frame for max/avg")

	var tf triggerFlags
	tf.register(fs, cfg)

	if err := fs.Parse(args); err != nil {
		return err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if (*recording == "") == (*midiPath == "") {
		return fmt.Errorf("export needs exactly one of -recording or -midi")
	}

	if err := tf.apply(&cfg); err != nil {
		return err
	}
	cfg.Duration = config.DurationMode(*duration)
	cfg.Shutter = engine.ShutterConfig{
		Mode:       engine.ShutterMode(*shutterMode),
		SampleAt:   engine.SamplePoint(*sampleAt),
		Subsamples: *subsamples,
	}

	var (
		src          timeline.Source
		fileDuration float64
	)
	switch {
	case *recording != "":
		meta, s, err := timeline.ReadRecording(*recording)
		if err != nil {
			return err
		}
		if !*noMeta && meta.State != nil {
			applyMeta(&cfg, *meta.State, set)
		}
		src = s
	default:
		chans, err := parseByteList(*channels, 1, 16)
		if err != nil {
			return fmt.Errorf("channels: %w", err)
		}
		fm, s, err := timeline.ReadSMF(*midiPath, chans)
		if err != nil {
			return err
		}
		src = s
		fileDuration = fm.Duration
	}

	log, err := logging.NewConsole(*verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	var enc export.Encoder = export.Discard{}
	if *outDir != "" {
		enc, err = export.NewPPMDir(*outDir, cfg.Width, cfg.Height)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exp := export.Exporter{
		Config:       cfg,
		Start:        *start,
		End:          *end,
		FileDuration: fileDuration,
		Log:          log,
	}
	res, err := exp.Run(ctx, src, enc)
	if err != nil {
		return err
	}

	fmt.Printf("exported %d frames at %g fps (%.3fs - %.3fs)\n", res.Frames, res.FPS, res.Start, res.End)
	return nil
}

// applyMeta restores the recording's state snapshot, keeping any values
// the user overrode explicitly on the command line.
func applyMeta(cfg *config.Config, snap timeline.StateSnapshot, set map[string]bool) {
	restored := *cfg
	snap.ApplyTo(&restored)

	triggerSet := set["trigger-mode"] || set["map-note"] || set["map-cc"] || set["map-channel"] || set["note-set"]
	if !triggerSet {
		cfg.Trigger = restored.Trigger
	}
	if !(set["attack"] || set["decay"] || set["sustain"] || set["release"]) {
		cfg.ADSR = restored.ADSR
	}
	if !set["color"] {
		cfg.ColorMode = restored.ColorMode
	}
	if !set["velocity"] {
		cfg.VelocitySensitive = restored.VelocitySensitive
	}
}

func runLive(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("live", flag.ExitOnError)
	port := fs.String("port", "", "substring to match a MIDI input port")
	allPorts := fs.Bool("all-ports", false, "open all MIDI input ports")
	generate := fs.Bool("generate", false, "use the internal test pulse instead of hardware")
	record := fs.String("record", "", "record the session to a JSONL file")

	var tf triggerFlags
	tf.register(fs, cfg)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := tf.apply(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.NewFile()
	if err != nil {
		return err
	}
	defer log.Sync()

	var mapper engine.ColorMapper = theme.HueWheel{}
	if cfg.Palette != "" {
		p, err := theme.LoadGPL(cfg.Palette)
		if err != nil {
			return fmt.Errorf("load palette: %w", err)
		}
		mapper = p
	}

	session := live.NewSession(cfg, mapper)
	defer session.Close()
	if *record != "" {
		if err := session.StartRecording(*record); err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events <-chan midi.TimedEvent
	if *generate {
		ch := make(chan midi.TimedEvent, 256)
		go midi.NewGenerator().Run(ctx, ch)
		events = ch
		log.Info("live starting", zap.String("input", "internal generator"))
	} else {
		in, err := midi.OpenInput(*port, *allPorts)
		if err != nil {
			return err
		}
		defer in.Close()
		events = in.Events()
		log.Info("live starting", zap.Strings("ports", in.Ports()))
	}

	p := tea.NewProgram(tui.NewModel(session, events), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func runPorts() error {
	names, err := midi.ListPorts()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no MIDI input ports found")
		return nil
	}
	for i, name := range names {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

// parseByteList parses "60,62,64" style lists with range checking.
func parseByteList(s string, lo, hi int) ([]uint8, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []uint8
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", part)
		}
		if n < lo || n > hi {
			return nil, fmt.Errorf("%d out of range %d-%d", n, lo, hi)
		}
		out = append(out, uint8(n))
	}
	return out, nil
}
