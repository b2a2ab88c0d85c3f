package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"speedcam/annotation"
	"speedcam/config"
	"speedcam/metrics"
	"speedcam/overlay"
	"speedcam/pipeline"
	"speedcam/video"

	"gocv.io/x/gocv"
)

var (
	// Command-line flags, applied on top of -config
	configPath      = flag.String("config", "", "YAML configuration file (flags given on the command line override it)\n\t\tExample: -config=speedcam.yaml")
	mode            = flag.String("mode", config.ModeMeasure, "Run mode: measure, similarity, speed or extract")
	inputVideo      = flag.String("input", "", "Input video file (measure and extract modes)\n\t\tExample: -input=videos/car.mp4")
	frameA          = flag.Int("frame-a", 0, "Index of the first reference frame")
	frameB          = flag.Int("frame-b", -1, "Index of the second reference frame (-1 selects the last frame)")
	referenceMeters = flag.Float64("reference-meters", 0, "Known real length between each T/D pair in meters (required for measure)\n\t\tExample: -reference-meters=4.5 for a 4.5 m car")
	elapsedSeconds  = flag.Float64("elapsed", 0, "Elapsed seconds between the two frames (default: derived from frame indices and frame rate)")
	imageA          = flag.String("image-a", "", "First image (similarity mode)")
	imageB          = flag.String("image-b", "", "Second image (similarity mode)")
	distanceMeters  = flag.Float64("distance", 0, "Distance travelled in meters (speed mode)")
	timeSeconds     = flag.Float64("time", 0, "Time taken in seconds (speed mode)")
	extractInterval = flag.Int("extract-interval", 1000, "Save every N-th frame (extract mode, 0 saves no stills when -extract-video is set)")
	extractVideo    = flag.String("extract-video", "", "Also write every frame to this XVID video (extract mode)\n\t\tExample: -extract-video=output.avi")
	outputDir       = flag.String("output", "output", "Directory for reports, composites and extracted frames")
	headless        = flag.Bool("headless", false, "Do not open a window; points are read from stdin or the config file")
	metricsAddr     = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while running\n\t\tExample: -metrics-addr=:9108")
	metricsFile     = flag.String("metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	debugMode       = flag.Bool("debug", false, "Write per-session debug logs to /tmp/speedcam-debug")
	debugVerbose    = flag.Bool("debug-verbose", false, "Enable verbose debug output")

	// Global debug logger instance
	globalDebugLogger *DebugLogger
)

// debugMsg is the global convenience function for unified debug logging
func debugMsg(component, message string, sessionID ...string) {
	if globalDebugLogger != nil {
		globalDebugLogger.debugMsg(component, message, sessionID...)
	} else {
		fmt.Printf("[%s][%s] %s\n", time.Now().Format("15:04:05.000"), component, message)
	}
}

// debugMsgVerbose only outputs if debug-verbose flag is enabled
func debugMsgVerbose(component, message string, sessionID ...string) {
	if globalDebugLogger != nil {
		globalDebugLogger.debugMsgVerbose(component, message, sessionID...)
	} else if *debugVerbose {
		debugMsg(component, message, sessionID...)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "\n🚗 speedcam - vehicle speed from two video frames")
	fmt.Fprintln(out, "================================================================")
	fmt.Fprintln(out, "\n💡 USAGE EXAMPLES:")
	fmt.Fprintln(out, "\n  Measure (mark T1, D1, T2, D2 on the blended frames):")
	fmt.Fprintln(out, "    ./speedcam -input videos/car.mp4 -frame-a 0 -frame-b 45 -reference-meters 4.5")
	fmt.Fprintln(out, "\n  Measure without a window, points typed on stdin as \"x y\":")
	fmt.Fprintln(out, "    ./speedcam -input videos/car.mp4 -reference-meters 4.5 -headless")
	fmt.Fprintln(out, "\n  Measure from a config file with pre-marked points:")
	fmt.Fprintln(out, "    ./speedcam -config speedcam.yaml -headless")
	fmt.Fprintln(out, "\n  Frame similarity:")
	fmt.Fprintln(out, "    ./speedcam -mode similarity -image-a frame_1000.jpg -image-b frame_2000.jpg")
	fmt.Fprintln(out, "\n  Speed from a known distance and time:")
	fmt.Fprintln(out, "    ./speedcam -mode speed -distance 100 -time 10")
	fmt.Fprintln(out, "\n  Extract every 500th frame:")
	fmt.Fprintln(out, "    ./speedcam -mode extract -input videos/car.mp4 -extract-interval 500 -output frames")
	fmt.Fprintln(out, "\n  Re-encode a copy with live preview (q stops):")
	fmt.Fprintln(out, "    ./speedcam -mode extract -input videos/car.mp4 -extract-interval 0 -extract-video output.avi")
	fmt.Fprintln(out, "\n  Export metrics:")
	fmt.Fprintln(out, "    ./speedcam -input videos/car.mp4 -reference-meters 4.5 -metrics-file speedcam.prom")
	fmt.Fprintln(out, "\n⌨️  MARKING KEYS: Enter finish, Esc cancel, u undo")
	fmt.Fprintln(out, "\n🔧 FLAGS:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "")
}

func main() {
	flag.Usage = usage
	flag.Parse()

	globalDebugLogger = NewDebugLogger(*debugMode, *debugVerbose, "/tmp/speedcam-debug", os.Stdout)

	video.SetDebugFunction(debugMsg)
	overlay.SetDebugFunction(debugMsg)
	annotation.SetDebugFunction(debugMsg)
	pipeline.SetDebugFunction(debugMsg)

	err := run()
	globalDebugLogger.Close()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Println("Use -h for usage examples and flag descriptions")
		return fmt.Errorf("configuration error: %w", err)
	}
	debugMsgVerbose("CONFIG", fmt.Sprintf("%+v", *cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			debugMsg("METRICS", "Serving /metrics on "+cfg.Metrics.Addr)
			if err := m.StartServer(ctx, cfg.Metrics.Addr); err != nil {
				debugMsg("METRICS", fmt.Sprintf("Metrics server stopped: %v", err))
			}
		}()
	}
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				debugMsg("METRICS", fmt.Sprintf("Failed to write %s: %v", cfg.Metrics.Textfile, err))
			}
		}()
	}

	switch cfg.Mode {
	case config.ModeSimilarity:
		rep, err := pipeline.CompareFiles(cfg.Similarity.ImageA, cfg.Similarity.ImageB, m)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Similarity (NCC) between %s and %s: %.4f\n",
			filepath.Base(cfg.Similarity.ImageA), filepath.Base(cfg.Similarity.ImageB), *rep.Similarity)
		return nil

	case config.ModeSpeed:
		rep, err := pipeline.KnownSpeed(cfg.Speed.DistanceMeters, cfg.Speed.TimeSeconds, m)
		if err != nil {
			return err
		}
		rep.PrintTable(os.Stdout)
		return nil

	case config.ModeExtract:
		source, err := video.Open(cfg.Video.Path)
		if err != nil {
			return err
		}
		defer source.Close()
		opts := video.ExtractOptions{VideoPath: cfg.Video.ExtractOutput}
		if cfg.Video.ExtractInterval > 0 {
			opts.Dir = cfg.Output.Dir
			opts.Interval = cfg.Video.ExtractInterval
		}
		if !cfg.Display.Headless {
			window := gocv.NewWindow(cfg.Display.WindowName)
			defer window.Close()
			opts.Preview = window
		}
		res, err := pipeline.Extract(source, opts, m)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Saved %d stills from %d frames to %s\n", res.Written, res.Read, cfg.Output.Dir)
		if opts.VideoPath != "" {
			fmt.Printf("🎞️  Re-encoded copy written to %s\n", opts.VideoPath)
		}
		if res.Stopped {
			fmt.Println("⏹️  Stopped early from the preview window")
		}
		return nil
	}

	return measure(ctx, cfg, m)
}

func measure(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
	source, err := video.Open(cfg.Video.Path)
	if err != nil {
		return err
	}
	defer source.Close()

	p := pipeline.New(source, m, pipeline.Options{
		FrameA:          cfg.Video.FrameA,
		FrameB:          cfg.Video.FrameB,
		ReferenceMeters: cfg.Calibration.ReferenceMeters,
		ElapsedSeconds:  cfg.Calibration.ElapsedSeconds,
		AlphaA:          cfg.Overlay.AlphaA,
		AlphaB:          cfg.Overlay.AlphaB,
		PollDelayMs:     cfg.Display.PollDelayMs,
		OutputDir:       cfg.Output.Dir,
		ThumbnailWidth:  cfg.Output.ThumbnailWidth,
	})

	if !cfg.Display.Headless {
		window := gocv.NewWindow(cfg.Display.WindowName)
		defer window.Close()
		p.SetDisplay(window)
	}

	var events <-chan annotation.Event
	if len(cfg.Calibration.Points) > 0 {
		events = annotation.Replay(presetEvents(cfg.Calibration.Points)...)
		debugMsg("MAIN", fmt.Sprintf("Using %d pre-marked points from config", len(cfg.Calibration.Points)))
	} else {
		fmt.Println("\n📍 Mark T1 (rear, first instant), D1 (front, first instant), T2 and D2 (second instant)")
		fmt.Println("   Type \"x y\" per point, 'undo' to remove the last one, 'done' (or Enter in the window) to finish, 'esc' to cancel")
		events = annotation.ScanEvents(ctx, os.Stdin)
	}

	rep, err := p.Measure(ctx, events)
	if err != nil {
		if errors.Is(err, annotation.ErrCancelled) && rep != nil {
			fmt.Printf("⚠️  Marking cancelled with %d of 4 points placed\n", len(rep.Points))
		}
		return err
	}

	rep.PrintTable(os.Stdout)
	if rep.CompositePath != "" {
		fmt.Printf("✅ Report saved to: %s\n", filepath.Join(cfg.Output.Dir, rep.FileName()))
		fmt.Printf("📸 Composite saved to: %s\n", rep.CompositePath)
	}
	return nil
}

func presetEvents(points [][]int) []annotation.Event {
	events := make([]annotation.Event, 0, len(points)+1)
	for _, p := range points {
		events = append(events, annotation.Click(p[0], p[1]))
	}
	return append(events, annotation.Event{Kind: annotation.EventFinish})
}

// loadConfig builds the configuration from defaults, the optional file and the explicitly set flags
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		debugMsg("CONFIG", "Loaded "+*configPath)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = *mode
		case "input":
			cfg.Video.Path = *inputVideo
		case "frame-a":
			cfg.Video.FrameA = *frameA
		case "frame-b":
			cfg.Video.FrameB = *frameB
		case "reference-meters":
			cfg.Calibration.ReferenceMeters = *referenceMeters
		case "elapsed":
			cfg.Calibration.ElapsedSeconds = *elapsedSeconds
		case "image-a":
			cfg.Similarity.ImageA = *imageA
		case "image-b":
			cfg.Similarity.ImageB = *imageB
		case "distance":
			cfg.Speed.DistanceMeters = *distanceMeters
		case "time":
			cfg.Speed.TimeSeconds = *timeSeconds
		case "extract-interval":
			cfg.Video.ExtractInterval = *extractInterval
		case "extract-video":
			cfg.Video.ExtractOutput = *extractVideo
		case "output":
			cfg.Output.Dir = *outputDir
		case "headless":
			cfg.Display.Headless = *headless
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "metrics-file":
			cfg.Metrics.Textfile = *metricsFile
		}
	})

	return cfg, nil
}
