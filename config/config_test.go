package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speedcam.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
video:
  path: clip.mp4
  frame_b: 25
calibration:
  reference_meters: 4.5
  points:
    - [10, 10]
    - [10, 110]
overlay:
  alpha_b: 0.7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != ModeMeasure {
		t.Errorf("Mode = %q, want default %q", cfg.Mode, ModeMeasure)
	}
	if cfg.Video.Path != "clip.mp4" || cfg.Video.FrameB != 25 {
		t.Errorf("Video = %+v", cfg.Video)
	}
	if cfg.Overlay.AlphaA != 0.5 || cfg.Overlay.AlphaB != 0.7 {
		t.Errorf("Overlay = %+v, want alpha_a default 0.5 and alpha_b 0.7", cfg.Overlay)
	}
	if len(cfg.Calibration.Points) != 2 || cfg.Calibration.Points[1][1] != 110 {
		t.Errorf("Points = %v", cfg.Calibration.Points)
	}
	if cfg.Display.WindowName != "speedcam" {
		t.Errorf("WindowName = %q, want default", cfg.Display.WindowName)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
	if _, err := Load(writeConfig(t, "video: [not, a, map")); err == nil {
		t.Error("Load() of malformed YAML should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid measure",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing video",
			mutate:  func(c *Config) { c.Video.Path = "" },
			wantErr: "video.path",
		},
		{
			name:    "missing reference distance",
			mutate:  func(c *Config) { c.Calibration.ReferenceMeters = 0 },
			wantErr: "reference_meters",
		},
		{
			name:    "same frames without elapsed override",
			mutate:  func(c *Config) { c.Video.FrameB = c.Video.FrameA },
			wantErr: "same frame",
		},
		{
			name: "same frames with elapsed override",
			mutate: func(c *Config) {
				c.Video.FrameB = c.Video.FrameA
				c.Calibration.ElapsedSeconds = 1.5
			},
		},
		{
			name:    "alpha out of range",
			mutate:  func(c *Config) { c.Overlay.AlphaA = 1.2 },
			wantErr: "alpha_a",
		},
		{
			name:    "malformed point",
			mutate:  func(c *Config) { c.Calibration.Points = [][]int{{1, 2, 3}} },
			wantErr: "points[0]",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = "track" },
			wantErr: "unknown mode",
		},
		{
			name: "speed mode",
			mutate: func(c *Config) {
				c.Mode = ModeSpeed
				c.Speed = SpeedConfig{DistanceMeters: 100, TimeSeconds: 10}
			},
		},
		{
			name: "speed mode zero time",
			mutate: func(c *Config) {
				c.Mode = ModeSpeed
				c.Speed = SpeedConfig{DistanceMeters: 100}
			},
			wantErr: "time_seconds",
		},
		{
			name:    "similarity mode missing image",
			mutate:  func(c *Config) { c.Mode = ModeSimilarity; c.Similarity.ImageA = "a.jpg" },
			wantErr: "image_b",
		},
		{
			name:    "extract mode zero interval",
			mutate:  func(c *Config) { c.Mode = ModeExtract; c.Video.ExtractInterval = 0 },
			wantErr: "extract_interval",
		},
		{
			name: "extract mode video only",
			mutate: func(c *Config) {
				c.Mode = ModeExtract
				c.Video.ExtractInterval = 0
				c.Video.ExtractOutput = "copy.avi"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Video.Path = "clip.mp4"
			cfg.Video.FrameB = 25
			cfg.Calibration.ReferenceMeters = 4.5
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadExtractOutput(t *testing.T) {
	path := writeConfig(t, `
mode: extract
video:
  path: clip.mp4
  extract_interval: 0
  extract_output: copy.avi
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Video.ExtractOutput != "copy.avi" || cfg.Video.ExtractInterval != 0 {
		t.Errorf("Video = %+v", cfg.Video)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidateLeavesConfigUnchanged(t *testing.T) {
	tests := []struct {
		name        string
		pollDelayMs int
	}{
		{"zero", 0},
		{"negative", -5},
		{"set", 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Video.Path = "clip.mp4"
			cfg.Video.FrameB = 25
			cfg.Calibration.ReferenceMeters = 4.5
			cfg.Display.PollDelayMs = tt.pollDelayMs
			before := *cfg

			if err := Validate(cfg); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if cfg.Display != before.Display || cfg.Video != before.Video {
				t.Errorf("Validate() changed the config: got %+v, want %+v", cfg.Display, before.Display)
			}
		})
	}
}
