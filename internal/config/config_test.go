package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestTimeoutPolicyDurationFor(t *testing.T) {
	policy := DefaultConfig().Timeouts

	tests := []struct {
		name string
		size int64
		want time.Duration
	}{
		{"empty file", 0, 180 * time.Second},
		{"just under 1MB", 1<<20 - 1, 180 * time.Second},
		{"exactly 1MB", 1 << 20, 300 * time.Second},
		{"just under 10MB", 10<<20 - 1, 300 * time.Second},
		{"exactly 10MB", 10 << 20, 720 * time.Second},
		{"just under 50MB", 50<<20 - 1, 720 * time.Second},
		{"exactly 50MB", 50 << 20, 1320 * time.Second},
		{"very large", 2 << 30, 1320 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.DurationFor(tt.size)
			if got != tt.want {
				t.Errorf("DurationFor(%d) = %v, want %v", tt.size, got, tt.want)
			}
		})
	}
}

func TestTimeoutPolicyNonDecreasing(t *testing.T) {
	policy := DefaultConfig().Timeouts

	sizes := []int64{0, 1, 512 << 10, 1 << 20, 5 << 20, 10 << 20, 25 << 20, 50 << 20, 1 << 30}
	prev := time.Duration(0)
	for _, size := range sizes {
		got := policy.DurationFor(size)
		if got < prev {
			t.Fatalf("DurationFor(%d) = %v, smaller than %v for a smaller file", size, got, prev)
		}
		prev = got
	}
}

func TestProfileByName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"known profile", "high", "high"},
		{"case insensitive", "HIGH", "high"},
		{"padded", " compact ", "compact"},
		{"unknown falls back", "ultra", "balanced"},
		{"empty falls back", "", "balanced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProfileByName(tt.input)
			if got.Name != tt.want {
				t.Errorf("ProfileByName(%q).Name = %q, want %q", tt.input, got.Name, tt.want)
			}
			if got.DPI <= 0 || got.JPEGQuality <= 0 || got.Preset == "" {
				t.Errorf("ProfileByName(%q) returned incomplete profile: %+v", tt.input, got)
			}
		})
	}
}

func TestIsValidProfile(t *testing.T) {
	for _, name := range ProfileNames() {
		if !IsValidProfile(name) {
			t.Errorf("IsValidProfile(%q) = false for a defined profile", name)
		}
	}
	for _, name := range []string{"", "ultra", "medium", "best"} {
		if IsValidProfile(name) {
			t.Errorf("IsValidProfile(%q) = true, want false", name)
		}
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := &Config{}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on empty config failed: %v", err)
	}

	if cfg.Quality != DefaultProfileName {
		t.Errorf("Quality = %q, want %q", cfg.Quality, DefaultProfileName)
	}
	if cfg.Output.Suffix != DefaultOutputSuffix {
		t.Errorf("Output.Suffix = %q, want %q", cfg.Output.Suffix, DefaultOutputSuffix)
	}
	if cfg.Process.PollInterval != 10*time.Second {
		t.Errorf("Process.PollInterval = %v, want 10s", cfg.Process.PollInterval)
	}
	if cfg.Process.GraceWindow != 10*time.Second {
		t.Errorf("Process.GraceWindow = %v, want 10s", cfg.Process.GraceWindow)
	}
	if cfg.Process.RemoveAttempts != 3 {
		t.Errorf("Process.RemoveAttempts = %d, want 3", cfg.Process.RemoveAttempts)
	}
	if cfg.Process.RemoveRetryDelay != 500*time.Millisecond {
		t.Errorf("Process.RemoveRetryDelay = %v, want 500ms", cfg.Process.RemoveRetryDelay)
	}
	if cfg.Timeouts.DurationFor(0) != 180*time.Second {
		t.Errorf("default Timeouts.DurationFor(0) = %v, want 180s", cfg.Timeouts.DurationFor(0))
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown quality", func(c *Config) { c.Quality = "ultra" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"decreasing timeout buckets", func(c *Config) {
			c.Timeouts.SmallExtra = 200 * time.Second
			c.Timeouts.MediumExtra = 100 * time.Second
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestOutputNaming(t *testing.T) {
	cfg := DefaultConfig()

	gotFile := cfg.OutputFileName(filepath.Join("scans", "report.pdf"))
	if gotFile != "report_optimized_bw.pdf" {
		t.Errorf("OutputFileName = %q, want %q", gotFile, "report_optimized_bw.pdf")
	}

	gotDir := cfg.OutputDirName("scans" + string(filepath.Separator))
	if gotDir != "scans_optimized_bw" {
		t.Errorf("OutputDirName with trailing separator = %q, want %q", gotDir, "scans_optimized_bw")
	}

	nested := filepath.Join("archive", "scans")
	if got := cfg.OutputDirName(nested); got != nested+"_optimized_bw" {
		t.Errorf("OutputDirName(%q) = %q, want %q", nested, got, nested+"_optimized_bw")
	}
}
