package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidAPIPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_BackoffMaxBelowBase(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Backoff.Base = time.Minute
	cfg.Backoff.Max = time.Second

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for backoff max below base")
	}
}

func TestValidate_NegativeProbeTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Monitor.ProbeTimeout = -time.Second

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative probe timeout")
	}
}

func TestDescriptors(t *testing.T) {
	tests := []struct {
		name   string
		goos   string
		cfg    Config
		wantMP []string
	}{
		{
			name:   "darwin uses /Volumes",
			goos:   "darwin",
			cfg:    Config{Host: "nas.local", Shares: []ShareConfig{{Name: "docs"}, {Name: "media"}}},
			wantMP: []string{"/Volumes/docs", "/Volumes/media"},
		},
		{
			name:   "linux uses /mnt/<host>",
			goos:   "linux",
			cfg:    Config{Host: "nas.local", Shares: []ShareConfig{{Name: "docs"}}},
			wantMP: []string{"/mnt/nas.local/docs"},
		},
		{
			name:   "configured root",
			goos:   "darwin",
			cfg:    Config{Host: "nas.local", Mount: MountConfig{Root: "/Users/me/mnt"}, Shares: []ShareConfig{{Name: "docs"}}},
			wantMP: []string{"/Users/me/mnt/docs"},
		},
		{
			name:   "explicit mount point is cleaned",
			goos:   "linux",
			cfg:    Config{Host: "nas.local", Shares: []ShareConfig{{Name: "docs", MountPoint: "/srv/docs/"}}},
			wantMP: []string{"/srv/docs"},
		},
		{
			name:   "per-share host",
			goos:   "linux",
			cfg:    Config{Shares: []ShareConfig{{Name: "docs", Host: "10.0.0.2"}}},
			wantMP: []string{"/mnt/10.0.0.2/docs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descs, err := tt.cfg.descriptors(tt.goos)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(descs) != len(tt.wantMP) {
				t.Fatalf("Expected %d descriptors, got %d", len(tt.wantMP), len(descs))
			}
			for i, d := range descs {
				if d.MountPoint != tt.wantMP[i] {
					t.Errorf("descriptor %d: expected mount point %q, got %q", i, tt.wantMP[i], d.MountPoint)
				}
			}
		})
	}
}

func TestDescriptors_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		problem string
	}{
		{
			name:    "no shares",
			cfg:     Config{Host: "nas.local"},
			problem: "no shares configured",
		},
		{
			name:    "duplicate mount point",
			cfg:     Config{Host: "nas.local", Shares: []ShareConfig{{Name: "docs"}, {Name: "other", MountPoint: "/Volumes/docs/"}}},
			problem: "same mount point",
		},
		{
			name:    "missing host",
			cfg:     Config{Shares: []ShareConfig{{Name: "docs"}}},
			problem: "no host",
		},
		{
			name:    "invalid host",
			cfg:     Config{Host: "not a host!", Shares: []ShareConfig{{Name: "docs"}}},
			problem: "invalid host",
		},
		{
			name:    "relative mount point",
			cfg:     Config{Host: "nas.local", Shares: []ShareConfig{{Name: "docs", MountPoint: "mnt/docs"}}},
			problem: "not absolute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.descriptors("darwin")
			if err == nil {
				t.Fatal("Expected configuration error")
			}
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected *ConfigurationError, got %T", err)
			}
			if !strings.Contains(cerr.Error(), tt.problem) {
				t.Errorf("Expected problem %q in %q", tt.problem, cerr.Error())
			}
		})
	}
}

func TestDescriptors_ReportsAllProblems(t *testing.T) {
	cfg := Config{Shares: []ShareConfig{{Name: "a"}, {Name: "b"}}}

	_, err := cfg.descriptors("linux")
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected *ConfigurationError, got %v", err)
	}
	if len(cerr.Problems) != 2 {
		t.Errorf("Expected 2 problems, got %v", cerr.Problems)
	}
}
