package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
)

func TestGetConfigDir(t *testing.T) {
	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir failed: %v", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home dir: %v", err)
	}

	expected := filepath.Join(home, DirName)
	if dir != expected {
		t.Errorf("Expected %s, got %s", expected, dir)
	}
}

func TestInitConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := InitConfig()
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	// Check defaults
	if cfg.Execution.Timeout != 300 {
		t.Errorf("Expected execution timeout 300, got %d", cfg.Execution.Timeout)
	}
	if cfg.Execution.MaxConcurrent != 4 {
		t.Errorf("Expected max concurrent 4, got %d", cfg.Execution.MaxConcurrent)
	}
	if cfg.Execution.Shell != "sh" {
		t.Errorf("Expected shell 'sh', got '%s'", cfg.Execution.Shell)
	}
	if cfg.Approval.Timeout != 600 {
		t.Errorf("Expected approval timeout 600, got %d", cfg.Approval.Timeout)
	}
	if cfg.Security.CommandLevel != security.ConfirmAlways {
		t.Errorf("Expected command level 'always', got '%s'", cfg.Security.CommandLevel)
	}
	if cfg.Retention.MaxCount != 100 || cfg.Retention.MaxAge != 300 {
		t.Errorf("Unexpected retention defaults: %+v", cfg.Retention)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected log level 'info', got '%s'", cfg.Log.Level)
	}
	if GetConfig() != cfg {
		t.Error("Expected GetConfig to return the loaded config")
	}
}

func TestSaveConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := &Config{
		Execution: ExecutionConfig{Timeout: 30, MaxConcurrent: 2, Shell: "bash"},
		Approval:  ApprovalConfig{Timeout: 60},
		Retention: RetentionConfig{MaxAge: 10, MaxCount: 5},
		Rate:      RateConfig{ProposalsPerSecond: 2, Burst: 3},
		Security: security.SecurityPolicy{
			CommandLevel:    security.ConfirmDangerous,
			RestrictedPaths: []string{"/etc"},
		},
		Log: LogConfig{Level: "debug"},
	}

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	// Verify file exists
	configDir, _ := GetConfigDir()
	configPath := filepath.Join(configDir, ConfigFileName+"."+ConfigFileType)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatalf("Config file was not created")
	}

	loaded, err := InitConfig()
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if loaded.Execution.Shell != "bash" || loaded.Execution.Timeout != 30 {
		t.Errorf("Execution config not round-tripped: %+v", loaded.Execution)
	}
	if loaded.Security.CommandLevel != security.ConfirmDangerous {
		t.Errorf("Expected 'dangerous', got '%s'", loaded.Security.CommandLevel)
	}
	if len(loaded.Security.RestrictedPaths) != 1 || loaded.Security.RestrictedPaths[0] != "/etc" {
		t.Errorf("Restricted paths not round-tripped: %v", loaded.Security.RestrictedPaths)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CMDGATE_EXECUTION_TIMEOUT", "42")
	t.Setenv("CMDGATE_SECURITY_COMMAND_LEVEL", "never")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Execution.Timeout != 42 {
		t.Errorf("Expected env timeout 42, got %d", cfg.Execution.Timeout)
	}
	if cfg.Security.CommandLevel != security.ConfirmNever {
		t.Errorf("Expected env level 'never', got '%s'", cfg.Security.CommandLevel)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero timeout", "execution:\n  timeout: 0\n"},
		{"unknown level", "security:\n  command_level: sometimes\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"malformed", "execution: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, ConfigFileName+"."+ConfigFileType)
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(dir); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestEngineOptions(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	opts := cfg.EngineOptions()
	if opts.ExecutionTimeout != 300*time.Second {
		t.Errorf("Expected 300s, got %v", opts.ExecutionTimeout)
	}
	if opts.DecisionTimeout != 600*time.Second {
		t.Errorf("Expected 600s, got %v", opts.DecisionTimeout)
	}
	if opts.Retention.MaxAge != 300*time.Second || opts.Retention.MaxCount != 100 {
		t.Errorf("Unexpected retention: %+v", opts.Retention)
	}
	if opts.ProposalsPerSecond != 0 {
		t.Error("Expected rate limit to be disabled by default")
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	if err != nil || level != slog.LevelDebug {
		t.Errorf("Expected debug, got %v (%v)", level, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
