package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalYAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds string", yaml: "poll_interval: 30s", want: 30 * time.Second},
		{name: "minutes string", yaml: "poll_interval: 5m", want: 5 * time.Minute},
		{name: "bare integer is seconds", yaml: "poll_interval: 45", want: 45 * time.Second},
		{name: "garbage rejected", yaml: "poll_interval: soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var cfg ReminderConfig
			err := yaml.Unmarshal([]byte(tt.yaml), &cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("unmarshal(%q) succeeded, want error", tt.yaml)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal(%q) failed: %v", tt.yaml, err)
			}
			if got := cfg.PollInterval.Std(); got != tt.want {
				t.Errorf("poll_interval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() on missing file failed: %v", err)
	}
	if cfg.Name != "Clover" {
		t.Errorf("Name = %q, want default %q", cfg.Name, "Clover")
	}
	if got := cfg.Reminders.PollInterval.Std(); got != 30*time.Second {
		t.Errorf("poll interval = %v, want 30s", got)
	}
	if got := cfg.Monitor.MaxCPUPercent; got != 30.0 {
		t.Errorf("max cpu = %v, want 30.0", got)
	}
	if !cfg.Fallback.Enabled {
		t.Error("fallback disabled by default, want enabled")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
name: Jarvis
wake_word:
  phrase: "hey jarvis"
  keywords: [jarvis, computer]
  sensitivity: 0.7
reminders:
  poll_interval: 10s
monitor:
  enabled: true
  interval: 2s
  max_memory_mb: 512
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Name != "Jarvis" {
		t.Errorf("Name = %q, want %q", cfg.Name, "Jarvis")
	}
	if got := len(cfg.WakeWord.Keywords); got != 2 {
		t.Errorf("keywords = %d entries, want 2", got)
	}
	if got := cfg.Reminders.PollInterval.Std(); got != 10*time.Second {
		t.Errorf("poll interval = %v, want 10s", got)
	}
	if got := cfg.Monitor.MaxMemoryMB; got != 512 {
		t.Errorf("max memory = %v, want 512", got)
	}
	// Untouched sections keep their defaults.
	if got := cfg.Capture.Timeout.Std(); got != 8*time.Second {
		t.Errorf("capture timeout = %v, want default 8s", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "zero poll interval", body: "reminders:\n  poll_interval: 0s\n"},
		{name: "sensitivity out of range", body: "wake_word:\n  sensitivity: 1.5\n"},
		{name: "zero capture timeout", body: "capture:\n  timeout: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("writing fixture: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() accepted invalid config, want error")
			}
		})
	}
}

func TestSaveOmitsSecrets(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Responder.APIKey = "sk-live-secret"
	cfg.Notify.Discord.Token = "bot-token"
	cfg.Weather.APIKey = "owm-key"

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	for _, secret := range []string{"sk-live-secret", "bot-token", "owm-key"} {
		if strings.Contains(string(raw), secret) {
			t.Errorf("saved config contains secret %q", secret)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("file mode = %o, want 600", got)
	}

	// Only the file is sanitized; the in-memory config keeps its values.
	if cfg.Responder.APIKey != "sk-live-secret" {
		t.Error("Save() mutated the in-memory config")
	}
}

func TestVaultRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.vault")

	v := NewVault(path)
	if err := v.Create("correct horse"); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := v.Set(SecretResponderKey, "sk-test-123"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	// Fresh instance, as after a restart.
	v2 := NewVault(path)
	if v2.IsUnlocked() {
		t.Fatal("new vault instance reports unlocked")
	}
	if err := v2.Unlock("correct horse"); err != nil {
		t.Fatalf("Unlock() failed: %v", err)
	}
	got, err := v2.Get(SecretResponderKey)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != "sk-test-123" {
		t.Errorf("Get() = %q, want %q", got, "sk-test-123")
	}

	names := v2.List()
	if len(names) != 1 || names[0] != SecretResponderKey {
		t.Errorf("List() = %v, want [%s]", names, SecretResponderKey)
	}
}

func TestVaultWrongPassword(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.vault")
	v := NewVault(path)
	if err := v.Create("right"); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	v2 := NewVault(path)
	if err := v2.Unlock("wrong"); err == nil {
		t.Error("Unlock() with wrong password succeeded")
	}
}

func TestVaultLockedOperations(t *testing.T) {
	t.Parallel()

	v := NewVault(filepath.Join(t.TempDir(), "test.vault"))
	if err := v.Set("k", "v"); err != ErrVaultLocked {
		t.Errorf("Set() on locked vault = %v, want ErrVaultLocked", err)
	}
	if _, err := v.Get("k"); err != ErrVaultLocked {
		t.Errorf("Get() on locked vault = %v, want ErrVaultLocked", err)
	}
}
