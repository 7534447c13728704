package smarthome

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testRegistry = `
devices:
  - id: hue-living-1
    name: Living Room Light
    kind: light
    room: living room
    aliases: [lounge light]
    commands:
      on: turn_on
      off: turn_off
  - id: hue-kitchen-1
    name: kitchen light
    kind: light
    room: kitchen
  - id: plug-fan-1
    name: bedroom fan
    kind: fan
    room: bedroom
  - id: ""
    name: broken entry
`

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte(testRegistry), 0o644); err != nil {
		t.Fatalf("writing registry: %v", err)
	}
	r, err := Load(path, discardLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return r
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	t.Parallel()

	r := loadTestRegistry(t)
	if got := len(r.Devices()); got != 3 {
		t.Errorf("loaded %d devices, want 3 (broken entry skipped)", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	r, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), discardLogger())
	if err != nil {
		t.Fatalf("Load() on missing file: %v", err)
	}
	if len(r.Devices()) != 0 {
		t.Error("missing file should yield an empty registry")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte("devices: {not: a list"), 0o644); err != nil {
		t.Fatalf("writing registry: %v", err)
	}
	if _, err := Load(path, discardLogger()); err == nil {
		t.Fatal("Load() should reject malformed yaml")
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	r := loadTestRegistry(t)

	tests := []struct {
		name      string
		utterance string
		wantID    string
		wantOK    bool
	}{
		{name: "full name", utterance: "turn on the living room light", wantID: "hue-living-1", wantOK: true},
		{name: "name is case-insensitive", utterance: "Turn On The Kitchen Light", wantID: "hue-kitchen-1", wantOK: true},
		{name: "alias", utterance: "switch off the lounge light", wantID: "hue-living-1", wantOK: true},
		{name: "unique kind", utterance: "turn on the fan", wantID: "plug-fan-1", wantOK: true},
		{name: "ambiguous kind", utterance: "turn off the light", wantOK: false},
		{name: "kind narrowed by room", utterance: "turn off the light in the kitchen", wantID: "hue-kitchen-1", wantOK: true},
		{name: "unknown device", utterance: "turn on the sauna", wantOK: false},
		{name: "no word boundary match", utterance: "the spotlights are nice", wantOK: false},
		{name: "empty utterance", utterance: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, ok := r.Find(tt.utterance)
			if ok != tt.wantOK {
				t.Fatalf("Find(%q) ok = %v, want %v", tt.utterance, ok, tt.wantOK)
			}
			if ok && d.ID != tt.wantID {
				t.Errorf("Find(%q) = %q, want %q", tt.utterance, d.ID, tt.wantID)
			}
		})
	}
}

func TestFindPrefersLongestName(t *testing.T) {
	t.Parallel()

	r := loadTestRegistry(t)

	// "kitchen light" and the kind word "light" both occur; the full name
	// must win over any kind-tier guess.
	d, ok := r.Find("please turn the kitchen light on")
	if !ok || d.ID != "hue-kitchen-1" {
		t.Errorf("Find() = %q (ok=%v), want hue-kitchen-1", d.ID, ok)
	}
}

func TestCommandMapping(t *testing.T) {
	t.Parallel()

	r := loadTestRegistry(t)

	living, ok := r.Find("living room light")
	if !ok {
		t.Fatal("living room light not found")
	}
	if got := r.Command(living, "on"); got != "turn_on" {
		t.Errorf("Command(on) = %q, want turn_on", got)
	}
	if got := r.Command(living, "dim"); got != "dim" {
		t.Errorf("unmapped verb Command(dim) = %q, want passthrough", got)
	}

	fan, ok := r.Find("bedroom fan")
	if !ok {
		t.Fatal("bedroom fan not found")
	}
	if got := r.Command(fan, "on"); got != "on" {
		t.Errorf("device without command map Command(on) = %q, want passthrough", got)
	}
}
