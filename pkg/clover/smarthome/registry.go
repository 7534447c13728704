// Package smarthome holds the device registry behind the home-control
// commands. The registry only resolves spoken utterances to devices;
// talking to the actual hardware is the DeviceController's job.
package smarthome

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Device describes one controllable endpoint.
type Device struct {
	// ID is what the controller receives, e.g. "hue-living-1".
	ID string `yaml:"id"`

	// Name is the canonical spoken name, e.g. "living room light".
	Name string `yaml:"name"`

	// Kind groups devices for loose matching: "light", "outlet", "fan".
	Kind string `yaml:"kind,omitempty"`

	// Room disambiguates kind-only matches: "turn off the light in the
	// kitchen".
	Room string `yaml:"room,omitempty"`

	// Aliases are alternative spoken names.
	Aliases []string `yaml:"aliases,omitempty"`

	// Commands maps spoken verbs to vendor commands. Verbs without an
	// entry pass through unchanged.
	Commands map[string]string `yaml:"commands,omitempty"`
}

type registryFile struct {
	Devices []Device `yaml:"devices"`
}

// Registry resolves utterances to devices.
type Registry struct {
	devices []Device
	logger  *slog.Logger
}

// Load reads the registry file. A missing file yields an empty registry so
// the assistant runs without home control rather than failing to start.
func Load(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "smarthome")

	r := &Registry{logger: logger}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Info("smarthome: no device registry, home control disabled", "path", path)
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading device registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing device registry: %w", err)
	}

	for _, d := range file.Devices {
		if d.ID == "" || d.Name == "" {
			logger.Warn("smarthome: skipping device without id or name", "device", d)
			continue
		}
		d.Name = strings.ToLower(d.Name)
		d.Kind = strings.ToLower(d.Kind)
		d.Room = strings.ToLower(d.Room)
		for i, a := range d.Aliases {
			d.Aliases[i] = strings.ToLower(a)
		}
		r.devices = append(r.devices, d)
	}

	logger.Info("smarthome: registry loaded", "devices", len(r.devices), "path", path)
	return r, nil
}

// Devices returns the loaded devices.
func (r *Registry) Devices() []Device {
	return r.devices
}

// Find resolves an utterance to a device. Matching is tiered: the longest
// full name or alias wins; otherwise a kind word ("light") matches when it
// names exactly one device, or when the room mentioned alongside narrows it
// to one. Ambiguity is a miss, never a guess.
func (r *Registry) Find(utterance string) (Device, bool) {
	utterance = strings.ToLower(utterance)

	var best Device
	bestLen := 0
	for _, d := range r.devices {
		if containsPhrase(utterance, d.Name) && len(d.Name) > bestLen {
			best, bestLen = d, len(d.Name)
		}
		for _, a := range d.Aliases {
			if containsPhrase(utterance, a) && len(a) > bestLen {
				best, bestLen = d, len(a)
			}
		}
	}
	if bestLen > 0 {
		return best, true
	}

	var byKind []Device
	for _, d := range r.devices {
		if d.Kind != "" && containsPhrase(utterance, d.Kind) {
			byKind = append(byKind, d)
		}
	}
	if len(byKind) == 1 {
		return byKind[0], true
	}
	if len(byKind) > 1 {
		var byRoom []Device
		for _, d := range byKind {
			if d.Room != "" && containsPhrase(utterance, d.Room) {
				byRoom = append(byRoom, d)
			}
		}
		if len(byRoom) == 1 {
			return byRoom[0], true
		}
		r.logger.Debug("smarthome: utterance is ambiguous", "utterance", utterance, "candidates", len(byKind))
	}

	return Device{}, false
}

// Command translates a spoken verb for a device. Unmapped verbs pass
// through so simple controllers can speak the same vocabulary as the user.
func (r *Registry) Command(d Device, verb string) string {
	if mapped, ok := d.Commands[verb]; ok {
		return mapped
	}
	return verb
}

// containsPhrase reports whether phrase occurs on word boundaries. Voice
// transcripts carry no punctuation, so space padding is enough.
func containsPhrase(utterance, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+utterance+" ", " "+phrase+" ")
}
