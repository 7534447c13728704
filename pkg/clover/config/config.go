// Package config holds Clover's configuration surface: the yaml file
// structure, defaults, loading, and secret resolution. Values only — the
// rest of the system receives plain structs and never re-reads the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml files can say "30s" or "5m".
// A bare integer is taken as seconds.
type Duration time.Duration

// UnmarshalYAML parses "30s"/"5m" strings and bare-integer seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var asString string
	if err := value.Decode(&asString); err == nil {
		if parsed, err := time.ParseDuration(asString); err == nil {
			*d = Duration(parsed)
			return nil
		}
		if secs, err := strconv.ParseInt(asString, 10, 64); err == nil {
			*d = Duration(time.Duration(secs) * time.Second)
			return nil
		}
		return fmt.Errorf("invalid duration %q", asString)
	}
	var asInt int64
	if err := value.Decode(&asInt); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(asInt) * time.Second)
	return nil
}

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration, loaded from config.yaml.
type Config struct {
	// Name is the assistant's spoken name.
	Name string `yaml:"name"`

	// Language is the BCP-47 tag used by speech collaborators.
	Language string `yaml:"language"`

	// Database is the path to the central sqlite database.
	Database string `yaml:"database"`

	Fallback  FallbackConfig  `yaml:"fallback"`
	WakeWord  WakeWordConfig  `yaml:"wake_word"`
	Capture   CaptureConfig   `yaml:"capture"`
	Reminders ReminderConfig  `yaml:"reminders"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Responder ResponderConfig `yaml:"responder"`
	Weather   WeatherConfig   `yaml:"weather"`
	Speech    SpeechConfig    `yaml:"speech"`
	Notify    NotifyConfig    `yaml:"notifiers"`
	SmartHome SmartHomeConfig `yaml:"smart_home"`
	Music     MusicConfig     `yaml:"music"`
	Devices   DevicesConfig   `yaml:"devices"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// FallbackConfig gates the generative fallback rule.
type FallbackConfig struct {
	// Enabled allows unmatched queries to reach the generative responder.
	Enabled bool `yaml:"enabled"`
}

// WakeWordConfig configures the wake-word service.
type WakeWordConfig struct {
	Enabled bool `yaml:"enabled"`

	// Phrase is the user-facing wake phrase reported to the session
	// ("hey clover"). The acoustic model may listen for different
	// built-in keywords; see Keywords.
	Phrase string `yaml:"phrase"`

	// Keywords are the model's internal keyword identifiers. Detection of
	// any of them is reported as Phrase.
	Keywords []string `yaml:"keywords"`

	// Sensitivity trades false accepts for misses, 0.0..1.0.
	Sensitivity float64 `yaml:"sensitivity"`

	// FrameWait bounds a single audio frame read.
	FrameWait Duration `yaml:"frame_wait"`
}

// CaptureConfig bounds the foreground speech capture.
type CaptureConfig struct {
	// Timeout is how long one capture waits for an utterance.
	Timeout Duration `yaml:"timeout"`
}

// ReminderConfig configures the reminder scheduler.
type ReminderConfig struct {
	// PollInterval is the due-check cadence.
	PollInterval Duration `yaml:"poll_interval"`

	// Recurring are cron-scheduled repeating reminders.
	Recurring []RecurringReminder `yaml:"recurring"`
}

// RecurringReminder is a cron entry that announces Text on Schedule.
type RecurringReminder struct {
	// Schedule is a cron expression ("0 7 * * *") or a descriptor ("@daily").
	Schedule string `yaml:"schedule"`
	Text     string `yaml:"text"`
}

// MonitorConfig configures the resource monitor.
type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval is the sampling cadence.
	Interval Duration `yaml:"interval"`

	// MaxCPUPercent logs a warning when process CPU exceeds it.
	MaxCPUPercent float64 `yaml:"max_cpu_percent"`

	// MaxMemoryMB logs a warning when process RSS exceeds it.
	MaxMemoryMB float64 `yaml:"max_memory_mb"`
}

// ResponderConfig configures the generative-language backend.
type ResponderConfig struct {
	Enabled bool `yaml:"enabled"`

	// BaseURL of an OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`

	// APIKey as written in the file. Usually empty — the resolved value
	// comes from the vault/keyring/env chain (see secrets.go).
	APIKey string `yaml:"api_key"`

	// HistoryLimit caps remembered exchanges for conversational context.
	HistoryLimit int `yaml:"history_limit"`
}

// WeatherConfig configures the OpenWeatherMap-backed forecast provider.
type WeatherConfig struct {
	Enabled bool `yaml:"enabled"`

	// City is the default city when the query doesn't name one.
	City string `yaml:"city"`

	// BaseURL of the weather API.
	BaseURL string `yaml:"base_url"`

	// APIKey as written in the file; resolved through the secret chain.
	APIKey string `yaml:"api_key"`
}

// SpeechConfig selects the speech output adapter.
type SpeechConfig struct {
	// Output is "console" or "command".
	Output string `yaml:"output"`

	// Command is the external synthesis command when Output is "command".
	Command     string   `yaml:"command"`
	CommandArgs []string `yaml:"command_args"`
}

// NotifyConfig configures outbound notification channels.
type NotifyConfig struct {
	Discord  DiscordConfig  `yaml:"discord"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`

	// MirrorReplies also forwards spoken rule replies to the connected
	// notifiers. Reminders are always forwarded.
	MirrorReplies bool `yaml:"mirror_replies"`
}

// DiscordConfig configures the Discord notifier.
type DiscordConfig struct {
	Enabled bool `yaml:"enabled"`

	// Token as written in the file; resolved through the secret chain.
	Token string `yaml:"token"`

	// ChannelID receives reminder and reply mirrors.
	ChannelID string `yaml:"channel_id"`
}

// WhatsAppConfig configures the WhatsApp notifier.
type WhatsAppConfig struct {
	Enabled bool `yaml:"enabled"`

	// Database is the sqlite file holding the linked-device session.
	Database string `yaml:"database"`

	// Recipient is the JID or phone number that receives notifications.
	Recipient string `yaml:"recipient"`
}

// SmartHomeConfig configures the smart-home device registry.
type SmartHomeConfig struct {
	Enabled bool `yaml:"enabled"`

	// Registry is the path to the device registry yaml.
	Registry string `yaml:"registry"`
}

// MusicConfig configures the play-music rule.
type MusicConfig struct {
	Directory string `yaml:"directory"`
}

// DevicesConfig overrides the local device controller's command table.
type DevicesConfig struct {
	// Commands maps "device/command" to an argv template.
	Commands map[string][]string `yaml:"commands"`

	// ConfirmPower requires a spoken confirmation before shutdown and
	// restart commands run.
	ConfirmPower bool `yaml:"confirm_power"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`

	// File receives logs instead of stdout when set.
	File string `yaml:"file"`
}

// DefaultConfig returns the defaults applied before the file is read.
func DefaultConfig() *Config {
	return &Config{
		Name:     "Clover",
		Language: "en-US",
		Database: "./data/clover.db",
		Fallback: FallbackConfig{Enabled: true},
		WakeWord: WakeWordConfig{
			Enabled:     true,
			Phrase:      "hey clover",
			Keywords:    []string{"jarvis"},
			Sensitivity: 0.5,
			FrameWait:   Duration(500 * time.Millisecond),
		},
		Capture: CaptureConfig{Timeout: Duration(8 * time.Second)},
		Reminders: ReminderConfig{
			PollInterval: Duration(30 * time.Second),
		},
		Monitor: MonitorConfig{
			Enabled:       true,
			Interval:      Duration(5 * time.Second),
			MaxCPUPercent: 30.0,
			MaxMemoryMB:   300.0,
		},
		Responder: ResponderConfig{
			Enabled:      true,
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			HistoryLimit: 10,
		},
		Weather: WeatherConfig{
			BaseURL: "https://api.openweathermap.org/data/2.5",
		},
		Speech: SpeechConfig{
			Output:  "console",
			Command: "espeak",
		},
		SmartHome: SmartHomeConfig{Registry: "./devices.yaml"},
		Devices:   DevicesConfig{ConfirmPower: true},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads .env (if present), then config.yaml at path over the defaults.
// A missing config file is not an error — first runs work on defaults.
func Load(path string) (*Config, error) {
	// .env side effects first so ${VAR} style secrets resolve later.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.validate()
}

// Save writes the config to path with owner-only permissions. Secret
// fields are blanked first: those values live in the vault, keyring or
// environment, never in config.yaml.
func (c *Config) Save(path string) error {
	sanitized := *c
	sanitized.Responder.APIKey = ""
	sanitized.Notify.Discord.Token = ""
	sanitized.Weather.APIKey = ""

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// validate rejects values the services cannot run with.
func (c *Config) validate() error {
	if c.Reminders.PollInterval.Std() <= 0 {
		return fmt.Errorf("reminders.poll_interval must be positive")
	}
	if c.Monitor.Enabled && c.Monitor.Interval.Std() <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if c.WakeWord.Sensitivity < 0 || c.WakeWord.Sensitivity > 1 {
		return fmt.Errorf("wake_word.sensitivity must be within 0.0..1.0")
	}
	if c.Capture.Timeout.Std() <= 0 {
		return fmt.Errorf("capture.timeout must be positive")
	}
	return nil
}
