package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// keyringService is the service name Clover uses in the OS keyring.
const keyringService = "clover"

// Secret names shared between the resolver and the `clover secret` command.
const (
	SecretResponderKey = "responder_api_key"
	SecretDiscordToken = "discord_token"
	SecretWakeWordKey  = "wakeword_access_key"
	SecretWeatherKey   = "weather_api_key"
)

// envCandidates maps each secret to the environment variables it may
// arrive in, in lookup order.
var envCandidates = map[string][]string{
	SecretResponderKey: {"CLOVER_API_KEY", "OPENAI_API_KEY"},
	SecretDiscordToken: {"CLOVER_DISCORD_TOKEN", "DISCORD_BOT_TOKEN"},
	SecretWakeWordKey:  {"CLOVER_WAKEWORD_KEY", "PICOVOICE_ACCESS_KEY"},
	SecretWeatherKey:   {"CLOVER_WEATHER_KEY", "OPENWEATHER_API_KEY"},
}

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(name, value string) error {
	return keyring.Set(keyringService, name, value)
}

// GetKeyring reads a secret from the OS keyring; empty when absent.
func GetKeyring(name string) string {
	val, err := keyring.Get(keyringService, name)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(name string) error {
	return keyring.Delete(keyringService, name)
}

// KeyringAvailable probes the OS keyring with a write+delete cycle.
// Headless Linux boxes without a Secret Service agent fail here, which is
// what the vault is for.
func KeyringAvailable() bool {
	const probe = "__clover_probe__"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, probe)
	return true
}

// Secrets resolves named secrets through the priority chain:
// encrypted vault → OS keyring → environment variable → config value.
type Secrets struct {
	vault  *Vault
	logger *slog.Logger
}

// NewSecrets opens the vault at vaultPath if one exists, unlocking it from
// CLOVER_VAULT_KEY or, when stdin is a terminal, an interactive prompt.
// A vault that stays locked is skipped, not fatal — the chain continues.
func NewSecrets(vaultPath string, logger *slog.Logger) *Secrets {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Secrets{logger: logger.With("component", "secrets")}

	vault := NewVault(vaultPath)
	if !vault.Exists() {
		return s
	}

	if pass := os.Getenv("CLOVER_VAULT_KEY"); pass != "" {
		if err := vault.Unlock(pass); err != nil {
			s.logger.Warn("secrets: vault unlock via CLOVER_VAULT_KEY failed", "error", err)
		}
	}
	if !vault.IsUnlocked() && term.IsTerminal(int(os.Stdin.Fd())) {
		pass, err := ReadPassword("Vault password: ")
		if err == nil {
			if err := vault.Unlock(pass); err != nil {
				s.logger.Warn("secrets: vault unlock failed", "error", err)
			}
		}
	}
	if vault.IsUnlocked() {
		s.vault = vault
		s.logger.Info("secrets: vault unlocked", "path", vaultPath)
	} else {
		s.logger.Info("secrets: vault present but locked, falling through to keyring/env")
	}
	return s
}

// Resolve walks the chain for one secret. configValue is the plaintext
// from config.yaml, the least preferred source.
func (s *Secrets) Resolve(name, configValue string) string {
	if s.vault != nil {
		if val, err := s.vault.Get(name); err == nil && val != "" {
			return val
		}
	}
	if val := GetKeyring(name); val != "" {
		return val
	}
	for _, env := range envCandidates[name] {
		if val := os.Getenv(env); val != "" {
			return val
		}
	}
	return configValue
}

// Store writes a secret to the most secure writable tier: the unlocked
// vault when present, otherwise the OS keyring.
func (s *Secrets) Store(name, value string) error {
	if s.vault != nil {
		return s.vault.Set(name, value)
	}
	if err := StoreKeyring(name, value); err != nil {
		return fmt.Errorf("storing %s in keyring: %w", name, err)
	}
	return nil
}

// Delete removes a secret from every writable tier: the unlocked vault
// and the OS keyring. Environment variables stay untouched.
func (s *Secrets) Delete(name string) error {
	if s.vault != nil {
		if err := s.vault.Delete(name); err != nil {
			return err
		}
	}
	_ = DeleteKeyring(name)
	return nil
}

// Source reports which tier currently provides name: "vault", "keyring",
// the environment variable holding it, or empty when nothing does.
func (s *Secrets) Source(name string) string {
	if s.vault != nil {
		if val, err := s.vault.Get(name); err == nil && val != "" {
			return "vault"
		}
	}
	if GetKeyring(name) != "" {
		return "keyring"
	}
	for _, env := range envCandidates[name] {
		if os.Getenv(env) != "" {
			return "env (" + env + ")"
		}
	}
	return ""
}

// KnownSecrets lists the secret names the resolver understands, in the
// order the `secret list` command shows them.
func KnownSecrets() []string {
	return []string{
		SecretResponderKey,
		SecretDiscordToken,
		SecretWakeWordKey,
		SecretWeatherKey,
	}
}

// ApplySecrets fills the resolved secret values into cfg in place and
// returns the resolver for later use (the `secret` command reuses it).
func ApplySecrets(cfg *Config, logger *slog.Logger) *Secrets {
	s := NewSecrets(VaultFile, logger)
	cfg.Responder.APIKey = s.Resolve(SecretResponderKey, cfg.Responder.APIKey)
	cfg.Notify.Discord.Token = s.Resolve(SecretDiscordToken, cfg.Notify.Discord.Token)
	cfg.Weather.APIKey = s.Resolve(SecretWeatherKey, cfg.Weather.APIKey)
	return s
}

// ReadPassword reads a line from the terminal without echoing. Falls back
// to plain stdin when no TTY is attached (piped input).
func ReadPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	raw, err := term.ReadPassword(fd)
	if err != nil {
		var buf [1024]byte
		n, readErr := os.Stdin.Read(buf[:])
		if readErr != nil {
			return "", fmt.Errorf("reading password: %w", readErr)
		}
		raw = buf[:n]
	}
	fmt.Println()

	return strings.TrimRight(string(raw), "\r\n"), nil
}
