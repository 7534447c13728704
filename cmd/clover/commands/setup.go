package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jholhewres/clover/pkg/clover/config"
)

// storageMethod identifica onde a chave do responder foi guardada.
type storageMethod int

const (
	storageNone storageMethod = iota
	storageVault
	storageKeyring
)

// newSetupCmd cria o comando `clover setup`, o assistente interativo de
// primeira configuração.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive first-run configuration",
		Long: `Walks through the initial configuration: assistant identity, wake
phrase, generative fallback, resource monitor and weather.

Secrets go into an encrypted vault or the OS keyring. The generated
config.yaml never contains them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd)
		},
	}
}

func runSetup(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()

	fmt.Println()
	fmt.Println("─────────────────────────────────────────────")
	fmt.Println("  Clover setup")
	fmt.Println("─────────────────────────────────────────────")
	fmt.Println()

	// ── Identity and wake word ──
	sensitivity := cfg.WakeWord.Sensitivity
	identity := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Assistant name").
				Description("Spoken in the startup greeting and console output.").
				Validate(requireValue("a name is required")).
				Value(&cfg.Name),
			huh.NewInput().
				Title("Language").
				Description("BCP-47 tag used by the speech collaborators.").
				Value(&cfg.Language),
			huh.NewInput().
				Title("Wake phrase").
				Description("What you say to get the assistant's attention.").
				Validate(requireValue("a wake phrase is required")).
				Value(&cfg.WakeWord.Phrase),
			huh.NewSelect[float64]().
				Title("Wake-word sensitivity").
				Description("Higher accepts more, at the cost of false triggers.").
				Options(
					huh.NewOption("conservative (0.3)", 0.3),
					huh.NewOption("balanced (0.5)", 0.5),
					huh.NewOption("eager (0.7)", 0.7),
				).
				Value(&sensitivity),
		),
	)
	if err := identity.Run(); err != nil {
		return setupAborted(err)
	}
	cfg.WakeWord.Sensitivity = sensitivity

	// ── Generative fallback ──
	enableFallback := cfg.Fallback.Enabled
	var responderKey string
	responderForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the generative fallback?").
				Description("Queries no rule understands go to an OpenAI-compatible responder.").
				Value(&enableFallback),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Responder API key").
				Description("Leave empty to configure later with `clover secret set`.").
				EchoMode(huh.EchoModePassword).
				Value(&responderKey),
			huh.NewInput().
				Title("Model").
				Value(&cfg.Responder.Model),
			huh.NewInput().
				Title("API base URL").
				Value(&cfg.Responder.BaseURL),
		).WithHideFunc(func() bool { return !enableFallback }),
	)
	if err := responderForm.Run(); err != nil {
		return setupAborted(err)
	}
	cfg.Fallback.Enabled = enableFallback
	cfg.Responder.Enabled = enableFallback

	keyStorage := storageNone
	if responderKey != "" {
		keyStorage = storeResponderKey(responderKey)
		if keyStorage == storageNone {
			fmt.Println()
			fmt.Println("Could not store the key securely.")
			fmt.Println("Set it later with: clover secret set responder_api_key")
		}
	}

	// ── Resource monitor ──
	enableMonitor := cfg.Monitor.Enabled
	cpuStr := strconv.FormatFloat(cfg.Monitor.MaxCPUPercent, 'f', -1, 64)
	memStr := strconv.FormatFloat(cfg.Monitor.MaxMemoryMB, 'f', -1, 64)
	monitorForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the resource monitor?").
				Description("Logs a warning when the process exceeds CPU or memory limits.").
				Value(&enableMonitor),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("CPU warning threshold (%)").
				Validate(requireNumber).
				Value(&cpuStr),
			huh.NewInput().
				Title("Memory warning threshold (MB)").
				Validate(requireNumber).
				Value(&memStr),
		).WithHideFunc(func() bool { return !enableMonitor }),
	)
	if err := monitorForm.Run(); err != nil {
		return setupAborted(err)
	}
	cfg.Monitor.Enabled = enableMonitor
	if enableMonitor {
		cfg.Monitor.MaxCPUPercent, _ = strconv.ParseFloat(strings.TrimSpace(cpuStr), 64)
		cfg.Monitor.MaxMemoryMB, _ = strconv.ParseFloat(strings.TrimSpace(memStr), 64)
	}

	// ── Weather ──
	enableWeather := false
	var weatherKey string
	weatherForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable weather queries?").
				Description("Uses OpenWeatherMap; needs a free API key.").
				Value(&enableWeather),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Default city").
				Validate(requireValue("a city is required")).
				Value(&cfg.Weather.City),
			huh.NewInput().
				Title("OpenWeatherMap API key").
				Description("Leave empty to configure later with `clover secret set`.").
				EchoMode(huh.EchoModePassword).
				Value(&weatherKey),
		).WithHideFunc(func() bool { return !enableWeather }),
	)
	if err := weatherForm.Run(); err != nil {
		return setupAborted(err)
	}
	cfg.Weather.Enabled = enableWeather
	if weatherKey != "" {
		if err := config.StoreKeyring(config.SecretWeatherKey, weatherKey); err != nil {
			fmt.Println()
			fmt.Println("OS keyring unavailable for the weather key.")
			fmt.Println("Set it later with: clover secret set weather_api_key")
			fmt.Println("or export CLOVER_WEATHER_KEY in the environment.")
		}
	}

	// ── Summary ──
	fmt.Println()
	fmt.Println("─────────────────────────────────────────────")
	fmt.Println("  Configuration summary:")
	fmt.Println("─────────────────────────────────────────────")
	fmt.Printf("  Name:         %s\n", cfg.Name)
	fmt.Printf("  Language:     %s\n", cfg.Language)
	fmt.Printf("  Wake phrase:  %s\n", cfg.WakeWord.Phrase)
	fmt.Printf("  Sensitivity:  %.1f\n", cfg.WakeWord.Sensitivity)
	if cfg.Fallback.Enabled {
		fmt.Printf("  Fallback:     on (%s)\n", cfg.Responder.Model)
	} else {
		fmt.Println("  Fallback:     off")
	}
	switch keyStorage {
	case storageVault:
		fmt.Println("  API key:      **** (encrypted vault)")
	case storageKeyring:
		fmt.Println("  API key:      **** (OS keyring)")
	default:
		fmt.Println("  API key:      (not set — configure later)")
	}
	if cfg.Monitor.Enabled {
		fmt.Printf("  Monitor:      on (%.0f%% CPU, %.0f MB)\n", cfg.Monitor.MaxCPUPercent, cfg.Monitor.MaxMemoryMB)
	} else {
		fmt.Println("  Monitor:      off")
	}
	if cfg.Weather.Enabled {
		fmt.Printf("  Weather:      on (%s)\n", cfg.Weather.City)
	} else {
		fmt.Println("  Weather:      off")
	}
	fmt.Printf("  Database:     %s\n", cfg.Database)
	fmt.Println("─────────────────────────────────────────────")
	fmt.Println()

	// ── Confirm and save ──
	target, _ := cmd.Root().PersistentFlags().GetString("config")
	save := true
	prompt := fmt.Sprintf("Save to %s?", target)
	if _, err := os.Stat(target); err == nil {
		prompt = fmt.Sprintf("%s already exists. Overwrite?", target)
		save = false
	}
	confirmForm := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(prompt).Value(&save),
	))
	if err := confirmForm.Run(); err != nil {
		return setupAborted(err)
	}
	if !save {
		fmt.Println("Setup cancelled. Nothing written.")
		return nil
	}

	if err := cfg.Save(target); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\n%s created.\n\n", target)
	fmt.Println("Security:")
	switch keyStorage {
	case storageVault:
		fmt.Println("  - API key encrypted in the vault (AES-256-GCM + Argon2id)")
		fmt.Println("  - Unreadable without your master password, even with filesystem access")
	case storageKeyring:
		fmt.Println("  - API key stored in the OS keyring")
	default:
		fmt.Println("  - No API key configured yet")
		fmt.Println("  - Run: clover secret set responder_api_key")
	}
	fmt.Printf("  - %s has no secrets (permissions: 600)\n", target)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Run: clover run --console")
	fmt.Println("  2. Try: clover ask \"what time is it\"")
	fmt.Println()

	return nil
}

// storeResponderKey guarda a chave no cofre criptografado ou no chaveiro
// do sistema, conforme a escolha do usuário.
func storeResponderKey(key string) storageMethod {
	choice := "vault"
	options := []huh.Option[string]{
		huh.NewOption("Encrypted vault (master password, AES-256-GCM)", "vault"),
	}
	if config.KeyringAvailable() {
		options = append(options, huh.NewOption("OS keyring", "keyring"))
	}
	options = append(options, huh.NewOption("Skip for now", "skip"))

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Where should the key be stored?").
			Options(options...).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return storageNone
	}

	switch choice {
	case "vault":
		if createVault(key) {
			return storageVault
		}
		return tryKeyringFallback(key)
	case "keyring":
		if err := config.StoreKeyring(config.SecretResponderKey, key); err == nil {
			return storageKeyring
		}
		return storageNone
	default:
		return storageNone
	}
}

// createVault cria o cofre do zero e grava a chave do responder nele.
// Um cofre existente é descartado: setup é sempre um começo limpo.
func createVault(key string) bool {
	var password, confirm string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Vault master password").
			Description("Never stored anywhere. Minimum 8 characters.").
			EchoMode(huh.EchoModePassword).
			Validate(func(s string) error {
				if len(s) < 8 {
					return errors.New("minimum 8 characters")
				}
				return nil
			}).
			Value(&password),
		huh.NewInput().
			Title("Confirm password").
			EchoMode(huh.EchoModePassword).
			Value(&confirm),
	))
	if err := form.Run(); err != nil {
		return false
	}
	if password != confirm {
		fmt.Println("Passwords don't match.")
		return false
	}

	if _, err := os.Stat(config.VaultFile); err == nil {
		_ = os.Remove(config.VaultFile)
	}
	vault := config.NewVault(config.VaultFile)
	if err := vault.Create(password); err != nil {
		fmt.Printf("Vault creation failed: %v\n", err)
		return false
	}
	defer vault.Lock()
	if err := vault.Set(config.SecretResponderKey, key); err != nil {
		fmt.Printf("Failed to store the key in the vault: %v\n", err)
		return false
	}
	fmt.Println("API key encrypted and stored in the vault.")
	return true
}

// tryKeyringFallback tenta o chaveiro do sistema quando o cofre falha.
func tryKeyringFallback(key string) storageMethod {
	if !config.KeyringAvailable() {
		return storageNone
	}
	fmt.Println("Trying the OS keyring as fallback...")
	if err := config.StoreKeyring(config.SecretResponderKey, key); err != nil {
		return storageNone
	}
	fmt.Println("API key stored in the OS keyring.")
	return storageKeyring
}

// setupAborted converte o cancelamento do formulário em saída limpa.
func setupAborted(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		fmt.Println("Setup cancelled.")
		return nil
	}
	return fmt.Errorf("setup: %w", err)
}

// requireValue valida campos obrigatórios dos formulários.
func requireValue(msg string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(msg)
		}
		return nil
	}
}

// requireNumber valida entradas numéricas dos formulários.
func requireNumber(s string) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return errors.New("enter a number")
	}
	return nil
}
