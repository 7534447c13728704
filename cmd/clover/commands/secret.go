package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jholhewres/clover/pkg/clover/config"
)

// newSecretCmd cria o comando `clover secret` para gerenciar os segredos
// que o assistente resolve na partida.
func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage stored secrets",
		Long: `Manages the secrets Clover resolves at startup. Values go into the
encrypted vault when one is unlocked, otherwise into the OS keyring.
Resolution order at runtime: vault, keyring, environment, config file.

Known names:
  responder_api_key    generative responder
  discord_token        Discord notifier
  wakeword_access_key  wake-word engine
  weather_api_key      weather provider

Examples:
  clover secret set responder_api_key
  clover secret list
  clover secret rm weather_api_key`,
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretGetCmd(),
		newSecretListCmd(),
		newSecretRmCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret (hidden input)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]
			value, err := config.ReadPassword(fmt.Sprintf("Value for %s: ", name))
			if err != nil {
				return err
			}
			if value == "" {
				return errors.New("empty value, nothing stored")
			}

			secrets := openSecrets()
			if err := secrets.Store(name, value); err != nil {
				return err
			}
			fmt.Printf("Secret %s stored.\n", name)
			return nil
		},
	}
}

func newSecretGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a secret's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			value := openSecrets().Resolve(args[0], "")
			if value == "" {
				return fmt.Errorf("%s is not set", args[0])
			}
			fmt.Println(value)
			return nil
		},
	}
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show each known secret and where it resolves from",
		RunE: func(_ *cobra.Command, _ []string) error {
			secrets := openSecrets()
			for _, name := range config.KnownSecrets() {
				source := secrets.Source(name)
				if source == "" {
					source = "(not set)"
				}
				fmt.Printf("%-22s %s\n", name, source)
			}
			return nil
		},
	}
}

func newSecretRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a secret from the vault and the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := openSecrets().Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Secret %s removed.\n", args[0])
			return nil
		},
	}
}

// openSecrets monta o resolvedor com logs descartados — a saída destes
// comandos é o resultado, não o diário. O prompt de senha do cofre ainda
// aparece quando há um cofre e um terminal.
func openSecrets() *config.Secrets {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return config.NewSecrets(config.VaultFile, logger)
}
