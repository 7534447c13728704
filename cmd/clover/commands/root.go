// Package commands implementa os comandos CLI do Clover usando cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd cria o comando raiz do CLI com todos os subcomandos registrados.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clover",
		Short: "Clover - Personal Voice Assistant",
		Long: `Clover is a personal voice-driven command assistant.
It listens for a wake phrase, captures one query at a time, routes it
through an ordered rule catalog, and can fall back to a generative
responder for open questions.

Examples:
  clover run --console
  clover ask "what time is it"
  clover remind add "stand up" --at 15:00
  clover setup`,
		Version: version,
	}

	// Registra subcomandos.
	rootCmd.AddCommand(
		newRunCmd(),
		newAskCmd(),
		newRemindCmd(),
		newNoteCmd(),
		newHistoryCmd(),
		newSetupCmd(),
		newSecretCmd(),
		newPairCmd(),
		newVersionCmd(version),
	)

	// Flags globais.
	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
