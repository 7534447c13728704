package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/clover/pkg/clover/store"
)

// newNoteCmd cria o comando `clover note` para gerenciar notas.
func newNoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Manage notes from the shell",
		Long: `Add and list notes. The same notes are reachable by voice with
"take a note" and "read my notes".

Examples:
  clover note add "the wifi password is hunter2"
  clover note list`,
	}

	cmd.AddCommand(
		newNoteAddCmd(),
		newNoteListCmd(),
	)

	return cmd
}

func newNoteAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Add a note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cleanup, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := st.AddNote(strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("adding note: %w", err)
			}
			fmt.Printf("Noted (#%d).\n", n.ID)
			return nil
		},
	}
}

func newNoteListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List notes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, cleanup, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			notes, err := st.ListNotes()
			if err != nil {
				return fmt.Errorf("listing notes: %w", err)
			}
			if len(notes) == 0 {
				fmt.Println("No notes yet.")
				return nil
			}
			for _, n := range notes {
				fmt.Printf("  #%-4d %s  %s\n", n.ID, n.CreatedAt.Format("Jan 2 15:04"), n.Text)
			}
			return nil
		},
	}
}

// openStore abre o clover.db para os comandos one-shot.
func openStore(cmd *cobra.Command) (*store.Store, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return st, func() { st.Close() }, nil
}
