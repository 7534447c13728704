package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/clover/pkg/clover/reminder"
	"github.com/jholhewres/clover/pkg/clover/store"
)

// newRemindCmd cria o comando `clover remind` para gerenciar lembretes.
func newRemindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Manage reminders from the shell",
		Long: `Add and list reminders without going through voice capture.
Reminders fire in the running daemon; adding here only persists them.

Examples:
  clover remind add "stand up" --at 15:00
  clover remind add "check the oven" --in 20m
  clover remind list`,
	}

	cmd.AddCommand(
		newRemindAddCmd(),
		newRemindListCmd(),
	)

	return cmd
}

func newRemindAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a reminder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			at, _ := cmd.Flags().GetString("at")
			in, _ := cmd.Flags().GetDuration("in")

			if (at == "") == (in == 0) {
				return fmt.Errorf("exactly one of --at or --in is required")
			}

			scheduler, cleanup, err := openScheduler(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var r *reminder.Reminder
			if at != "" {
				r, err = scheduler.AddAtClock(text, at)
			} else {
				r, err = scheduler.Add(text, time.Now().Add(in))
			}
			if err != nil {
				return fmt.Errorf("adding reminder: %w", err)
			}

			fmt.Printf("Reminder set for %s: %s\n", r.DueAt.Format("Mon Jan 2 15:04"), r.Text)
			return nil
		},
	}

	cmd.Flags().String("at", "", "clock time HH:MM (past times roll to tomorrow)")
	cmd.Flags().Duration("in", 0, "relative delay, e.g. 20m or 1h30m")
	return cmd
}

func newRemindListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scheduler, cleanup, err := openScheduler(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			pending := scheduler.Pending()
			if len(pending) == 0 {
				fmt.Println("No pending reminders.")
				return nil
			}
			for _, r := range pending {
				fmt.Printf("  %s  %s\n", r.DueAt.Format("Mon Jan 2 15:04"), r.Text)
			}
			return nil
		},
	}
}

// openScheduler monta um scheduler sem loop sobre o clover.db, já com os
// lembretes persistidos em memória.
func openScheduler(cmd *cobra.Command) (*reminder.Scheduler, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg.Logging.Level = "warn"
	logger, closeLog := newLogger(cmd, cfg)

	st, err := store.Open(cfg.Database)
	if err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	scheduler := reminder.New(cfg.Reminders.PollInterval.Std(), st, nil, logger)
	if err := scheduler.Load(); err != nil {
		st.Close()
		closeLog()
		return nil, nil, err
	}

	cleanup := func() {
		st.Close()
		closeLog()
	}
	return scheduler, cleanup, nil
}
