package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jholhewres/clover/pkg/clover/notify/whatsapp"
)

// newPairCmd cria o comando `clover pair` para vincular um dispositivo
// WhatsApp via QR code.
func newPairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair",
		Short: "Link a WhatsApp device for notifications",
		Long: `Runs the one-time WhatsApp QR pairing flow. The session is persisted
in the configured database; afterwards the daemon reconnects on its own.

The raw QR payload is printed. Render it with any QR tool, e.g.:
  clover pair | qrencode -t ansiutf8`,
		RunE: runPair,
	}
}

func runPair(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); !verbose {
		cfg.Logging.Level = "warn"
	}
	logger, closeLog := newLogger(cmd, cfg)
	defer closeLog()

	if cfg.Notify.WhatsApp.Database == "" {
		return fmt.Errorf("notifiers.whatsapp.database is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := whatsapp.New(whatsapp.Config{
		Database:  cfg.Notify.WhatsApp.Database,
		Recipient: cfg.Notify.WhatsApp.Recipient,
	}, logger)

	linked, err := notifier.Linked(ctx)
	if err != nil {
		return err
	}
	if linked {
		fmt.Println("WhatsApp is already linked.")
		fmt.Printf("Remove %s to pair a different device.\n", cfg.Notify.WhatsApp.Database)
		return nil
	}

	fmt.Println("Open WhatsApp on your phone: Settings > Linked Devices > Link a Device.")
	fmt.Println("Waiting for the QR code...")
	fmt.Println()

	err = notifier.Pair(ctx, func(code string) {
		fmt.Println(code)
		fmt.Println()
		fmt.Println("(codes rotate every few seconds until scanned)")
	})
	if err != nil {
		return err
	}

	fmt.Println("Device linked. Reminders will reach WhatsApp once `clover run` starts.")
	return nil
}
