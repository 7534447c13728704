package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/clover/pkg/clover/config"
	"github.com/jholhewres/clover/pkg/clover/dispatch"
	"github.com/jholhewres/clover/pkg/clover/ports"
	"github.com/jholhewres/clover/pkg/clover/reminder"
	"github.com/jholhewres/clover/pkg/clover/responder"
	"github.com/jholhewres/clover/pkg/clover/rules"
	"github.com/jholhewres/clover/pkg/clover/session"
	"github.com/jholhewres/clover/pkg/clover/smarthome"
	"github.com/jholhewres/clover/pkg/clover/store"
	"github.com/jholhewres/clover/pkg/clover/weather"
)

// newAskCmd cria o comando `clover ask` para uma consulta única.
func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <query>",
		Short: "Dispatch a single query and exit",
		Long: `Run one query through the rule catalog exactly as the daemon
would, print the spoken replies, and exit. Reminders and notes created
this way persist; the running daemon picks them up.

Examples:
  clover ask "what time is it"
  clover ask "remind me to stretch in 20 minutes"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// One-shot output: keep the log channel quiet unless asked.
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); !verbose {
		cfg.Logging.Level = "warn"
	}
	logger, closeLog := newLogger(cmd, cfg)
	defer closeLog()

	config.ApplySecrets(cfg, logger)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	speaker := buildSpeaker(cfg)

	// The scheduler is never started here: Add persists, the daemon fires.
	scheduler := reminder.New(cfg.Reminders.PollInterval.Std(), st, nil, logger)
	if err := scheduler.Load(); err != nil {
		logger.Warn("loading reminders", "error", err)
	}

	var home *smarthome.Registry
	if cfg.SmartHome.Enabled {
		if home, err = smarthome.Load(cfg.SmartHome.Registry, logger); err != nil {
			logger.Warn("smart home registry unavailable", "error", err)
		}
	}

	var brain ports.Responder
	if cfg.Responder.Enabled {
		brain = responder.New(cfg, logger)
	}

	var forecast func(ctx context.Context) (string, error)
	if cfg.Weather.Enabled {
		forecast = weather.New(cfg.Weather, logger).Current
	}

	// Zero gates: there is no live session to pause or shut down.
	deps := rules.Deps{
		Assistant: cfg.Name,
		Speaker:   speaker,
		Devices:   ports.NewLocalController(cfg.Devices.Commands, logger),
		Responder: brain,
		Reminders: scheduler,
		Notes:     st,
		Home:      home,
		Weather:   forecast,
		MusicDir:  cfg.Music.Directory,

		ConfirmPower: cfg.Devices.ConfirmPower,
		Logger:       logger,
	}

	fallback := rules.Fallback(deps)
	dispatcher := dispatch.New(rules.Catalog(deps), &fallback, cfg.Fallback.Enabled, logger)

	sup, err := session.New(session.Options{
		Dispatcher: dispatcher,
		Speaker:    speaker,
		History:    st,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	sup.Handle(context.Background(), query)
	return nil
}
