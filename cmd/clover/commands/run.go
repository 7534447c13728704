package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/clover/pkg/clover/config"
	"github.com/jholhewres/clover/pkg/clover/dispatch"
	"github.com/jholhewres/clover/pkg/clover/monitor"
	"github.com/jholhewres/clover/pkg/clover/notify"
	"github.com/jholhewres/clover/pkg/clover/notify/discord"
	"github.com/jholhewres/clover/pkg/clover/notify/whatsapp"
	"github.com/jholhewres/clover/pkg/clover/ports"
	"github.com/jholhewres/clover/pkg/clover/reminder"
	"github.com/jholhewres/clover/pkg/clover/responder"
	"github.com/jholhewres/clover/pkg/clover/rules"
	"github.com/jholhewres/clover/pkg/clover/session"
	"github.com/jholhewres/clover/pkg/clover/smarthome"
	"github.com/jholhewres/clover/pkg/clover/store"
	"github.com/jholhewres/clover/pkg/clover/weather"
)

// newRunCmd cria o comando `clover run` que inicia o daemon.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the assistant daemon",
		Long: `Start Clover as a daemon: reminder scheduler, resource monitor,
notifiers, and the query session.

With --console, queries are typed on stdin instead of spoken (readline
prompt, Ctrl+D to exit). Without it the daemon still schedules and
delivers reminders; voice capture requires a wake-word engine.

Examples:
  clover run --console
  clover run --config ./config.yaml`,
		RunE: runRun,
	}

	cmd.Flags().Bool("console", false, "type queries on stdin instead of voice capture")
	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// ── Configure logger ──
	logger, closeLog := newLogger(cmd, cfg)
	defer closeLog()

	// ── Resolve secrets (vault → keyring → env → config) ──
	config.ApplySecrets(cfg, logger)

	// ── Open the central database ──
	st, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Speech output ──
	speaker := buildSpeaker(cfg)

	// ── Notifiers ──
	manager := notify.NewManager(logger)
	if cfg.Notify.Discord.Enabled {
		n := discord.New(discord.Config{
			Token:     cfg.Notify.Discord.Token,
			ChannelID: cfg.Notify.Discord.ChannelID,
		}, logger)
		if err := manager.Register(n); err != nil {
			logger.Warn("registering discord notifier", "error", err)
		}
	}
	if cfg.Notify.WhatsApp.Enabled {
		n := whatsapp.New(whatsapp.Config{
			Database:  cfg.Notify.WhatsApp.Database,
			Recipient: cfg.Notify.WhatsApp.Recipient,
		}, logger)
		if err := manager.Register(n); err != nil {
			logger.Warn("registering whatsapp notifier", "error", err)
		}
	}
	if manager.HasNotifiers() {
		manager.Connect(ctx)
		defer manager.Disconnect()
	}

	// ── Reminder scheduler ──
	// Due reminders are spoken and mirrored to every connected notifier.
	announce := func(ctx context.Context, text string) error {
		manager.Notify(ctx, notify.Event{Kind: notify.KindReminder, Text: text})
		return speaker.Speak(ctx, "Reminder: "+text)
	}
	scheduler := reminder.New(cfg.Reminders.PollInterval.Std(), st, announce, logger)
	for _, rec := range cfg.Reminders.Recurring {
		scheduler.AddRecurrence(reminder.Recurrence{Schedule: rec.Schedule, Text: rec.Text})
	}

	// ── Resource monitor ──
	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon, err = monitor.New(cfg.Monitor, logger)
		if err != nil {
			logger.Warn("resource monitor unavailable", "error", err)
		}
	}

	// ── Rule collaborators ──
	var home *smarthome.Registry
	if cfg.SmartHome.Enabled {
		home, err = smarthome.Load(cfg.SmartHome.Registry, logger)
		if err != nil {
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

	// Rule replies optionally mirror to the notifiers. Acknowledgments and
	// apologies stay local: the session speaks those through the bare gate.
	ruleSpeaker := speaker
	if cfg.Notify.MirrorReplies && manager.HasNotifiers() {
		ruleSpeaker = notify.NewMirror(speaker, manager)
	}

	// Gates close over sup, which is assigned below before anything runs.
	var sup *session.Supervisor
	deps := rules.Deps{
		Assistant: cfg.Name,
		Speaker:   ruleSpeaker,
		Devices:   ports.NewLocalController(cfg.Devices.Commands, logger),
		Responder: brain,
		Reminders: scheduler,
		Notes:     st,
		Home:      home,
		Weather:   forecast,
		MusicDir:  cfg.Music.Directory,

		ConfirmPower: cfg.Devices.ConfirmPower,
		Gates: rules.Gates{
			PauseListening:  func() { sup.PauseListening() },
			ResumeListening: func() { sup.ResumeListening() },
			RequestShutdown: func() { sup.RequestShutdown() },
		},
		Logger: logger,
	}

	fallback := rules.Fallback(deps)
	dispatcher := dispatch.New(rules.Catalog(deps), &fallback, cfg.Fallback.Enabled, logger)

	// ── Speech input ──
	consoleMode, _ := cmd.Flags().GetBool("console")
	var input ports.SpeechInput
	if consoleMode {
		ci, err := ports.NewConsoleInput("you> ")
		if err != nil {
			return fmt.Errorf("opening console input: %w", err)
		}
		input = ci
	}
	if cfg.WakeWord.Enabled && !consoleMode {
		logger.Info("wake word configured but no acoustic engine is linked, voice trigger disabled",
			"phrase", cfg.WakeWord.Phrase)
	}

	// ── Session ──
	sup, err = session.New(session.Options{
		Dispatcher:     dispatcher,
		Input:          input,
		Speaker:        speaker,
		Reminders:      scheduler,
		Monitor:        mon,
		History:        st,
		CaptureTimeout: cfg.Capture.Timeout.Std(),
		Greeting:       rules.StartupGreeting(cfg.Name, time.Now()),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	if consoleMode {
		go func() {
			for sup.CaptureOnce(ctx) {
			}
			sup.RequestShutdown()
		}()
	}

	// ── Wait for shutdown ──
	logger.Info("clover running, press ctrl+c to stop",
		"name", cfg.Name,
		"console", consoleMode,
		"notifiers", manager.Connected(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received, stopping")
	case <-sup.ShutdownRequested():
		logger.Info("session requested shutdown, stopping")
	}

	// Graceful shutdown with timeout.
	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// loadConfig resolve o caminho do arquivo via flag --config e carrega.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger monta o logger raiz; --verbose força debug.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func()) {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logCfg := cfg.Logging
	if verbose {
		logCfg.Level = "debug"
	}
	return config.NewLogger(logCfg)
}

// buildSpeaker seleciona a saída de fala conforme a config. Sempre
// serializado: regras e lembretes falam de goroutines diferentes.
func buildSpeaker(cfg *config.Config) ports.SpeechOutput {
	var out ports.SpeechOutput
	switch cfg.Speech.Output {
	case "command":
		out = ports.NewCommandOutput(cfg.Speech.Command, cfg.Speech.CommandArgs...)
	default:
		out = ports.NewConsoleOutput(os.Stdout, cfg.Name)
	}
	return ports.NewSerialSpeaker(out)
}
