// Package discord delivers Clover notifications to a Discord channel
// using discordgo. Send-only: the bot never reads messages, it just
// mirrors reminder announcements and replies into a channel you pick.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/clover/pkg/clover/notify"
)

// Discord caps messages at 2000 characters.
const maxMessageLen = 2000

// Config holds the Discord notifier configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string

	// ChannelID is the channel that receives notifications.
	ChannelID string
}

// Notifier implements notify.Notifier over a Discord bot session.
type Notifier struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	connected atomic.Bool
}

// New creates a Discord notifier. Connect must be called before Notify.
func New(cfg Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:    cfg,
		logger: logger.With("component", "discord"),
	}
}

// Name returns "discord".
func (n *Notifier) Name() string { return "discord" }

// Connect opens the Discord gateway connection.
func (n *Notifier) Connect(ctx context.Context) error {
	if n.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}
	if n.cfg.ChannelID == "" {
		return fmt.Errorf("discord: channel id is required")
	}

	session, err := discordgo.New("Bot " + n.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	// Send-only bot: no message content intent needed.
	session.Identify.Intents = discordgo.IntentsGuilds

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	n.session = session
	n.connected.Store(true)

	user := session.State.User
	n.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)
	return nil
}

// Disconnect closes the gateway connection.
func (n *Notifier) Disconnect() error {
	if n.session != nil {
		n.session.Close()
	}
	n.connected.Store(false)
	n.logger.Info("discord: disconnected")
	return nil
}

// Notify sends the event text to the configured channel, splitting
// messages that exceed Discord's length limit.
func (n *Notifier) Notify(ctx context.Context, ev notify.Event) error {
	if n.session == nil || !n.connected.Load() {
		return fmt.Errorf("discord: not connected")
	}

	content := format(ev)
	if content == "" {
		return nil
	}

	for _, chunk := range splitMessage(content, maxMessageLen) {
		if _, err := n.session.ChannelMessageSendComplex(n.cfg.ChannelID, &discordgo.MessageSend{Content: chunk}); err != nil {
			return fmt.Errorf("discord: sending message: %w", err)
		}
	}
	return nil
}

// format renders an event as a Discord message.
func format(ev notify.Event) string {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return ""
	}
	switch ev.Kind {
	case notify.KindReminder:
		return "⏰ Reminder: " + text
	default:
		return text
	}
}

// splitMessage splits text into chunks of at most maxLen, preferring to
// cut at a newline past the halfway point.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}

// Compile-time interface verification.
var _ notify.Notifier = (*Notifier)(nil)
