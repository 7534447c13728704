// Package whatsapp delivers Clover notifications to a WhatsApp chat using
// whatsmeow, a native Go WhatsApp Web API library. Send-only: messages go
// to one configured recipient, typically your own number. Linking happens
// once through the pairing flow and the session persists in SQLite.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"

	"github.com/jholhewres/clover/pkg/clover/notify"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for session store.
)

// deviceName shows up in the WhatsApp linked devices list.
const deviceName = "Clover"

// ErrNotLinked means there is no persisted session yet. Pairing is a
// separate interactive step, so Connect never starts a QR flow itself.
var ErrNotLinked = errors.New("whatsapp: no linked session, pair first")

// Config holds the WhatsApp notifier configuration.
type Config struct {
	// Database is the SQLite file holding the whatsmeow session.
	Database string

	// Recipient receives notifications: a phone number ("5511999999999")
	// or a full JID ("5511999999999@s.whatsapp.net").
	Recipient string
}

// Notifier implements notify.Notifier over a linked WhatsApp session.
type Notifier struct {
	cfg    Config
	logger *slog.Logger

	client    *whatsmeow.Client
	connected atomic.Bool
}

// New creates a WhatsApp notifier. Connect must be called before Notify.
func New(cfg Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:    cfg,
		logger: logger.With("component", "whatsapp"),
	}
}

// Name returns "whatsapp".
func (n *Notifier) Name() string { return "whatsapp" }

// open initializes the session store and client without connecting.
func (n *Notifier) open(ctx context.Context) error {
	if n.client != nil {
		return nil
	}
	if n.cfg.Database == "" {
		return fmt.Errorf("whatsapp: session database path is required")
	}

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", n.cfg.Database),
		waLog.Noop)
	if err != nil {
		return fmt.Errorf("whatsapp: creating session store: %w", err)
	}

	device, err := firstDevice(ctx, container)
	if err != nil {
		return fmt.Errorf("whatsapp: loading device: %w", err)
	}

	store.SetOSInfo(deviceName, [3]uint32{1, 0, 0})
	n.client = whatsmeow.NewClient(device, waLog.Noop)
	return nil
}

// Connect reuses the persisted session. Returns ErrNotLinked when no
// device has been paired yet.
func (n *Notifier) Connect(ctx context.Context) error {
	if n.cfg.Recipient == "" {
		return fmt.Errorf("whatsapp: recipient is required")
	}
	if _, err := parseJID(n.cfg.Recipient); err != nil {
		return fmt.Errorf("whatsapp: invalid recipient: %w", err)
	}

	if err := n.open(ctx); err != nil {
		return err
	}
	if n.client.Store.ID == nil {
		return ErrNotLinked
	}

	if err := n.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp: connecting: %w", err)
	}

	n.connected.Store(true)
	n.logger.Info("whatsapp: connected", "jid", n.client.Store.ID.String())
	return nil
}

// Disconnect closes the WhatsApp connection.
func (n *Notifier) Disconnect() error {
	if n.client != nil {
		n.client.Disconnect()
	}
	n.connected.Store(false)
	n.logger.Info("whatsapp: disconnected")
	return nil
}

// Notify sends the event text to the configured recipient.
func (n *Notifier) Notify(ctx context.Context, ev notify.Event) error {
	if !n.connected.Load() {
		return fmt.Errorf("whatsapp: not connected")
	}

	text := format(ev)
	if text == "" {
		return nil
	}

	jid, err := parseJID(n.cfg.Recipient)
	if err != nil {
		return fmt.Errorf("whatsapp: invalid recipient %q: %w", n.cfg.Recipient, err)
	}

	waMsg := &waE2E.Message{Conversation: proto.String(text)}
	if _, err := n.client.SendMessage(ctx, jid, waMsg); err != nil {
		return fmt.Errorf("whatsapp: sending message: %w", err)
	}
	return nil
}

// Pair runs the QR login flow for first-time linking. Each fresh code is
// handed to emit for display; the flow ends on scan success, code
// timeout, or context cancellation. The client is left disconnected.
func (n *Notifier) Pair(ctx context.Context, emit func(code string)) error {
	if err := n.open(ctx); err != nil {
		return err
	}
	if n.client.Store.ID != nil {
		n.logger.Info("whatsapp: already linked", "jid", n.client.Store.ID.String())
		return nil
	}

	// GetQRChannel must be called before Connect.
	qrChan, err := n.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("whatsapp: getting QR channel: %w", err)
	}
	if err := n.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp: connecting for QR: %w", err)
	}
	defer n.client.Disconnect()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				return fmt.Errorf("whatsapp: QR channel closed unexpectedly")
			}
			switch evt.Event {
			case "code":
				attempts++
				n.logger.Info("whatsapp: QR code ready", "attempt", attempts)
				emit(evt.Code)
			case "success":
				n.logger.Info("whatsapp: device linked")
				return nil
			case "timeout":
				n.logger.Warn("whatsapp: QR code expired")
				return fmt.Errorf("whatsapp: QR code timed out, try again")
			default:
				if evt.Error != nil {
					return fmt.Errorf("whatsapp: QR login: %w", evt.Error)
				}
			}
		}
	}
}

// Linked reports whether a persisted session exists, without connecting.
func (n *Notifier) Linked(ctx context.Context) (bool, error) {
	if err := n.open(ctx); err != nil {
		return false, err
	}
	return n.client.Store.ID != nil, nil
}

// firstDevice retrieves the existing device or creates a fresh one.
func firstDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

// format renders an event as a WhatsApp message.
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

// parseJID converts a recipient string to types.JID. Accepts a bare phone
// number ("5511999999999") or a full JID ("5511999999999@s.whatsapp.net").
func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty JID")
	}

	if strings.Contains(s, "@") {
		return types.ParseJID(s)
	}

	// Bare phone number: keep digits only and add the default server.
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 10 {
		return types.JID{}, fmt.Errorf("phone number too short: %s", s)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}

// Compile-time interface verification.
var _ notify.Notifier = (*Notifier)(nil)
