package whatsapp

import (
	"context"
	"testing"

	"go.mau.fi/whatsmeow/types"

	"github.com/jholhewres/clover/pkg/clover/notify"
)

func TestParseJID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    types.JID
		wantErr bool
	}{
		{
			name: "bare phone number",
			in:   "5511999999999",
			want: types.NewJID("5511999999999", types.DefaultUserServer),
		},
		{
			name: "formatted phone number",
			in:   "+55 (11) 99999-9999",
			want: types.NewJID("5511999999999", types.DefaultUserServer),
		},
		{
			name: "full JID",
			in:   "5511999999999@s.whatsapp.net",
			want: types.NewJID("5511999999999", types.DefaultUserServer),
		},
		{
			name:    "empty",
			in:      "   ",
			wantErr: true,
		},
		{
			name:    "too short",
			in:      "12345",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseJID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseJID(%q) error = nil, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseJID(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseJID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	if got := format(notify.Event{Kind: notify.KindReminder, Text: "call mom"}); got != "⏰ Reminder: call mom" {
		t.Errorf("format(reminder) = %q", got)
	}
	if got := format(notify.Event{Kind: notify.KindReply, Text: "done"}); got != "done" {
		t.Errorf("format(reply) = %q", got)
	}
	if got := format(notify.Event{Kind: notify.KindReminder, Text: ""}); got != "" {
		t.Errorf("format(empty) = %q, want empty", got)
	}
}

func TestNotifyWhenDisconnected(t *testing.T) {
	t.Parallel()

	n := New(Config{Database: "x.db", Recipient: "5511999999999"}, nil)
	err := n.Notify(context.Background(), notify.Event{Kind: notify.KindReminder, Text: "x"})
	if err == nil {
		t.Error("Notify() on a disconnected notifier did not error")
	}
}

func TestConnectValidatesRecipient(t *testing.T) {
	t.Parallel()

	t.Run("missing recipient", func(t *testing.T) {
		t.Parallel()
		n := New(Config{Database: "x.db"}, nil)
		if err := n.Connect(context.Background()); err == nil {
			t.Error("Connect() with no recipient did not error")
		}
	})

	t.Run("malformed recipient", func(t *testing.T) {
		t.Parallel()
		n := New(Config{Database: "x.db", Recipient: "123"}, nil)
		if err := n.Connect(context.Background()); err == nil {
			t.Error("Connect() with a short phone number did not error")
		}
	})
}
