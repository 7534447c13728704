package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jholhewres/clover/pkg/clover/reminder"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "clover.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReminderRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	due := time.Date(2026, 8, 25, 7, 0, 0, 0, time.Local)
	r := &reminder.Reminder{
		ID:        "r-1",
		Text:      "water the plants",
		DueAt:     due,
		CreatedAt: due.Add(-12 * time.Hour),
	}
	if err := s.Save(r); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("LoadAll() = %d reminders, want 1", len(loaded))
	}
	got := loaded[0]
	if got.Text != r.Text {
		t.Errorf("Text = %q, want %q", got.Text, r.Text)
	}
	if !got.DueAt.Equal(due) {
		t.Errorf("DueAt = %v, want %v", got.DueAt, due)
	}
	if got.Notified {
		t.Error("fresh reminder loaded as notified")
	}
}

func TestMarkNotifiedPersists(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	r := &reminder.Reminder{
		ID:        "r-2",
		Text:      "stretch",
		DueAt:     time.Now(),
		CreatedAt: time.Now(),
	}
	if err := s.Save(r); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.MarkNotified("r-2"); err != nil {
		t.Fatalf("MarkNotified() failed: %v", err)
	}

	loaded, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	if len(loaded) != 1 || !loaded[0].Notified {
		t.Error("notified flag did not survive the round trip")
	}
}

func TestNotes(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	for _, text := range []string{"buy coffee", "call the dentist"} {
		if _, err := s.AddNote(text); err != nil {
			t.Fatalf("AddNote(%q) failed: %v", text, err)
		}
	}

	notes, err := s.ListNotes()
	if err != nil {
		t.Fatalf("ListNotes() failed: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("ListNotes() = %d notes, want 2", len(notes))
	}
	if notes[0].Text != "buy coffee" {
		t.Errorf("first note = %q, want %q (insertion order)", notes[0].Text, "buy coffee")
	}
}

func TestDispatchLog(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	entries := []DispatchEntry{
		{Query: "what's the time", Handled: true, Rule: "time"},
		{Query: "gibberish", Handled: false},
		{Query: "play music", Handled: true, Rule: "music"},
	}
	for _, e := range entries {
		if err := s.LogDispatch(e); err != nil {
			t.Fatalf("LogDispatch(%q) failed: %v", e.Query, err)
		}
	}

	recent, err := s.RecentDispatches(2)
	if err != nil {
		t.Fatalf("RecentDispatches() failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("RecentDispatches(2) = %d entries, want 2", len(recent))
	}
	if recent[0].Query != "play music" {
		t.Errorf("newest entry = %q, want %q", recent[0].Query, "play music")
	}
	if recent[1].Handled {
		t.Error("unhandled entry loaded as handled")
	}
}
