package rules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jholhewres/clover/pkg/clover/dispatch"
	"github.com/jholhewres/clover/pkg/clover/reminder"
	"github.com/jholhewres/clover/pkg/clover/smarthome"
	"github.com/jholhewres/clover/pkg/clover/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testNow is Tuesday morning, 2026-08-25 09:00 local.
var testNow = time.Date(2026, 8, 25, 9, 0, 0, 0, time.Local)

type spokenLog struct {
	mu    sync.Mutex
	texts []string
}

func (s *spokenLog) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *spokenLog) joined() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.texts, " | ")
}

type controlCall struct {
	Device  string
	Command string
	Params  map[string]string
}

type fakeControl struct {
	mu    sync.Mutex
	calls []controlCall
	deny  bool
}

func (f *fakeControl) Control(_ context.Context, device, command string, params map[string]string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, controlCall{Device: device, Command: command, Params: params})
	return !f.deny
}

func (f *fakeControl) all() []controlCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]controlCall(nil), f.calls...)
}

type fakeResponder struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeResponder) Respond(_ context.Context, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, query)
	return f.reply, f.err
}

type fakeNotes struct {
	mu      sync.Mutex
	notes   []store.Note
	failAdd bool
}

func (f *fakeNotes) AddNote(text string) (*store.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd {
		return nil, errors.New("disk full")
	}
	n := store.Note{ID: int64(len(f.notes) + 1), Text: text, CreatedAt: testNow}
	f.notes = append(f.notes, n)
	return &n, nil
}

func (f *fakeNotes) ListNotes() ([]store.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Note(nil), f.notes...), nil
}

// newDeps builds rule dependencies around recording fakes.
func newDeps() (Deps, *spokenLog, *fakeControl) {
	speaker := &spokenLog{}
	control := &fakeControl{}
	d := Deps{
		Assistant: "Clover",
		Speaker:   speaker,
		Devices:   control,
		Logger:    discardLogger(),
		Now:       func() time.Time { return testNow },
		SysInfo: func(context.Context) (string, error) {
			return "CPU is at 5 percent and memory is at 40 percent.", nil
		},
	}
	return d, speaker, control
}

// run dispatches one query through the full catalog without fallback.
func run(t *testing.T, d Deps, query string) dispatch.Result {
	t.Helper()
	disp := dispatch.New(Catalog(d), nil, false, discardLogger())
	return disp.Dispatch(context.Background(), query)
}

func TestGreetingByTimeOfDay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hour int
		want string
	}{
		{name: "morning", hour: 9, want: "Good morning!"},
		{name: "afternoon", hour: 14, want: "Good afternoon!"},
		{name: "evening", hour: 21, want: "Good evening!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, speaker, _ := newDeps()
			d.Now = func() time.Time {
				return time.Date(2026, 8, 25, tt.hour, 0, 0, 0, time.Local)
			}

			res := run(t, d, "hello")
			if !res.Handled || res.Rule != "greeting" {
				t.Fatalf("result = %+v, want greeting to commit", res)
			}
			if got := speaker.joined(); !strings.Contains(got, tt.want) {
				t.Errorf("spoke %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimeAndDateRules(t *testing.T) {
	t.Parallel()

	d, speaker, _ := newDeps()

	if res := run(t, d, "what time is it"); res.Rule != "time" {
		t.Fatalf("committed rule = %q, want time", res.Rule)
	}
	if got := speaker.joined(); !strings.Contains(got, "9:00 AM") {
		t.Errorf("spoke %q, want the clock time", got)
	}

	if res := run(t, d, "what day is it today"); res.Rule != "date" {
		t.Fatalf("committed rule = %q, want date", res.Rule)
	}
	if got := speaker.joined(); !strings.Contains(got, "Tuesday, August 25") {
		t.Errorf("spoke %q, want the date", got)
	}
}

func TestCatalogOrderResolvesOverlap(t *testing.T) {
	t.Parallel()

	d, _, _ := newDeps()
	gateHits := 0
	d.Gates = Gates{
		PauseListening:  func() {},
		ResumeListening: func() { gateHits++ },
		RequestShutdown: func() {},
	}

	tests := []struct {
		query    string
		wantRule string
	}{
		{query: "start listening", wantRule: "listening"},
		{query: "turn off the computer", wantRule: "power"},
		{query: "open youtube", wantRule: "website"},
		{query: "open calculator", wantRule: "app"},
		{query: "take a screenshot", wantRule: "screenshot"},
	}

	for _, tt := range tests {
		res := run(t, d, tt.query)
		if res.Rule != tt.wantRule {
			t.Errorf("Dispatch(%q) committed %q, want %q", tt.query, res.Rule, tt.wantRule)
		}
	}
	if gateHits != 1 {
		t.Errorf("resume gate hit %d times, want 1", gateHits)
	}
}

func TestMusicRule(t *testing.T) {
	t.Parallel()

	t.Run("no folder configured still commits", func(t *testing.T) {
		t.Parallel()

		d, speaker, control := newDeps()
		res := run(t, d, "play music")

		if !res.Handled || res.Rule != "music" {
			t.Fatalf("result = %+v, want the music rule to commit", res)
		}
		if got := speaker.joined(); !strings.Contains(got, "music folder") {
			t.Errorf("spoke %q, want the configuration notice", got)
		}
		if len(control.all()) != 0 {
			t.Error("player invoked without a folder")
		}
	})

	t.Run("empty folder", func(t *testing.T) {
		t.Parallel()

		d, speaker, _ := newDeps()
		d.MusicDir = t.TempDir()

		run(t, d, "play some music")
		if got := speaker.joined(); !strings.Contains(got, "find any songs") {
			t.Errorf("spoke %q, want the empty-folder notice", got)
		}
	})

	t.Run("plays a song", func(t *testing.T) {
		t.Parallel()

		d, speaker, control := newDeps()
		d.MusicDir = t.TempDir()
		if err := os.WriteFile(filepath.Join(d.MusicDir, "song.mp3"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(d.MusicDir, "notes.txt"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}

		run(t, d, "play a song")

		calls := control.all()
		if len(calls) != 1 || calls[0].Device != "player" || calls[0].Command != "play" {
			t.Fatalf("control calls = %+v, want one player/play", calls)
		}
		if !strings.HasSuffix(calls[0].Params["path"], "song.mp3") {
			t.Errorf("played %q, want song.mp3", calls[0].Params["path"])
		}
		if got := speaker.joined(); !strings.Contains(got, "Playing song.") {
			t.Errorf("spoke %q, want the song title", got)
		}
	})
}

func TestWebsiteRule(t *testing.T) {
	t.Parallel()

	d, speaker, control := newDeps()
	run(t, d, "open youtube")

	calls := control.all()
	if len(calls) != 1 || calls[0].Device != "browser" || calls[0].Command != "open" {
		t.Fatalf("control calls = %+v, want one browser/open", calls)
	}
	if calls[0].Params["url"] != "https://www.youtube.com" {
		t.Errorf("url = %q", calls[0].Params["url"])
	}
	if !strings.Contains(speaker.joined(), "Opening youtube.") {
		t.Errorf("spoke %q", speaker.joined())
	}

	d2, speaker2, control2 := newDeps()
	control2.deny = true
	run(t, d2, "open github")
	if !strings.Contains(speaker2.joined(), "couldn't open the browser") {
		t.Errorf("spoke %q, want the browser failure notice", speaker2.joined())
	}
}

func TestVolumeRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query       string
		wantCommand string
	}{
		{query: "volume up", wantCommand: "volume_up"},
		{query: "turn it down a bit", wantCommand: "volume_down"},
		{query: "mute the sound", wantCommand: "mute"},
	}

	for _, tt := range tests {
		d, speaker, control := newDeps()
		run(t, d, tt.query)

		calls := control.all()
		if len(calls) != 1 || calls[0].Device != "audio" || calls[0].Command != tt.wantCommand {
			t.Errorf("Dispatch(%q) control calls = %+v, want audio/%s", tt.query, calls, tt.wantCommand)
		}
		if speaker.joined() != "" {
			t.Errorf("Dispatch(%q) spoke %q, volume success should stay quiet", tt.query, speaker.joined())
		}
	}

	d, speaker, control := newDeps()
	control.deny = true
	run(t, d, "volume up")
	if !strings.Contains(speaker.joined(), "couldn't change the volume") {
		t.Errorf("spoke %q, want the volume failure notice", speaker.joined())
	}
}

func TestPowerRuleConfirmation(t *testing.T) {
	t.Parallel()

	t.Run("destructive actions ask first", func(t *testing.T) {
		t.Parallel()

		d, speaker, control := newDeps()
		d.ConfirmPower = true

		res := run(t, d, "shut down the computer")
		if !res.Handled {
			t.Fatal("confirmation prompt must still commit the query")
		}
		if len(control.all()) != 0 {
			t.Fatal("shutdown executed without confirmation")
		}
		if got := speaker.joined(); !strings.Contains(got, "confirm shutdown") {
			t.Errorf("spoke %q, want the confirmation prompt", got)
		}

		run(t, d, "confirm shutdown")
		calls := control.all()
		if len(calls) != 1 || calls[0].Device != "power" || calls[0].Command != "shutdown" {
			t.Errorf("control calls = %+v, want one power/shutdown", calls)
		}
	})

	t.Run("lock never asks", func(t *testing.T) {
		t.Parallel()

		d, _, control := newDeps()
		d.ConfirmPower = true

		run(t, d, "lock the screen")
		calls := control.all()
		if len(calls) != 1 || calls[0].Command != "lock" {
			t.Errorf("control calls = %+v, want one power/lock", calls)
		}
	})

	t.Run("confirmation disabled acts at once", func(t *testing.T) {
		t.Parallel()

		d, _, control := newDeps()
		run(t, d, "reboot")
		calls := control.all()
		if len(calls) != 1 || calls[0].Command != "restart" {
			t.Errorf("control calls = %+v, want one power/restart", calls)
		}
	})
}

func TestRemindRules(t *testing.T) {
	t.Parallel()

	d, speaker, _ := newDeps()
	d.Reminders = reminder.New(time.Hour, nil, nil, discardLogger())

	res := run(t, d, "remind me to drink water at 11 30")
	if res.Rule != "remind-set" {
		t.Fatalf("committed rule = %q, want remind-set", res.Rule)
	}
	if got := speaker.joined(); !strings.Contains(got, "drink water at 11:30 AM") {
		t.Errorf("spoke %q, want the confirmation", got)
	}

	pending := d.Reminders.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].Text != "drink water" {
		t.Errorf("reminder text = %q", pending[0].Text)
	}
	wantDue := time.Date(2026, 8, 25, 11, 30, 0, 0, time.Local)
	if !pending[0].DueAt.Equal(wantDue) {
		t.Errorf("due = %v, want %v", pending[0].DueAt, wantDue)
	}

	if res := run(t, d, "what are my reminders"); res.Rule != "remind-list" {
		t.Fatalf("committed rule = %q, want remind-list", res.Rule)
	}
	if got := speaker.joined(); !strings.Contains(got, "1 pending reminder") {
		t.Errorf("spoke %q, want the listing", got)
	}

	d2, speaker2, _ := newDeps()
	d2.Reminders = reminder.New(time.Hour, nil, nil, discardLogger())
	run(t, d2, "list reminders")
	if !strings.Contains(speaker2.joined(), "no pending reminders") {
		t.Errorf("spoke %q, want the empty notice", speaker2.joined())
	}
}

func TestNoteRules(t *testing.T) {
	t.Parallel()

	d, speaker, _ := newDeps()
	notes := &fakeNotes{}
	d.Notes = notes

	if res := run(t, d, "take a note buy milk"); res.Rule != "note-add" {
		t.Fatalf("committed rule = %q, want note-add", res.Rule)
	}
	if len(notes.notes) != 1 || notes.notes[0].Text != "buy milk" {
		t.Fatalf("stored notes = %+v", notes.notes)
	}
	if !strings.Contains(speaker.joined(), "Noted.") {
		t.Errorf("spoke %q", speaker.joined())
	}

	run(t, d, "read my notes")
	if got := speaker.joined(); !strings.Contains(got, "buy milk") {
		t.Errorf("spoke %q, want the note read back", got)
	}

	d2, speaker2, _ := newDeps()
	d2.Notes = &fakeNotes{failAdd: true}
	run(t, d2, "take a note this will fail")
	if !strings.Contains(speaker2.joined(), "couldn't save") {
		t.Errorf("spoke %q, want the save failure notice", speaker2.joined())
	}

	d3, speaker3, _ := newDeps()
	d3.Notes = &fakeNotes{}
	run(t, d3, "read my notes")
	if !strings.Contains(speaker3.joined(), "no notes") {
		t.Errorf("spoke %q, want the empty notice", speaker3.joined())
	}
}

func TestWikipediaRule(t *testing.T) {
	t.Parallel()

	d, speaker, _ := newDeps()
	resp := &fakeResponder{reply: "Tesla was a prolific inventor."}
	d.Responder = resp

	if res := run(t, d, "search wikipedia for nikola tesla"); res.Rule != "wikipedia" {
		t.Fatalf("committed rule = %q, want wikipedia", res.Rule)
	}
	if len(resp.prompts) != 1 || !strings.Contains(resp.prompts[0], "nikola tesla") {
		t.Errorf("responder prompts = %q, want the topic", resp.prompts)
	}
	if !strings.Contains(speaker.joined(), "Tesla was a prolific inventor.") {
		t.Errorf("spoke %q", speaker.joined())
	}

	d2, speaker2, _ := newDeps()
	d2.Responder = &fakeResponder{err: errors.New("offline")}
	run(t, d2, "wikipedia black holes")
	if !strings.Contains(speaker2.joined(), "couldn't find anything about black holes") {
		t.Errorf("spoke %q, want the lookup failure notice", speaker2.joined())
	}
}

const testHomeRegistry = `
devices:
  - id: hue-living-1
    name: living room light
    kind: light
    room: living room
    commands:
      on: turn_on
      off: turn_off
`

func loadHome(t *testing.T) *smarthome.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte(testHomeRegistry), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := smarthome.Load(path, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestSmartHomeRule(t *testing.T) {
	t.Parallel()

	d, speaker, control := newDeps()
	d.Home = loadHome(t)

	res := run(t, d, "turn on the living room light")
	if res.Rule != "smarthome" {
		t.Fatalf("committed rule = %q, want smarthome", res.Rule)
	}
	calls := control.all()
	if len(calls) != 1 || calls[0].Device != "hue-living-1" || calls[0].Command != "turn_on" {
		t.Fatalf("control calls = %+v, want hue-living-1/turn_on", calls)
	}
	if !strings.Contains(speaker.joined(), "turning on the living room light") {
		t.Errorf("spoke %q", speaker.joined())
	}

	d2, speaker2, control2 := newDeps()
	d2.Home = loadHome(t)
	res = run(t, d2, "turn on the sauna")
	if !res.Handled || res.Rule != "smarthome" {
		t.Fatalf("result = %+v, want the rule to commit on an unknown device", res)
	}
	if len(control2.all()) != 0 {
		t.Error("controller invoked for an unknown device")
	}
	if !strings.Contains(speaker2.joined(), "couldn't find that device") {
		t.Errorf("spoke %q", speaker2.joined())
	}

	// without a registry the verb belongs to other rules or the fallback
	d3, _, _ := newDeps()
	if res := run(t, d3, "turn on the living room light"); res.Handled {
		t.Errorf("result = %+v, want unhandled without a registry", res)
	}
}

func TestListeningAndGoodbyeRules(t *testing.T) {
	t.Parallel()

	var paused, resumed, shutdown int
	d, speaker, _ := newDeps()
	d.Gates = Gates{
		PauseListening:  func() { paused++ },
		ResumeListening: func() { resumed++ },
		RequestShutdown: func() { shutdown++ },
	}

	run(t, d, "stop listening")
	run(t, d, "start listening")
	run(t, d, "goodbye")

	if paused != 1 || resumed != 1 || shutdown != 1 {
		t.Errorf("gates = pause %d, resume %d, shutdown %d, want 1 each", paused, resumed, shutdown)
	}
	if !strings.Contains(speaker.joined(), "Goodbye") {
		t.Errorf("spoke %q, want the goodbye", speaker.joined())
	}

	// "quit" only fires as a standalone word
	if res := run(t, d, "that was quite a day"); res.Handled {
		t.Errorf("result = %+v, \"quite\" must not read as quit", res)
	}
	if shutdown != 1 {
		t.Errorf("shutdown gate hit %d times, want still 1", shutdown)
	}
}

func TestSysinfoAndWeatherRules(t *testing.T) {
	t.Parallel()

	d, speaker, _ := newDeps()
	if res := run(t, d, "what's the cpu usage"); res.Rule != "sysinfo" {
		t.Fatalf("committed rule = %q, want sysinfo", res.Rule)
	}
	if !strings.Contains(speaker.joined(), "CPU is at 5 percent") {
		t.Errorf("spoke %q", speaker.joined())
	}

	d2, speaker2, _ := newDeps()
	res := run(t, d2, "how is the weather")
	if !res.Handled || res.Rule != "weather" {
		t.Fatalf("result = %+v, want weather to commit", res)
	}
	if !strings.Contains(speaker2.joined(), "weather provider") {
		t.Errorf("spoke %q, want the unconfigured notice", speaker2.joined())
	}

	d3, speaker3, _ := newDeps()
	d3.Weather = func(context.Context) (string, error) {
		return "Sunny, 22 degrees.", nil
	}
	run(t, d3, "what's the weather like")
	if !strings.Contains(speaker3.joined(), "Sunny, 22 degrees.") {
		t.Errorf("spoke %q", speaker3.joined())
	}
}

func TestFallbackRule(t *testing.T) {
	t.Parallel()

	dispatchWithFallback := func(d Deps) *dispatch.Dispatcher {
		fb := Fallback(d)
		return dispatch.New(Catalog(d), &fb, true, discardLogger())
	}

	t.Run("responder answers", func(t *testing.T) {
		t.Parallel()

		d, speaker, _ := newDeps()
		d.Responder = &fakeResponder{reply: "A group of crows is called a murder."}

		res := dispatchWithFallback(d).Dispatch(context.Background(), "what do you call a group of crows")
		if !res.Handled || !res.Fallback {
			t.Fatalf("result = %+v, want the fallback to handle it", res)
		}
		if !strings.Contains(speaker.joined(), "murder") {
			t.Errorf("spoke %q", speaker.joined())
		}
	})

	t.Run("responder failure apologizes", func(t *testing.T) {
		t.Parallel()

		d, speaker, _ := newDeps()
		d.Responder = &fakeResponder{err: errors.New("offline")}

		res := dispatchWithFallback(d).Dispatch(context.Background(), "tell me something strange")
		if !res.Handled {
			t.Fatal("fallback must commit even when the responder fails")
		}
		if !strings.Contains(speaker.joined(), apologyNoMatch) {
			t.Errorf("spoke %q, want %q", speaker.joined(), apologyNoMatch)
		}
	})

	t.Run("no responder apologizes", func(t *testing.T) {
		t.Parallel()

		d, speaker, _ := newDeps()
		dispatchWithFallback(d).Dispatch(context.Background(), "tell me something strange")
		if !strings.Contains(speaker.joined(), apologyNoBrain) {
			t.Errorf("spoke %q, want %q", speaker.joined(), apologyNoBrain)
		}
	})
}
