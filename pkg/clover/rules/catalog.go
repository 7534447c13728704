// Package rules defines the builtin command catalog: the ordered rule chain
// the dispatcher scans plus the generative fallback. Order is behavior —
// overlapping keyword predicates are resolved by position, so the slice
// returned by Catalog is the routing table, not just a bag of handlers.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jholhewres/clover/pkg/clover/dispatch"
	"github.com/jholhewres/clover/pkg/clover/ports"
	"github.com/jholhewres/clover/pkg/clover/reminder"
	"github.com/jholhewres/clover/pkg/clover/smarthome"
	"github.com/jholhewres/clover/pkg/clover/store"
)

const (
	apologyNoMatch = "Sorry, I don't know that one yet."
	apologyNoBrain = "I can't think of an answer right now."
)

// NoteStore is the slice of the store the note rules use.
type NoteStore interface {
	AddNote(text string) (*store.Note, error)
	ListNotes() ([]store.Note, error)
}

// Gates are the supervisor hooks behind the listening-control and goodbye
// rules. Nil gates mean there is no live session (one-shot CLI dispatch).
type Gates struct {
	PauseListening  func()
	ResumeListening func()
	RequestShutdown func()
}

// Deps carries everything the builtin rules act through. Nil collaborators
// degrade the affected rules to a spoken notice instead of disabling them.
type Deps struct {
	// Assistant is the spoken name used in greetings.
	Assistant string

	Speaker   ports.SpeechOutput
	Devices   ports.DeviceController
	Responder ports.Responder
	Reminders *reminder.Scheduler
	Notes     NoteStore
	Home      *smarthome.Registry

	// Weather fetches a spoken forecast; nil means no provider configured.
	Weather func(ctx context.Context) (string, error)

	// SysInfo reports machine load; defaults to the gopsutil probe.
	SysInfo func(ctx context.Context) (string, error)

	MusicDir     string
	ConfirmPower bool
	Gates        Gates

	Logger *slog.Logger
	Now    func() time.Time
}

func normalize(d Deps) Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.Logger = d.Logger.With("component", "rules")
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.SysInfo == nil {
		d.SysInfo = systemStats
	}
	if d.Assistant == "" {
		d.Assistant = "Clover"
	}
	return d
}

// Catalog returns the ordered builtin rules.
func Catalog(deps Deps) []dispatch.Rule {
	d := normalize(deps)
	return []dispatch.Rule{
		greetingRule(d),
		timeRule(d),
		dateRule(d),
		wikipediaRule(d),
		websiteRule(d),
		musicRule(d),
		weatherRule(d),
		remindSetRule(d),
		remindListRule(d),
		noteAddRule(d),
		noteReadRule(d),
		volumeRule(d),
		screenshotRule(d),
		powerRule(d),
		appRule(d),
		sysinfoRule(d),
		smartHomeRule(d),
		listeningRule(d),
		goodbyeRule(d),
	}
}

// Fallback builds the chat rule the dispatcher keeps outside the ordered
// scan. It only runs when nothing in the catalog matched.
func Fallback(deps Deps) dispatch.Rule {
	d := normalize(deps)
	return dispatch.Rule{
		Name:  "chat",
		Match: func(string) bool { return true },
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			if d.Responder == nil {
				say(ctx, d, apologyNoBrain)
				return dispatch.Unhandled
			}
			reply, err := d.Responder.Respond(ctx, q)
			if err != nil {
				d.Logger.Warn("rules: fallback responder failed", "error", err)
				say(ctx, d, apologyNoMatch)
				return dispatch.Unhandled
			}
			if reply == "" {
				say(ctx, d, apologyNoMatch)
				return dispatch.Unhandled
			}
			say(ctx, d, reply)
			return dispatch.Handled
		},
	}
}

// StartupGreeting composes the one-time greeting spoken when the daemon
// comes up.
func StartupGreeting(name string, now time.Time) string {
	hour := now.Hour()
	var part string
	switch {
	case hour < 12:
		part = "Good morning!"
	case hour < 18:
		part = "Good afternoon!"
	default:
		part = "Good evening!"
	}
	return fmt.Sprintf("%s %s at your service.", part, name)
}

// say delivers one utterance; speech failures are logged, never propagated,
// so a broken speaker cannot break dispatch.
func say(ctx context.Context, d Deps, text string) {
	if d.Speaker == nil {
		return
	}
	if err := d.Speaker.Speak(ctx, text); err != nil {
		d.Logger.Warn("rules: speech output failed", "error", err)
	}
}

// ---------- The catalog, in order ----------

func greetingRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "greeting",
		Match: func(q string) bool {
			return containsAny(q, "hello", "hi "+strings.ToLower(d.Assistant), "hey "+strings.ToLower(d.Assistant),
				"good morning", "good afternoon", "good evening")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			hour := d.Now().Hour()
			var part string
			switch {
			case hour < 12:
				part = "Good morning!"
			case hour < 18:
				part = "Good afternoon!"
			default:
				part = "Good evening!"
			}
			say(ctx, d, fmt.Sprintf("%s I'm %s. How can I help?", part, d.Assistant))
			return dispatch.Handled
		},
	}
}

func timeRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "time",
		Match: func(q string) bool {
			return containsAny(q, "the time", "what time", "time is it")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			say(ctx, d, "It's "+d.Now().Format("3:04 PM")+".")
			return dispatch.Handled
		},
	}
}

func dateRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "date",
		Match: func(q string) bool {
			return containsAny(q, "the date", "what day", "today's date", "what's today")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			say(ctx, d, "Today is "+d.Now().Format("Monday, January 2")+".")
			return dispatch.Handled
		},
	}
}

func wikipediaRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "wikipedia",
		Match: func(q string) bool {
			return hasWord(q, "wikipedia")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			topic := wikipediaTopic(q)
			if topic == "" {
				say(ctx, d, "What should I look up?")
				return dispatch.Unhandled
			}
			if d.Responder == nil {
				say(ctx, d, "I can't reach my knowledge source right now.")
				return dispatch.Unhandled
			}
			reply, err := d.Responder.Respond(ctx,
				"Give a short spoken summary, two sentences at most, of: "+topic)
			if err != nil || reply == "" {
				if err != nil {
					d.Logger.Warn("rules: wikipedia lookup failed", "topic", topic, "error", err)
				}
				say(ctx, d, "I couldn't find anything about "+topic+".")
				return dispatch.Unhandled
			}
			say(ctx, d, reply)
			return dispatch.Handled
		},
	}
}

func websiteRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "website",
		Match: func(q string) bool {
			_, _, ok := websiteTarget(q)
			return ok
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			name, url, ok := websiteTarget(q)
			if !ok {
				return dispatch.Unhandled
			}
			if d.Devices != nil && d.Devices.Control(ctx, "browser", "open", map[string]string{"url": url}) {
				say(ctx, d, "Opening "+name+".")
				return dispatch.Handled
			}
			say(ctx, d, "I couldn't open the browser.")
			return dispatch.Unhandled
		},
	}
}

func musicRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "music",
		Match: func(q string) bool {
			return containsAny(q, "play music", "play some music", "play a song", "play songs", "play my music")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			if d.MusicDir == "" {
				say(ctx, d, "I don't have a music folder configured. Set music.directory in the config file.")
				return dispatch.Unhandled
			}
			song, err := pickSong(d.MusicDir)
			if err != nil {
				d.Logger.Warn("rules: reading music folder failed", "dir", d.MusicDir, "error", err)
				say(ctx, d, "I couldn't open your music folder.")
				return dispatch.Unhandled
			}
			if song == "" {
				say(ctx, d, "I couldn't find any songs in your music folder.")
				return dispatch.Unhandled
			}
			path := filepath.Join(d.MusicDir, song)
			if d.Devices != nil && d.Devices.Control(ctx, "player", "play", map[string]string{"path": path}) {
				say(ctx, d, "Playing "+strings.TrimSuffix(song, filepath.Ext(song))+".")
				return dispatch.Handled
			}
			say(ctx, d, "I couldn't start the player.")
			return dispatch.Unhandled
		},
	}
}

func weatherRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "weather",
		Match: func(q string) bool {
			return containsAny(q, "weather", "forecast", "temperature outside", "how hot is it", "how cold is it")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			if d.Weather == nil {
				say(ctx, d, "I don't have a weather provider configured yet.")
				return dispatch.Unhandled
			}
			report, err := d.Weather(ctx)
			if err != nil {
				d.Logger.Warn("rules: weather lookup failed", "error", err)
				say(ctx, d, "I couldn't fetch the forecast.")
				return dispatch.Unhandled
			}
			say(ctx, d, report)
			return dispatch.Handled
		},
	}
}

func remindSetRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "remind-set",
		Match: func(q string) bool {
			return containsAny(q, "remind me")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			if d.Reminders == nil {
				say(ctx, d, "Reminders aren't available right now.")
				return dispatch.Unhandled
			}
			req, ok := parseReminder(q, d.Now())
			if !ok {
				say(ctx, d, "I didn't catch a time. Try: remind me to drink water at 10 30.")
				return dispatch.Unhandled
			}
			r, err := d.Reminders.Add(req.Text, req.DueAt)
			if err != nil {
				// still armed in memory; it just won't survive a restart
				d.Logger.Warn("rules: reminder not persisted", "error", err)
			}
			when := r.DueAt.Format("3:04 PM")
			if r.Text != "" {
				say(ctx, d, fmt.Sprintf("Okay, I'll remind you to %s at %s.", r.Text, when))
			} else {
				say(ctx, d, "Okay, I'll remind you at "+when+".")
			}
			return dispatch.Handled
		},
	}
}

func remindListRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "remind-list",
		Match: func(q string) bool {
			return containsAny(q, "my reminders", "list reminders", "pending reminders", "what are my reminders")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			if d.Reminders == nil {
				say(ctx, d, "Reminders aren't available right now.")
				return dispatch.Unhandled
			}
			pending := d.Reminders.Pending()
			if len(pending) == 0 {
				say(ctx, d, "You have no pending reminders.")
				return dispatch.Handled
			}
			var b strings.Builder
			fmt.Fprintf(&b, "You have %d pending %s.", len(pending), plural("reminder", len(pending)))
			for i, r := range pending {
				if i == 5 {
					b.WriteString(" And more after that.")
					break
				}
				fmt.Fprintf(&b, " %d: %s at %s.", i+1, r.Text, r.DueAt.Format("3:04 PM"))
			}
			say(ctx, d, b.String())
			return dispatch.Handled
		},
	}
}

func noteAddRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "note-add",
		Match: func(q string) bool {
			return containsAny(q, "take a note", "make a note", "note down", "write this down", "write down")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			if d.Notes == nil {
				say(ctx, d, "Notes aren't available right now.")
				return dispatch.Unhandled
			}
			text := noteText(q)
			if text == "" {
				say(ctx, d, "What should I write down?")
				return dispatch.Unhandled
			}
			if _, err := d.Notes.AddNote(text); err != nil {
				d.Logger.Warn("rules: saving note failed", "error", err)
				say(ctx, d, "I couldn't save that note.")
				return dispatch.Unhandled
			}
			say(ctx, d, "Noted.")
			return dispatch.Handled
		},
	}
}

func noteReadRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "note-read",
		Match: func(q string) bool {
			return containsAny(q, "read my notes", "read notes", "read the notes")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			if d.Notes == nil {
				say(ctx, d, "Notes aren't available right now.")
				return dispatch.Unhandled
			}
			notes, err := d.Notes.ListNotes()
			if err != nil {
				d.Logger.Warn("rules: reading notes failed", "error", err)
				say(ctx, d, "I couldn't read your notes.")
				return dispatch.Unhandled
			}
			if len(notes) == 0 {
				say(ctx, d, "You have no notes.")
				return dispatch.Handled
			}
			// newest last in storage order; speak up to the five latest
			start := 0
			if len(notes) > 5 {
				start = len(notes) - 5
			}
			var b strings.Builder
			fmt.Fprintf(&b, "You have %d %s.", len(notes), plural("note", len(notes)))
			for i, n := range notes[start:] {
				fmt.Fprintf(&b, " Note %d: %s.", i+1, n.Text)
			}
			say(ctx, d, b.String())
			return dispatch.Handled
		},
	}
}

func volumeRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "volume",
		Match: func(q string) bool {
			return containsAny(q, "volume up", "volume down", "turn it up", "turn it down",
				"louder", "quieter", "mute", "unmute")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			l := strings.ToLower(q)
			var action string
			switch {
			case strings.Contains(l, "mute"):
				action = "mute"
			case containsAny(l, "down", "quieter"):
				action = "volume_down"
			default:
				action = "volume_up"
			}
			if d.Devices == nil || !d.Devices.Control(ctx, "audio", action, nil) {
				say(ctx, d, "I couldn't change the volume.")
				return dispatch.Unhandled
			}
			// volume changes confirm themselves; stay quiet
			return dispatch.Handled
		},
	}
}

func screenshotRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "screenshot",
		Match: func(q string) bool {
			return containsAny(q, "screenshot", "screen shot", "capture the screen")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			if d.Devices != nil && d.Devices.Control(ctx, "display", "screenshot", nil) {
				say(ctx, d, "Screenshot saved.")
				return dispatch.Handled
			}
			say(ctx, d, "I couldn't take a screenshot.")
			return dispatch.Unhandled
		},
	}
}

func powerRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "power",
		Match: func(q string) bool {
			_, ok := powerIntentOf(q)
			return ok
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			intent, ok := powerIntentOf(q)
			if !ok {
				return dispatch.Unhandled
			}
			if intent.confirm && d.ConfirmPower && !strings.Contains(strings.ToLower(q), "confirm") {
				say(ctx, d, "That will shut things down. If you're sure, say: confirm "+intent.command+".")
				return dispatch.Handled
			}
			if d.Devices != nil && d.Devices.Control(ctx, "power", intent.command, nil) {
				say(ctx, d, "Okay, "+intent.spoken+".")
				return dispatch.Handled
			}
			say(ctx, d, "I couldn't do that.")
			return dispatch.Unhandled
		},
	}
}

func appRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "app",
		Match: func(q string) bool {
			_, _, ok := appTarget(q)
			return ok
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			spoken, binary, ok := appTarget(q)
			if !ok {
				return dispatch.Unhandled
			}
			if d.Devices != nil && d.Devices.Control(ctx, "app", "open", map[string]string{"name": binary}) {
				say(ctx, d, "Opening "+spoken+".")
				return dispatch.Handled
			}
			say(ctx, d, "I couldn't open "+spoken+".")
			return dispatch.Unhandled
		},
	}
}

func sysinfoRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "sysinfo",
		Match: func(q string) bool {
			return containsAny(q, "system info", "system status", "cpu usage", "memory usage", "how is the system")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			info, err := d.SysInfo(ctx)
			if err != nil {
				d.Logger.Warn("rules: system stats failed", "error", err)
				say(ctx, d, "I couldn't read the system stats.")
				return dispatch.Unhandled
			}
			say(ctx, d, info)
			return dispatch.Handled
		},
	}
}

func smartHomeRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "smarthome",
		Match: func(q string) bool {
			if d.Home == nil || len(d.Home.Devices()) == 0 {
				return false
			}
			_, ok := homeVerbOf(q)
			return ok
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			verb, _ := homeVerbOf(q)
			device, found := d.Home.Find(q)
			if !found {
				say(ctx, d, "I couldn't find that device.")
				return dispatch.Unhandled
			}
			params := map[string]string{"device": device.ID, "room": device.Room}
			if verb == "set" {
				if v, ok := homeValueOf(q); ok {
					params["value"] = v
				}
			}
			command := d.Home.Command(device, verb)
			if d.Devices != nil && d.Devices.Control(ctx, device.ID, command, params) {
				say(ctx, d, fmt.Sprintf("Okay, %s the %s.", homeSpokenVerb(verb), device.Name))
				return dispatch.Handled
			}
			say(ctx, d, "I couldn't reach the "+device.Name+".")
			return dispatch.Unhandled
		},
	}
}

func listeningRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "listening",
		Match: func(q string) bool {
			return containsAny(q, "stop listening", "pause listening", "start listening",
				"resume listening", "go to sleep", "wake up")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			pausing := containsAny(q, "stop listening", "pause listening", "go to sleep")
			if pausing {
				if d.Gates.PauseListening == nil {
					say(ctx, d, "There's no live session to pause.")
					return dispatch.Unhandled
				}
				say(ctx, d, "Okay, I'll stop listening. Say start listening when you need me.")
				d.Gates.PauseListening()
				return dispatch.Handled
			}
			if d.Gates.ResumeListening == nil {
				say(ctx, d, "There's no live session to resume.")
				return dispatch.Unhandled
			}
			d.Gates.ResumeListening()
			say(ctx, d, "I'm listening.")
			return dispatch.Handled
		},
	}
}

func goodbyeRule(d Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "goodbye",
		Match: func(q string) bool {
			return hasWord(q, "goodbye") || hasWord(q, "bye") || hasWord(q, "exit") || hasWord(q, "quit") ||
				containsAny(q, "good bye", "see you later", "shut yourself down")
		},
		Run: func(ctx context.Context, q string) dispatch.Outcome {
			say(ctx, d, "Goodbye! Talk to you later.")
			if d.Gates.RequestShutdown == nil {
				return dispatch.Unhandled
			}
			d.Gates.RequestShutdown()
			return dispatch.Handled
		},
	}
}

// ---------- Target extraction ----------

// knownSites resolve one-word site names; anything with a dot passes as a
// bare domain. "wikipedia" is absent on purpose: the wikipedia rule sits
// earlier in the catalog and owns that word.
var knownSites = map[string]string{
	"youtube": "https://www.youtube.com",
	"google":  "https://www.google.com",
	"gmail":   "https://mail.google.com",
	"maps":    "https://maps.google.com",
	"github":  "https://github.com",
	"netflix": "https://www.netflix.com",
	"reddit":  "https://www.reddit.com",
	"twitter": "https://twitter.com",
}

func websiteTarget(q string) (name, url string, ok bool) {
	l := strings.ToLower(q)
	i := strings.Index(l, "open ")
	if i < 0 {
		return "", "", false
	}
	rest := strings.TrimSpace(l[i+len("open "):])
	rest = strings.TrimPrefix(rest, "the ")
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", "", false
	}
	first := strings.Trim(fields[0], ".,!?")
	if u, known := knownSites[first]; known {
		return first, u, true
	}
	if strings.Contains(first, ".") {
		return first, "https://" + first, true
	}
	return "", "", false
}

// appBinaries map spoken names to executables. Unknown names run as given;
// the controller reports failure and the rule apologizes.
var appBinaries = map[string]string{
	"calculator":   "gnome-calculator",
	"terminal":     "gnome-terminal",
	"files":        "nautilus",
	"file manager": "nautilus",
	"text editor":  "gedit",
	"editor":       "gedit",
}

// appIgnore keeps the app rule away from utterances other rules own.
var appIgnore = map[string]bool{
	"listening": true,
	"music":     true,
	"a song":    true,
	"notes":     true,
	"my notes":  true,
	"reminders": true,
}

// appTarget only fires when the whole utterance is a launch command; an
// "open" buried mid-sentence belongs to the fallback.
func appTarget(q string) (spoken, binary string, ok bool) {
	l := strings.ToLower(strings.TrimSpace(q))
	for {
		trimmed := l
		for _, p := range []string{"please ", "can you ", "could you "} {
			trimmed = strings.TrimPrefix(trimmed, p)
		}
		if trimmed == l {
			break
		}
		l = trimmed
	}
	for _, verb := range []string{"open ", "launch ", "start "} {
		if !strings.HasPrefix(l, verb) {
			continue
		}
		rest := strings.TrimSpace(l[len(verb):])
		for _, art := range []string{"the ", "my ", "a "} {
			rest = strings.TrimPrefix(rest, art)
		}
		rest = strings.Trim(rest, ".,!?")
		if rest == "" || appIgnore[rest] {
			continue
		}
		if bin, found := appBinaries[rest]; found {
			return rest, bin, true
		}
		first := strings.Fields(rest)[0]
		return first, first, true
	}
	return "", "", false
}

type powerIntent struct {
	command string
	spoken  string
	confirm bool
}

func powerIntentOf(q string) (powerIntent, bool) {
	switch {
	case containsAny(q, "lock the computer", "lock the screen", "lock the pc", "lock my pc"):
		return powerIntent{command: "lock", spoken: "locking the screen"}, true
	case containsAny(q, "put the computer to sleep", "suspend the computer", "suspend the pc"):
		return powerIntent{command: "sleep", spoken: "putting the computer to sleep"}, true
	case containsAny(q, "shut down", "shutdown", "power off the computer", "turn off the computer"):
		return powerIntent{command: "shutdown", spoken: "shutting down", confirm: true}, true
	case containsAny(q, "restart the computer", "reboot"):
		return powerIntent{command: "restart", spoken: "restarting", confirm: true}, true
	}
	return powerIntent{}, false
}

func homeVerbOf(q string) (string, bool) {
	switch {
	case containsAny(q, "turn on", "switch on"):
		return "on", true
	case containsAny(q, "turn off", "switch off"):
		return "off", true
	case containsAny(q, "set "):
		return "set", true
	}
	return "", false
}

func homeSpokenVerb(verb string) string {
	switch verb {
	case "on":
		return "turning on"
	case "off":
		return "turning off"
	case "set":
		return "setting"
	default:
		return verb + "ing"
	}
}

// ---------- Small helpers ----------

// containsAny reports whether any phrase occurs in the lowercased query.
func containsAny(q string, phrases ...string) bool {
	l := strings.ToLower(q)
	for _, p := range phrases {
		if strings.Contains(l, p) {
			return true
		}
	}
	return false
}

// hasWord matches w as a standalone word, so "quit" does not fire on
// "quite".
func hasWord(q, w string) bool {
	for _, f := range strings.Fields(strings.ToLower(q)) {
		if strings.Trim(f, ".,!?") == w {
			return true
		}
	}
	return false
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

var musicExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
}

// pickSong returns a random playable file name from dir, "" when the
// folder has none.
func pickSong(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var songs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if musicExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			songs = append(songs, e.Name())
		}
	}
	if len(songs) == 0 {
		return "", nil
	}
	return songs[rand.IntN(len(songs))], nil
}
