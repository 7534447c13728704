package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jholhewres/clover/pkg/clover/reminder"
)

// reminderRequest is the parsed form of a spoken "remind me" command.
type reminderRequest struct {
	Text  string
	DueAt time.Time
}

var (
	// transcripts write clock times many ways: "at 10", "at 10:30",
	// "at 10 30 pm", "at 10.30"
	atClockRe = regexp.MustCompile(`\bat (\d{1,2})(?:[:. ](\d{2}))?( ?[ap]\.?m\.?)?\b`)

	// "in 5 minutes", "in an hour", "in a minute"
	inSpanRe = regexp.MustCompile(`\bin (\d+|an?) (second|minute|hour)s?\b`)

	// "set the thermostat to 21"
	toValueRe = regexp.MustCompile(`\bto (\d+)\b`)
)

// parseReminder extracts the reminder text and due time from the query.
// Relative spans count from now; clock times follow the scheduler's
// rollover policy (today when the time has not passed yet, else tomorrow).
// Bare hours with no am/pm are read as a 24-hour clock.
func parseReminder(q string, now time.Time) (reminderRequest, bool) {
	l := strings.ToLower(q)

	if m := inSpanRe.FindStringSubmatchIndex(l); m != nil {
		amount := span(l, m, 1)
		n := 1
		if amount != "a" && amount != "an" {
			n, _ = strconv.Atoi(amount)
		}
		var d time.Duration
		switch span(l, m, 2) {
		case "second":
			d = time.Duration(n) * time.Second
		case "minute":
			d = time.Duration(n) * time.Minute
		case "hour":
			d = time.Duration(n) * time.Hour
		}
		return reminderRequest{
			Text:  reminderText(l, m[0], m[1]),
			DueAt: now.Add(d),
		}, true
	}

	if m := atClockRe.FindStringSubmatchIndex(l); m != nil {
		hour, _ := strconv.Atoi(span(l, m, 1))
		minute := 0
		if s := span(l, m, 2); s != "" {
			minute, _ = strconv.Atoi(s)
		}
		meridiem := strings.ReplaceAll(strings.TrimSpace(span(l, m, 3)), ".", "")
		switch meridiem {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
		if hour > 23 || minute > 59 {
			return reminderRequest{}, false
		}
		due, err := reminder.NextOccurrence(fmt.Sprintf("%02d:%02d", hour, minute), now)
		if err != nil {
			return reminderRequest{}, false
		}
		return reminderRequest{
			Text:  reminderText(l, m[0], m[1]),
			DueAt: due,
		}, true
	}

	return reminderRequest{}, false
}

// span returns submatch i of m over s, "" when the group did not match.
func span(s string, m []int, i int) string {
	if m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}

// reminderText removes the time clause and the "remind me to" lead-in,
// keeping the user's own words for the announcement.
func reminderText(l string, clauseStart, clauseEnd int) string {
	text := l[:clauseStart] + l[clauseEnd:]
	if i := strings.Index(text, "remind me"); i >= 0 {
		text = text[:i] + text[i+len("remind me"):]
	}
	text = strings.TrimSpace(text)
	for _, p := range []string{"to ", "that "} {
		if strings.HasPrefix(text, p) {
			text = strings.TrimSpace(text[len(p):])
			break
		}
	}
	return strings.Trim(text, " .,!?")
}

// noteText pulls the body out of a "take a note" command.
func noteText(q string) string {
	l := strings.ToLower(q)
	for _, marker := range []string{"take a note", "make a note", "note down", "write this down", "write down"} {
		i := strings.Index(l, marker)
		if i < 0 {
			continue
		}
		rest := strings.TrimSpace(l[i+len(marker):])
		rest = strings.TrimPrefix(rest, ":")
		rest = strings.TrimSpace(rest)
		for _, p := range []string{"that ", "saying "} {
			if strings.HasPrefix(rest, p) {
				rest = strings.TrimSpace(rest[len(p):])
				break
			}
		}
		return strings.Trim(rest, " .,!?")
	}
	return ""
}

// wikiStopwords are command words around the actual subject.
var wikiStopwords = map[string]bool{
	"wikipedia": true, "search": true, "for": true, "about": true, "on": true,
	"the": true, "what": true, "does": true, "say": true, "says": true,
	"look": true, "up": true, "find": true, "me": true, "tell": true,
	"from": true, "according": true, "to": true, "a": true, "an": true,
	"please": true, "check": true, "in": true, "of": true, "is": true,
	"who": true, "was": true,
}

// wikipediaTopic strips command words and keeps the subject.
func wikipediaTopic(q string) string {
	var kept []string
	for _, f := range strings.Fields(strings.ToLower(q)) {
		f = strings.Trim(f, ".,!?")
		if f == "" || wikiStopwords[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// homeValueOf extracts the numeric target of a "set ... to N" command.
func homeValueOf(q string) (string, bool) {
	m := toValueRe.FindStringSubmatch(strings.ToLower(q))
	if m == nil {
		return "", false
	}
	return m[1], true
}
