// Package dispatch routes a transcribed query through an ordered chain of
// intent rules. The routing policy is first-match-commits: the first rule
// whose predicate accepts the query owns it, whether or not its action then
// succeeds. Scanning never resumes past a committed rule — later rules have
// overlapping keyword predicates, and falling through after a failed action
// would double-handle the query.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
)

// Outcome is the explicit business result of a rule action. Expected
// failures ("music folder not configured") are values, not panics.
type Outcome int

const (
	// Unhandled means the action ran but could not complete its job. The
	// action itself has already told the user; dispatch does not retry.
	Unhandled Outcome = iota

	// Handled means the action completed.
	Handled
)

// Rule pairs a cheap, side-effect-free predicate with an action. Position
// in the dispatcher's slice is the rule's priority; rules are never
// compared, only scanned in order.
type Rule struct {
	// Name identifies the rule in logs and dispatch history.
	Name string

	// Match reports whether this rule wants the query. Must be pure and
	// sub-millisecond: it runs on every dispatch until one accepts.
	Match func(query string) bool

	// Run performs the command. It may speak, control devices, or append
	// reminders. Called only when Match accepted the query.
	Run func(ctx context.Context, query string) Outcome
}

// Result reports how a query was routed.
type Result struct {
	// Handled is true when a rule committed to the query (even if its
	// action then reported an internal failure) or the fallback ran.
	Handled bool

	// RuleIndex is the position of the committed rule, len(rules) for the
	// fallback, -1 when nothing matched.
	RuleIndex int

	// Rule is the committed rule's name, "" when nothing matched.
	Rule string

	// Fallback is true when the generative fallback handled the query.
	Fallback bool
}

// Dispatcher holds the ordered rule chain plus one designated fallback.
// Membership is fixed at construction; only the fallback's availability is
// configuration-driven.
type Dispatcher struct {
	rules           []Rule
	fallback        *Rule
	fallbackEnabled bool
	logger          *slog.Logger
}

// New builds a dispatcher. fallback may be nil; fallbackEnabled gates it.
func New(rules []Rule, fallback *Rule, fallbackEnabled bool, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		rules:           rules,
		fallback:        fallback,
		fallbackEnabled: fallbackEnabled,
		logger:          logger.With("component", "dispatch"),
	}
}

// Dispatch evaluates query against the chain. An empty or whitespace-only
// query short-circuits to unhandled without invoking a single predicate.
func (d *Dispatcher) Dispatch(ctx context.Context, query string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{RuleIndex: -1}
	}

	for i := range d.rules {
		rule := &d.rules[i]
		if !rule.Match(query) {
			continue
		}

		outcome := d.runRule(ctx, rule, query)
		if outcome == Unhandled {
			d.logger.Debug("dispatch: rule committed but reported failure",
				"rule", rule.Name, "query", query)
		} else {
			d.logger.Debug("dispatch: handled", "rule", rule.Name, "index", i)
		}
		return Result{Handled: true, RuleIndex: i, Rule: rule.Name}
	}

	if d.fallback != nil && d.fallbackEnabled {
		d.logger.Debug("dispatch: no rule matched, using fallback", "query", query)
		d.runRule(ctx, d.fallback, query)
		return Result{
			Handled:   true,
			RuleIndex: len(d.rules),
			Rule:      d.fallback.Name,
			Fallback:  true,
		}
	}

	d.logger.Debug("dispatch: no rule matched, fallback unavailable", "query", query)
	return Result{RuleIndex: -1}
}

// runRule invokes an action under panic recovery. A panicking action is a
// programmer error; it is logged and treated as a failed-but-committed run
// so the process never crashes on a bad rule.
func (d *Dispatcher) runRule(ctx context.Context, rule *Rule, query string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch: rule action panicked",
				"rule", rule.Name, "panic", r)
			outcome = Unhandled
		}
	}()
	return rule.Run(ctx, query)
}
