// Package session owns the assistant's runtime: the dispatcher plus the
// background services, stitched together by the listening gate and a single
// capture slot. The supervisor is the only component that sees the whole
// lifecycle; services never reach across to each other.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/clover/pkg/clover/dispatch"
	"github.com/jholhewres/clover/pkg/clover/monitor"
	"github.com/jholhewres/clover/pkg/clover/ports"
	"github.com/jholhewres/clover/pkg/clover/reminder"
	"github.com/jholhewres/clover/pkg/clover/store"
	"github.com/jholhewres/clover/pkg/clover/wakeword"
)

const apologyUnhandled = "Sorry, I didn't understand that."

// DispatchLog is the slice of the store the supervisor records history to.
type DispatchLog interface {
	LogDispatch(e store.DispatchEntry) error
}

// Options wires the supervisor. Only the dispatcher is required; every nil
// service simply isn't supervised.
type Options struct {
	Dispatcher *dispatch.Dispatcher
	Input      ports.SpeechInput
	Speaker    ports.SpeechOutput
	Wake       *wakeword.Service
	Reminders  *reminder.Scheduler
	Monitor    *monitor.Monitor
	History    DispatchLog

	// CaptureTimeout bounds how long one capture cycle listens for a query.
	CaptureTimeout time.Duration

	// Greeting is spoken once after startup; empty means stay quiet.
	Greeting string

	Logger *slog.Logger
}

// Supervisor runs the assistant session.
type Supervisor struct {
	dispatcher *dispatch.Dispatcher
	input      ports.SpeechInput
	speaker    ports.SpeechOutput
	wake       *wakeword.Service
	reminders  *reminder.Scheduler
	monitor    *monitor.Monitor
	history    DispatchLog

	captureTimeout time.Duration
	greeting       string
	logger         *slog.Logger

	// listening gates wake triggers; capturing is the single capture slot.
	listening atomic.Bool
	capturing atomic.Bool

	shutdown     chan struct{}
	shutdownOnce sync.Once

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	triggers chan string
}

// New builds a supervisor from opts.
func New(opts Options) (*Supervisor, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("session: dispatcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.CaptureTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	s := &Supervisor{
		dispatcher:     opts.Dispatcher,
		input:          opts.Input,
		speaker:        opts.Speaker,
		wake:           opts.Wake,
		reminders:      opts.Reminders,
		monitor:        opts.Monitor,
		history:        opts.History,
		captureTimeout: timeout,
		greeting:       opts.Greeting,
		logger:         logger.With("component", "session"),
		shutdown:       make(chan struct{}),
		triggers:       make(chan string, 1),
	}
	s.listening.Store(true)
	return s, nil
}

// Start brings the services up and begins draining wake triggers. A service
// that fails to start is logged and left stopped; the session runs with
// whatever is available.
func (s *Supervisor) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	if s.reminders != nil {
		if err := s.reminders.Start(s.ctx); err != nil {
			s.logger.Warn("session: reminder scheduler failed to start", "error", err)
		}
	}
	if s.monitor != nil {
		if err := s.monitor.Start(s.ctx); err != nil {
			s.logger.Warn("session: resource monitor failed to start", "error", err)
		}
	}
	if s.wake != nil {
		if err := s.wake.Init(); err != nil {
			s.logger.Warn("session: wake word unavailable, voice trigger disabled", "error", err)
		} else if err := s.wake.Start(s.ctx); err != nil {
			s.logger.Warn("session: wake word failed to start", "error", err)
		}
	}

	go s.loop()
	s.logger.Info("session: started")

	if s.greeting != "" {
		s.say(s.ctx, s.greeting)
	}
	return nil
}

// Stop shuts everything down. Each wait is bounded; an unresponsive loop
// gets a warning, never a hang.
func (s *Supervisor) Stop() {
	s.logger.Info("session: stopping")

	if s.cancel != nil {
		s.cancel()
	}
	if s.wake != nil {
		s.wake.Stop()
	}
	if s.reminders != nil {
		s.reminders.Stop()
	}
	if s.monitor != nil {
		s.monitor.Stop()
	}
	if s.input != nil {
		// unblocks a capture that ignores context cancellation
		if err := s.input.Close(); err != nil {
			s.logger.Debug("session: closing speech input", "error", err)
		}
	}
	if s.done != nil {
		select {
		case <-s.done:
		case <-time.After(s.captureTimeout + time.Second):
			s.logger.Warn("session: stop timed out")
		}
	}
	s.logger.Info("session: stopped")
}

// OnWakeWord is the wake-word service callback. It hands the trigger to the
// supervisor loop without ever blocking the detector goroutine; a trigger
// arriving while a capture cycle is active is dropped, not queued.
func (s *Supervisor) OnWakeWord(phrase string) {
	if !s.listening.Load() {
		s.logger.Debug("session: wake trigger ignored, listening paused", "phrase", phrase)
		return
	}
	if s.capturing.Load() {
		s.logger.Debug("session: wake trigger dropped, capture in progress", "phrase", phrase)
		return
	}
	select {
	case s.triggers <- phrase:
	default:
		s.logger.Debug("session: wake trigger dropped, one already pending", "phrase", phrase)
	}
}

// Handle dispatches one typed query outside the wake path. Console mode and
// the one-shot CLI use it; voice queries arrive through OnWakeWord.
func (s *Supervisor) Handle(ctx context.Context, query string) dispatch.Result {
	return s.dispatchText(ctx, s.logger, query)
}

// CaptureOnce runs a single capture-and-dispatch cycle without a wake
// trigger. It reports false when the input source is exhausted, so console
// mode knows to end its read loop.
func (s *Supervisor) CaptureOnce(ctx context.Context) bool {
	if s.input == nil {
		return false
	}
	if !s.capturing.CompareAndSwap(false, true) {
		return true
	}
	defer s.capturing.Store(false)

	query, err := s.input.Capture(ctx, s.captureTimeout)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrNoSpeech), errors.Is(err, ports.ErrUnintelligible):
			return true
		case errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
			return false
		default:
			s.logger.Warn("session: console capture failed", "error", err)
			return false
		}
	}
	s.dispatchText(ctx, s.logger, query)
	return true
}

// PauseListening makes the session ignore wake triggers until resumed.
func (s *Supervisor) PauseListening() {
	s.listening.Store(false)
	s.logger.Info("session: listening paused")
}

// ResumeListening re-enables wake triggers.
func (s *Supervisor) ResumeListening() {
	s.listening.Store(true)
	s.logger.Info("session: listening resumed")
}

// Listening reports whether wake triggers are currently accepted.
func (s *Supervisor) Listening() bool {
	return s.listening.Load()
}

// RequestShutdown asks the process to exit. Safe to call more than once.
func (s *Supervisor) RequestShutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("session: shutdown requested")
		close(s.shutdown)
	})
}

// ShutdownRequested is closed when a rule or caller asks the assistant to
// exit. The run command selects on it next to the OS signals.
func (s *Supervisor) ShutdownRequested() <-chan struct{} {
	return s.shutdown
}

// loop drains wake triggers and watches for a wake-word service death.
func (s *Supervisor) loop() {
	defer close(s.done)

	var failures <-chan error
	if s.wake != nil {
		failures = s.wake.Failures()
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case phrase := <-s.triggers:
			s.captureCycle(phrase)
		case err := <-failures:
			s.logger.Error("session: wake word service died, voice trigger disabled", "error", err)
			failures = nil
		}
	}
}

// captureCycle runs one acknowledged listen-and-dispatch pass. The capture
// slot is taken for the whole cycle and released on every exit path.
func (s *Supervisor) captureCycle(phrase string) {
	if !s.capturing.CompareAndSwap(false, true) {
		s.logger.Debug("session: capture slot busy, trigger dropped", "phrase", phrase)
		return
	}
	defer s.capturing.Store(false)

	log := s.logger.With("capture_id", uuid.NewString()[:8])
	log.Info("session: wake word detected", "phrase", phrase)

	if s.input == nil {
		log.Warn("session: no speech input configured, capture skipped")
		return
	}

	s.say(s.ctx, "I'm listening.")

	query, err := s.input.Capture(s.ctx, s.captureTimeout)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrNoSpeech), errors.Is(err, ports.ErrUnintelligible):
			log.Debug("session: capture ended without a query", "reason", err)
		case errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		default:
			log.Warn("session: capture failed", "error", err)
		}
		return
	}

	log.Debug("session: captured", "query", query)
	s.dispatchText(s.ctx, log, query)
}

// dispatchText normalizes a query, dispatches it, records history, and
// apologizes aloud when nothing handled it.
func (s *Supervisor) dispatchText(ctx context.Context, log *slog.Logger, raw string) dispatch.Result {
	query := strings.ToLower(strings.TrimSpace(raw))

	res := s.dispatcher.Dispatch(ctx, query)

	if query != "" && s.history != nil {
		entry := store.DispatchEntry{Query: query, Handled: res.Handled, Rule: res.Rule}
		if err := s.history.LogDispatch(entry); err != nil {
			log.Warn("session: recording dispatch failed", "error", err)
		}
	}
	if !res.Handled && query != "" {
		s.say(ctx, apologyUnhandled)
	}
	return res
}

func (s *Supervisor) say(ctx context.Context, text string) {
	if s.speaker == nil {
		return
	}
	if err := s.speaker.Speak(ctx, text); err != nil {
		s.logger.Warn("session: speech output failed", "error", err)
	}
}
