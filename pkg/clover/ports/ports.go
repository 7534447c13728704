// Package ports defines the capability interfaces Clover uses to reach its
// external collaborators: speech capture, speech synthesis, the generative
// responder, and device control. The core never touches hardware or vendor
// APIs directly — every side effect crosses one of these boundaries, which
// keeps the dispatch and lifecycle logic testable with in-memory fakes.
package ports

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Sentinel errors for capture outcomes the caller branches on.
var (
	// ErrNoSpeech means the capture window elapsed without intelligible
	// input. Callers treat this as "no query", never as a failure.
	ErrNoSpeech = errors.New("no speech detected")

	// ErrUnintelligible means audio was heard but could not be recognized.
	// Treated the same as ErrNoSpeech by the capture cycle.
	ErrUnintelligible = errors.New("speech not recognized")
)

// SpeechInput captures one utterance and returns its transcription.
type SpeechInput interface {
	// Capture blocks until speech is transcribed, the timeout elapses, or
	// ctx is cancelled. A timeout returns ErrNoSpeech; unrecognizable audio
	// returns ErrUnintelligible. Any other error is a device-level failure.
	Capture(ctx context.Context, timeout time.Duration) (string, error)

	// Close releases the underlying capture resource.
	Close() error
}

// SpeechOutput synthesizes and plays one utterance. Implementations do not
// need to be safe for concurrent use; wrap them in a SerialSpeaker.
type SpeechOutput interface {
	Speak(ctx context.Context, text string) error
}

// Responder is the generative-language backend used by the fallback rule.
// An empty reply with a nil error means the responder had nothing to say;
// the caller substitutes an apology.
type Responder interface {
	Respond(ctx context.Context, query string) (string, error)
}

// DeviceController executes a command against a named device (browser,
// audio mixer, power management, a smart-home light). The boolean result is
// the business outcome: false means the device refused or was not found,
// which the calling rule reports to the user. Controllers never panic for
// expected failures.
type DeviceController interface {
	Control(ctx context.Context, deviceID, command string, params map[string]string) bool
}

// SerialSpeaker serializes Speak calls from every component through a single
// gate so two announcements never interleave on the audio device. Reminder
// firings, dispatch replies, and apologies all contend here; order is
// best-effort FIFO (whoever blocks on the mutex first speaks first).
type SerialSpeaker struct {
	out SpeechOutput
	mu  sync.Mutex
}

// NewSerialSpeaker wraps out with the global speak gate.
func NewSerialSpeaker(out SpeechOutput) *SerialSpeaker {
	return &SerialSpeaker{out: out}
}

// Speak plays text after acquiring the gate. The ctx deadline applies to the
// playback itself, not to the wait for the gate.
func (s *SerialSpeaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Speak(ctx, text)
}
