// Package wakeword implements the always-listening keyword detector that
// arms the capture pipeline. The engine and the audio source sit behind
// ports so the detection loop, its error policy, and its lifecycle can run
// against any frame-based spotter.
package wakeword

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrFrameSourceLost is returned by FrameReader implementations when the
// audio device is gone for good. The detector stops itself instead of
// spinning on a dead microphone.
var ErrFrameSourceLost = errors.New("wakeword: frame source lost")

// maxConsecutiveReadErrors is how many back-to-back transient read failures
// the loop tolerates before treating the source as lost.
const maxConsecutiveReadErrors = 5

// State tracks the detector lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FrameReader delivers fixed-size PCM frames from an audio source.
// ReadFrame honors ctx cancellation and deadlines.
type FrameReader interface {
	ReadFrame(ctx context.Context) ([]int16, error)
	Close() error
}

// KeywordSpotter scans one frame for trained keywords. Process returns the
// keyword index on detection, -1 otherwise. FrameLength is the exact frame
// size the engine expects.
type KeywordSpotter interface {
	Process(frame []int16) (int, error)
	FrameLength() int
	Close() error
}

// Options configure a detector.
type Options struct {
	// Phrase is what the user says to wake the assistant. Detections always
	// report this phrase, whatever keyword model actually fired.
	Phrase string

	// FrameWait bounds a single frame read so Stop never hangs on a silent
	// microphone. A timed-out read is not an error.
	FrameWait time.Duration

	// NewSpotter builds the keyword engine.
	NewSpotter func() (KeywordSpotter, error)

	// NewReader builds the frame source, sized for the engine.
	NewReader func(frameLength int) (FrameReader, error)

	// OnDetect is invoked from the detection goroutine with the phrase. It
	// must not block.
	OnDetect func(phrase string)
}

// Service drives the detection loop. Resource acquisition is deferred to
// Init so a missing microphone or engine key degrades the assistant
// instead of killing it.
type Service struct {
	phrase     string
	frameWait  time.Duration
	newSpotter func() (KeywordSpotter, error)
	newReader  func(frameLength int) (FrameReader, error)
	onDetect   func(phrase string)
	logger     *slog.Logger

	failures chan error

	mu      sync.Mutex
	state   State
	reader  FrameReader
	spotter KeywordSpotter

	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a detector in the uninitialized state.
func New(opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	wait := opts.FrameWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	return &Service{
		phrase:     opts.Phrase,
		frameWait:  wait,
		newSpotter: opts.NewSpotter,
		newReader:  opts.NewReader,
		onDetect:   opts.OnDetect,
		logger:     logger.With("component", "wakeword"),
		failures:   make(chan error, 1),
	}
}

// Init acquires the keyword engine and the frame source. On failure the
// service stays uninitialized; the caller decides how to degrade.
func (s *Service) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return fmt.Errorf("init in state %s", s.state)
	}
	if s.newSpotter == nil || s.newReader == nil {
		return errors.New("no frame source or spotter configured")
	}

	spotter, err := s.newSpotter()
	if err != nil {
		return fmt.Errorf("creating keyword spotter: %w", err)
	}
	reader, err := s.newReader(spotter.FrameLength())
	if err != nil {
		spotter.Close()
		return fmt.Errorf("opening frame source: %w", err)
	}

	s.spotter = spotter
	s.reader = reader
	s.state = StateInitialized
	s.logger.Info("wakeword: initialized",
		"phrase", s.phrase,
		"frame_length", spotter.FrameLength(),
	)
	return nil
}

// Start launches the detection loop. The service must be initialized.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInitialized {
		return fmt.Errorf("start in state %s", s.state)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.state = StateRunning
	go s.run()
	s.logger.Info("wakeword: listening", "phrase", s.phrase)
	return nil
}

// Stop halts the loop and releases audio resources. Safe to call in any
// state; waits at most one frame interval plus a grace second.
func (s *Service) Stop() {
	s.mu.Lock()
	st := s.state
	cancel := s.cancel
	done := s.done
	s.state = StateStopped
	s.mu.Unlock()

	if st == StateStopped {
		return
	}
	if st == StateRunning && cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(s.frameWait + time.Second):
			s.logger.Warn("wakeword: stop timed out")
		}
	}
	s.closeResources()
	s.logger.Info("wakeword: stopped")
}

// State reports the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failures delivers at most one fatal detector error. The supervisor reads
// it to log the degradation; nothing else restarts the detector.
func (s *Service) Failures() <-chan error {
	return s.failures
}

// run is the detection loop. A panic in the engine counts as a fatal
// failure; it never takes the process down.
func (s *Service) run() {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.fail(fmt.Errorf("detector panicked: %v", r))
		}
	}()

	consecutive := 0
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		frame, err := s.readFrame()
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				return
			case errors.Is(err, context.DeadlineExceeded):
				// silent source, try again
				continue
			case errors.Is(err, ErrFrameSourceLost):
				s.fail(err)
				return
			default:
				consecutive++
				s.logger.Warn("wakeword: frame read failed",
					"error", err, "consecutive", consecutive)
				if consecutive >= maxConsecutiveReadErrors {
					s.fail(fmt.Errorf("%d consecutive read failures: %w", consecutive, err))
					return
				}
				continue
			}
		}
		consecutive = 0

		idx, err := s.spotter.Process(frame)
		if err != nil {
			s.logger.Warn("wakeword: spotter failed on frame", "error", err)
			continue
		}
		if idx < 0 {
			continue
		}

		s.logger.Info("wakeword: detected", "phrase", s.phrase)
		if s.onDetect != nil {
			s.onDetect(s.phrase)
		}
	}
}

// readFrame bounds a single read so the loop re-checks cancellation at
// least once per frame interval.
func (s *Service) readFrame() ([]int16, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.frameWait)
	defer cancel()
	return s.reader.ReadFrame(ctx)
}

// fail records a fatal detector failure: state goes to stopped, resources
// are released, the supervisor is notified without blocking.
func (s *Service) fail(err error) {
	s.logger.Error("wakeword: detector stopped", "error", err)
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.closeResources()
	select {
	case s.failures <- err:
	default:
	}
}

// closeResources releases the frame source and the spotter exactly once.
func (s *Service) closeResources() {
	s.closeOnce.Do(func() {
		if s.reader != nil {
			if err := s.reader.Close(); err != nil {
				s.logger.Warn("wakeword: closing frame source", "error", err)
			}
		}
		if s.spotter != nil {
			if err := s.spotter.Close(); err != nil {
				s.logger.Warn("wakeword: closing spotter", "error", err)
			}
		}
	})
}
