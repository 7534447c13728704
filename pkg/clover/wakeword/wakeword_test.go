package wakeword

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeReader struct {
	read   func(ctx context.Context) ([]int16, error)
	closed atomic.Int32
}

func (f *fakeReader) ReadFrame(ctx context.Context) ([]int16, error) { return f.read(ctx) }
func (f *fakeReader) Close() error                                   { f.closed.Add(1); return nil }

// fakeSpotter pops one scripted result per frame, then reports silence.
type fakeSpotter struct {
	mu     sync.Mutex
	script []int
	closed atomic.Int32
}

func (f *fakeSpotter) Process([]int16) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) == 0 {
		return -1, nil
	}
	v := f.script[0]
	f.script = f.script[1:]
	return v, nil
}

func (f *fakeSpotter) FrameLength() int { return 512 }
func (f *fakeSpotter) Close() error     { f.closed.Add(1); return nil }

func steadyFrames(ctx context.Context) ([]int16, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Millisecond):
		return make([]int16, 512), nil
	}
}

func newTestService(t *testing.T, reader *fakeReader, spotter *fakeSpotter, onDetect func(string)) *Service {
	t.Helper()
	return New(Options{
		Phrase:     "hey clover",
		FrameWait:  50 * time.Millisecond,
		NewSpotter: func() (KeywordSpotter, error) { return spotter, nil },
		NewReader: func(frameLength int) (FrameReader, error) {
			if frameLength != 512 {
				t.Errorf("reader sized for %d samples, want 512", frameLength)
			}
			return reader, nil
		},
		OnDetect: onDetect,
	}, discardLogger())
}

func TestServiceLifecycle(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{read: steadyFrames}
	spotter := &fakeSpotter{}
	svc := newTestService(t, reader, spotter, nil)

	if got := svc.State(); got != StateUninitialized {
		t.Fatalf("state after New = %s, want uninitialized", got)
	}
	if err := svc.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if got := svc.State(); got != StateInitialized {
		t.Fatalf("state after Init = %s, want initialized", got)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if got := svc.State(); got != StateRunning {
		t.Fatalf("state after Start = %s, want running", got)
	}

	svc.Stop()
	if got := svc.State(); got != StateStopped {
		t.Errorf("state after Stop = %s, want stopped", got)
	}
	if reader.closed.Load() != 1 || spotter.closed.Load() != 1 {
		t.Errorf("close counts = reader %d, spotter %d, want 1 each",
			reader.closed.Load(), spotter.closed.Load())
	}

	// Stop must be idempotent.
	svc.Stop()
	if reader.closed.Load() != 1 {
		t.Error("second Stop closed resources again")
	}
}

func TestInitFailure(t *testing.T) {
	t.Parallel()

	t.Run("spotter factory fails", func(t *testing.T) {
		t.Parallel()
		svc := New(Options{
			Phrase:     "hey clover",
			NewSpotter: func() (KeywordSpotter, error) { return nil, errors.New("no access key") },
			NewReader:  func(int) (FrameReader, error) { t.Fatal("reader built without spotter"); return nil, nil },
		}, discardLogger())

		if err := svc.Init(); err == nil {
			t.Fatal("Init() should fail when the spotter factory fails")
		}
		if got := svc.State(); got != StateUninitialized {
			t.Errorf("state after failed Init = %s, want uninitialized", got)
		}
	})

	t.Run("reader factory fails closes spotter", func(t *testing.T) {
		t.Parallel()
		spotter := &fakeSpotter{}
		svc := New(Options{
			Phrase:     "hey clover",
			NewSpotter: func() (KeywordSpotter, error) { return spotter, nil },
			NewReader:  func(int) (FrameReader, error) { return nil, errors.New("no microphone") },
		}, discardLogger())

		if err := svc.Init(); err == nil {
			t.Fatal("Init() should fail when the reader factory fails")
		}
		if spotter.closed.Load() != 1 {
			t.Errorf("spotter close count = %d, want 1", spotter.closed.Load())
		}
	})

	t.Run("no factories configured", func(t *testing.T) {
		t.Parallel()
		svc := New(Options{Phrase: "hey clover"}, discardLogger())
		if err := svc.Init(); err == nil {
			t.Fatal("Init() should fail without factories")
		}
	})
}

func TestStartRequiresInit(t *testing.T) {
	t.Parallel()

	svc := New(Options{Phrase: "hey clover"}, discardLogger())
	if err := svc.Start(context.Background()); err == nil {
		t.Fatal("Start() before Init() should fail")
	}
}

func TestDetectionReportsPhrase(t *testing.T) {
	t.Parallel()

	detections := make(chan string, 8)
	reader := &fakeReader{read: steadyFrames}
	// two different model keywords fire; both must surface as the phrase
	spotter := &fakeSpotter{script: []int{-1, 0, -1, 2}}
	svc := newTestService(t, reader, spotter, func(phrase string) {
		detections <- phrase
	})

	if err := svc.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer svc.Stop()

	for i := 0; i < 2; i++ {
		select {
		case phrase := <-detections:
			if phrase != "hey clover" {
				t.Errorf("detection %d reported %q, want the user-facing phrase", i, phrase)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for detection %d", i)
		}
	}
}

func TestTransientReadErrorsTolerated(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	reader := &fakeReader{read: func(ctx context.Context) ([]int16, error) {
		if calls.Add(1) <= 2 {
			return nil, errors.New("overrun")
		}
		return steadyFrames(ctx)
	}}
	detections := make(chan string, 1)
	spotter := &fakeSpotter{script: []int{0}}
	svc := newTestService(t, reader, spotter, func(phrase string) {
		select {
		case detections <- phrase:
		default:
		}
	})

	if err := svc.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer svc.Stop()

	select {
	case <-detections:
	case <-time.After(2 * time.Second):
		t.Fatal("detector gave up after transient errors")
	}

	select {
	case err := <-svc.Failures():
		t.Errorf("transient errors reported as fatal: %v", err)
	default:
	}
}

func TestConsecutiveReadErrorsAreFatal(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{read: func(context.Context) ([]int16, error) {
		return nil, errors.New("device wedged")
	}}
	spotter := &fakeSpotter{}
	svc := newTestService(t, reader, spotter, nil)

	if err := svc.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case err := <-svc.Failures():
		if err == nil {
			t.Fatal("nil failure notification")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("repeated read errors never became fatal")
	}
	if got := svc.State(); got != StateStopped {
		t.Errorf("state after fatal failure = %s, want stopped", got)
	}
	if reader.closed.Load() != 1 || spotter.closed.Load() != 1 {
		t.Error("resources not released after self-stop")
	}

	// supervisor shutdown still calls Stop; must stay safe
	svc.Stop()
}

func TestFrameSourceLostIsImmediatelyFatal(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{read: func(context.Context) ([]int16, error) {
		return nil, fmt.Errorf("reading stream: %w", ErrFrameSourceLost)
	}}
	svc := newTestService(t, reader, &fakeSpotter{}, nil)

	if err := svc.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case err := <-svc.Failures():
		if !errors.Is(err, ErrFrameSourceLost) {
			t.Errorf("failure = %v, want ErrFrameSourceLost", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lost frame source never reported")
	}
}

func TestStopBoundedOnSilentSource(t *testing.T) {
	t.Parallel()

	// a silent microphone: reads only ever end by deadline
	reader := &fakeReader{read: func(ctx context.Context) ([]int16, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	svc := newTestService(t, reader, &fakeSpotter{}, nil)

	if err := svc.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	start := time.Now()
	svc.Stop()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop took %v on a silent source", elapsed)
	}
}
