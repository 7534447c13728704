// Console adapters let Clover run on machines without a microphone or
// speaker: typed lines stand in for captured speech and replies are printed
// (or piped to an external synthesis command). The recognition and synthesis
// engines themselves stay outside this module.

package ports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
)

// ConsoleInput implements SpeechInput over an interactive terminal line
// reader. One background goroutine owns the readline instance; Capture
// waits on its output with the same timeout semantics a microphone capture
// would have. A line typed after a capture timed out is delivered to the
// next capture instead of being lost.
type ConsoleInput struct {
	rl    *readline.Instance
	lines chan lineResult
	once  sync.Once
}

type lineResult struct {
	text string
	err  error
}

// NewConsoleInput opens the terminal reader with the given prompt.
func NewConsoleInput(prompt string) (*ConsoleInput, error) {
	rl, err := readline.New(prompt)
	if err != nil {
		return nil, fmt.Errorf("opening console reader: %w", err)
	}
	return &ConsoleInput{rl: rl, lines: make(chan lineResult, 1)}, nil
}

// readLoop feeds typed lines into the channel until the terminal closes.
func (c *ConsoleInput) readLoop() {
	for {
		line, err := c.rl.Readline()
		if err != nil {
			// Ctrl-C clears the current line, keep reading.
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			c.lines <- lineResult{err: err}
			return
		}
		c.lines <- lineResult{text: line}
	}
}

// Capture returns the next typed line. An empty line or an expired timeout
// maps to ErrNoSpeech, mirroring a silent microphone window.
func (c *ConsoleInput) Capture(ctx context.Context, timeout time.Duration) (string, error) {
	c.once.Do(func() { go c.readLoop() })

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-c.lines:
		if res.err != nil {
			return "", fmt.Errorf("console input: %w", res.err)
		}
		text := strings.TrimSpace(res.text)
		if text == "" {
			return "", ErrNoSpeech
		}
		return text, nil
	case <-timer.C:
		return "", ErrNoSpeech
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close releases the terminal.
func (c *ConsoleInput) Close() error {
	return c.rl.Close()
}

// ConsoleOutput implements SpeechOutput by printing replies.
type ConsoleOutput struct {
	w      io.Writer
	prefix string
}

// NewConsoleOutput writes replies to w, each line prefixed with the
// assistant name ("clover:").
func NewConsoleOutput(w io.Writer, name string) *ConsoleOutput {
	return &ConsoleOutput{w: w, prefix: strings.ToLower(name) + ":"}
}

func (c *ConsoleOutput) Speak(_ context.Context, text string) error {
	_, err := fmt.Fprintf(c.w, "%s %s\n", c.prefix, text)
	return err
}

// CommandOutput implements SpeechOutput by piping text to an external
// synthesis command (espeak, say, piper). The command reads the utterance
// from stdin and owns playback; Speak returns when playback finishes.
type CommandOutput struct {
	name string
	args []string
}

// NewCommandOutput builds an adapter for the given synthesis command line.
func NewCommandOutput(command string, args ...string) *CommandOutput {
	return &CommandOutput{name: command, args: args}
}

func (c *CommandOutput) Speak(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tts command %q: %w: %s", c.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
