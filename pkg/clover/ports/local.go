package ports

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
)

// LocalController implements DeviceController with desktop shell-outs.
// Each (device, command) pair maps to an argv template; "{param}" tokens are
// substituted from the params map. Unknown pairs and failed commands return
// false — the calling rule tells the user, nothing here panics or raises.
//
// The built-in table targets a Linux desktop. Entries can be overridden or
// extended from config (devices.commands), which is also how smart-home
// bridges that expose a CLI get wired in without code changes.
type LocalController struct {
	logger   *slog.Logger
	commands map[string][]string

	// run executes an argv; replaced in tests.
	run func(ctx context.Context, name string, args ...string) error
}

// defaultCommands is the built-in (device, command) → argv table.
var defaultCommands = map[string][]string{
	"browser/open":       {"xdg-open", "{url}"},
	"audio/volume_up":    {"amixer", "-q", "set", "Master", "5%+"},
	"audio/volume_down":  {"amixer", "-q", "set", "Master", "5%-"},
	"audio/mute":         {"amixer", "-q", "set", "Master", "toggle"},
	"display/screenshot": {"gnome-screenshot"},
	"power/lock":         {"loginctl", "lock-session"},
	"power/sleep":        {"systemctl", "suspend"},
	"power/shutdown":     {"systemctl", "poweroff"},
	"power/restart":      {"systemctl", "reboot"},
	"app/open":           {"{name}"},
	"player/play":        {"xdg-open", "{path}"},
}

// NewLocalController builds a controller with the default table plus any
// overrides (same key format, "device/command").
func NewLocalController(overrides map[string][]string, logger *slog.Logger) *LocalController {
	if logger == nil {
		logger = slog.Default()
	}
	cmds := make(map[string][]string, len(defaultCommands)+len(overrides))
	for k, v := range defaultCommands {
		cmds[k] = v
	}
	for k, v := range overrides {
		cmds[k] = v
	}
	return &LocalController{
		logger:   logger.With("component", "devices"),
		commands: cmds,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Control resolves the argv template and executes it. False means the pair
// is unknown, a template parameter was missing, or the command failed.
func (l *LocalController) Control(ctx context.Context, deviceID, command string, params map[string]string) bool {
	key := deviceID + "/" + command
	tmpl, ok := l.commands[key]
	if !ok || len(tmpl) == 0 {
		l.logger.Debug("devices: no command mapping", "key", key)
		return false
	}

	argv := make([]string, 0, len(tmpl))
	for _, part := range tmpl {
		resolved, ok := substitute(part, params)
		if !ok {
			l.logger.Warn("devices: missing parameter", "key", key, "template", part)
			return false
		}
		argv = append(argv, resolved)
	}

	if err := l.run(ctx, argv[0], argv[1:]...); err != nil {
		l.logger.Warn("devices: command failed", "key", key, "error", err)
		return false
	}
	return true
}

// substitute replaces "{param}" tokens with values from params. The second
// return is false when the template names a parameter that was not given.
func substitute(part string, params map[string]string) (string, bool) {
	if !strings.Contains(part, "{") {
		return part, true
	}
	out := part
	for strings.Contains(out, "{") {
		start := strings.Index(out, "{")
		end := strings.Index(out[start:], "}")
		if end < 0 {
			return out, true // unbalanced brace, treat literally
		}
		name := out[start+1 : start+end]
		val, ok := params[name]
		if !ok {
			return "", false
		}
		out = out[:start] + val + out[start+end+1:]
	}
	return out, true
}
