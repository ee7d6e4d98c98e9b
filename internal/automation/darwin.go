package automation

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// darwinDriver drives the target via osascript (AppleScript).
type darwinDriver struct {
	logger zerolog.Logger
}

func newDarwinDriver(logger zerolog.Logger) *darwinDriver {
	return &darwinDriver{
		logger: logger.With().Str("driver", "osascript").Logger(),
	}
}

func (d *darwinDriver) IsAvailable() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := exec.LookPath("osascript")
	return err == nil
}

func (d *darwinDriver) runScript(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("osascript: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (d *darwinDriver) FocusWindow(ctx context.Context, titleSubstring string) error {
	script := fmt.Sprintf(`
tell application "System Events"
	repeat with proc in (every process whose background only is false)
		repeat with win in (every window of proc)
			if name of win contains %q then
				set frontmost of proc to true
				perform action "AXRaise" of win
				return
			end if
		end repeat
	end repeat
end tell
error "window not found"`, titleSubstring)

	return d.runScript(ctx, script)
}

func (d *darwinDriver) OpenInputSurface(ctx context.Context) error {
	// Cmd+L opens the agent input panel in the target editor.
	return d.runScript(ctx, `tell application "System Events" to keystroke "l" using {command down}`)
}

func (d *darwinDriver) SetClipboardAndPaste(ctx context.Context, text string) error {
	// Clipboard write and paste keystroke in one osascript invocation: the
	// target clears the clipboard between separate process spawns.
	script := fmt.Sprintf(`
set the clipboard to %s
tell application "System Events" to keystroke "v" using {command down}`, appleScriptString(text))

	return d.runScript(ctx, script)
}

func (d *darwinDriver) PressSubmit(ctx context.Context) error {
	return d.runScript(ctx, `tell application "System Events" to key code 36`)
}

func (d *darwinDriver) PressKey(ctx context.Context, key string) error {
	return d.runScript(ctx, fmt.Sprintf(`tell application "System Events" to keystroke %q`, key))
}

// appleScriptString quotes text as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
