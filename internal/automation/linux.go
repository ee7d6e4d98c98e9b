package automation

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// linuxDriver drives the target via xdotool and xclip.
type linuxDriver struct {
	logger zerolog.Logger
}

func newLinuxDriver(logger zerolog.Logger) *linuxDriver {
	return &linuxDriver{
		logger: logger.With().Str("driver", "xdotool").Logger(),
	}
}

func (d *linuxDriver) IsAvailable() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	if _, err := exec.LookPath("xdotool"); err != nil {
		return false
	}
	_, err := exec.LookPath("xclip")
	return err == nil
}

func (d *linuxDriver) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (d *linuxDriver) FocusWindow(ctx context.Context, titleSubstring string) error {
	return d.run(ctx, "xdotool", "search", "--name", titleSubstring, "windowactivate", "--sync")
}

func (d *linuxDriver) OpenInputSurface(ctx context.Context) error {
	return d.run(ctx, "xdotool", "key", "ctrl+l")
}

func (d *linuxDriver) SetClipboardAndPaste(ctx context.Context, text string) error {
	// One shell invocation covering both the clipboard write and the paste
	// keystroke, so nothing can clear the clipboard in between.
	cmd := exec.CommandContext(ctx, "sh", "-c", "xclip -selection clipboard && xdotool key ctrl+v")
	cmd.Stdin = bytes.NewReader([]byte(text))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("clipboard paste: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (d *linuxDriver) PressSubmit(ctx context.Context) error {
	return d.run(ctx, "xdotool", "key", "Return")
}

func (d *linuxDriver) PressKey(ctx context.Context, key string) error {
	return d.run(ctx, "xdotool", "key", key)
}
