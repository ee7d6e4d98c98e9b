// Package automation delivers composed instructions into the coding agent's
// UI-only host application via OS-level input injection.
package automation

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

// StepError reports the failure of one step in the invocation sequence.
// Individual step failures are aggregated into warnings; the sequence
// continues best-effort.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("automation step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Driver is the OS command surface the bridge drives. Implementations wrap
// platform tools; every method is synchronous and returns when the OS
// operation completes.
type Driver interface {
	// FocusWindow raises the window whose title contains the given substring.
	FocusWindow(ctx context.Context, titleSubstring string) error
	// OpenInputSurface issues the target's open-input-surface command.
	OpenInputSurface(ctx context.Context) error
	// SetClipboardAndPaste places text on the clipboard and injects the paste
	// keystroke as one uninterruptible operation. The two must not be split:
	// the target application clears the clipboard between separate calls.
	SetClipboardAndPaste(ctx context.Context, text string) error
	// PressSubmit injects the submit keystroke.
	PressSubmit(ctx context.Context) error
	// PressKey injects an arbitrary keystroke (e.g. "escape").
	PressKey(ctx context.Context, key string) error
	// IsAvailable reports whether the underlying platform tools are present.
	IsAvailable() bool
}

// NewDriver returns the driver for the current platform.
func NewDriver(logger zerolog.Logger) (Driver, error) {
	switch runtime.GOOS {
	case "darwin":
		return newDarwinDriver(logger), nil
	case "linux":
		return newLinuxDriver(logger), nil
	default:
		return nil, fmt.Errorf("no automation driver for %s", runtime.GOOS)
	}
}
