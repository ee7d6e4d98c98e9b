package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/jarvisbridge/internal/config"
)

// Result is the aggregate outcome of one delivery sequence. Partial failures
// are warnings; Err is set only when the instruction could not be delivered
// at all.
type Result struct {
	OK       bool
	Warnings []string
	Err      error
}

// Bridge delivers a composed instruction into the automation target using a
// strictly sequenced series of best-effort steps. It has no retry policy.
type Bridge struct {
	driver Driver
	cfg    config.AutomationConfig
	logger zerolog.Logger

	// sleep is swappable for tests
	sleep func(time.Duration)
}

// NewBridge creates a delivery bridge over the given driver.
func NewBridge(driver Driver, cfg config.AutomationConfig, logger zerolog.Logger) *Bridge {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 300 * time.Millisecond
	}
	return &Bridge{
		driver: driver,
		cfg:    cfg,
		logger: logger.With().Str("component", "automation").Logger(),
		sleep:  time.Sleep,
	}
}

// Deliver runs the fixed sequence: focus the target window (preferred title
// first, then fallback, warn-and-continue on total failure), open the input
// surface, place the sanitized instruction via the atomic clipboard+paste
// step, then submit. Each step is separated by a settle delay.
func (b *Bridge) Deliver(ctx context.Context, instruction string) Result {
	var result Result

	// Step 1: focus
	if err := b.focusTarget(ctx); err != nil {
		// Focus failure is survivable: the target may already be frontmost.
		result.Warnings = append(result.Warnings, fmt.Sprintf("focus failed: %v", err))
		b.logger.Warn().Err(err).Msg("could not focus target window, continuing")
	}
	b.sleep(b.cfg.SettleDelay)

	// Step 2: open input surface
	if err := b.driver.OpenInputSurface(ctx); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("open input surface failed: %v", err))
		b.logger.Warn().Err(err).Msg("open input surface failed, continuing")
	}
	b.sleep(b.cfg.SettleDelay)

	// Step 3: sanitized clipboard + paste, atomically
	text := SanitizeText(instruction)
	pasted := true
	if err := b.driver.SetClipboardAndPaste(ctx, text); err != nil {
		pasted = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("paste failed: %v", err))
		b.logger.Error().Err(err).Msg("clipboard paste failed")
	}
	b.sleep(b.cfg.SettleDelay)

	// Step 4: submit
	submitted := true
	if err := b.driver.PressSubmit(ctx); err != nil {
		submitted = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("submit failed: %v", err))
		b.logger.Error().Err(err).Msg("submit keystroke failed")
	}

	// The instruction reached the agent only if it was pasted and submitted.
	if pasted && submitted {
		result.OK = true
		if len(result.Warnings) > 0 {
			b.logger.Warn().Strs("warnings", result.Warnings).Msg("instruction delivered with warnings")
		} else {
			b.logger.Info().Int("chars", len(text)).Msg("instruction delivered")
		}
		return result
	}

	result.Err = fmt.Errorf("instruction could not be delivered: %v", result.Warnings)
	return result
}

// focusTarget prefers the test/host window variant, falling back silently to
// the primary window.
func (b *Bridge) focusTarget(ctx context.Context) error {
	if b.cfg.PreferredTitle != "" {
		if err := b.driver.FocusWindow(ctx, b.cfg.PreferredTitle); err == nil {
			return nil
		}
	}
	if b.cfg.FallbackTitle == "" {
		return &StepError{Step: "focus", Err: fmt.Errorf("preferred window %q not found and no fallback configured", b.cfg.PreferredTitle)}
	}
	if err := b.driver.FocusWindow(ctx, b.cfg.FallbackTitle); err != nil {
		return &StepError{Step: "focus", Err: err}
	}
	return nil
}
