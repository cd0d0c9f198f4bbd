package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/interact/internal/ir"
)

// SendGuarded sends command as a line, first waiting for guard to appear
// when guard is non-nil. Useful against a shell-style prompt, so input is not
// typed before the child is ready for it.
//
// The wait fails with the transport's end-of-stream or timeout error when
// the guard never shows up.
func SendGuarded(ctx context.Context, s Session, command string, guard *ir.Pattern, timeout time.Duration) error {
	if guard != nil {
		if guard.IsSentinel() {
			return fmt.Errorf("guard must be a text pattern, got %s", guard)
		}
		if _, err := s.Expect(ctx, []ir.Pattern{*guard}, timeout); err != nil {
			return fmt.Errorf("wait for %s: %w", guard, err)
		}
	}
	if err := s.SendLine(command); err != nil {
		return fmt.Errorf("send %q: %w", command, err)
	}
	return nil
}
