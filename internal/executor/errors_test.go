package executor

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsAborted(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if IsAborted(nil) {
			t.Fatal("nil should not be marked as aborted")
		}
	})

	t.Run("generic error", func(t *testing.T) {
		if IsAborted(errors.New("boom")) {
			t.Fatal("generic errors must not be treated as aborts")
		}
	})

	t.Run("wrapped abort", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", ErrAborted)
		if !IsAborted(wrapped) {
			t.Fatal("wrapped ErrAborted should be detected")
		}
	})
}
