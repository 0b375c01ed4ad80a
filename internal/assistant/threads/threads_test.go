package threads

import "testing"

func TestTerminal(t *testing.T) {
	terminal := []RunStatus{StatusCompleted, StatusFailed, StatusCancelled, StatusExpired}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	// requires_action is waiting on tool outputs; the run can still move.
	nonTerminal := []RunStatus{StatusQueued, StatusInProgress, StatusRequiresAction, StatusCancelling}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
