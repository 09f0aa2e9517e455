package job

import "testing"

// TestStatusTerminal verifies terminal-state classification.
func TestStatusTerminal(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Fatalf("%s.Terminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}
