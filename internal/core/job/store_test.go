package job

import (
	"context"
	"errors"
	"testing"
)

// TestSubmitRejectsEmptySource verifies blank sources are rejected before
// any database work: the guard runs ahead of the insert, so a nil pool is
// never touched.
func TestSubmitRejectsEmptySource(t *testing.T) {
	s := NewStore(nil, 3, 0)

	for _, source := range []string{"", "   ", "\t\n"} {
		_, err := s.Submit(context.Background(), source, Options{})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Submit(%q) err = %v, want ErrInvalidInput", source, err)
		}
	}
}
