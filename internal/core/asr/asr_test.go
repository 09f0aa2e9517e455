package asr

import (
	"errors"
	"fmt"
	"testing"
)

// TestIsTransient verifies retry classification of transcription errors.
func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", transient("network", nil), true},
		{"permanent", permanent("corrupt audio", nil), false},
		{"wrapped transient", fmt.Errorf("worker: %w", transient("timeout", nil)), true},
		{"wrapped permanent", fmt.Errorf("worker: %w", permanent("bad format", nil)), false},
		{"unclassified", errors.New("boom"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestRetriableStatus verifies which HTTP statuses trigger a retry.
func TestRetriableStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{400, false},
		{408, true},
		{415, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		if got := retriableStatus(tc.code); got != tc.want {
			t.Fatalf("retriableStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

// TestParseCLIOutput verifies segment extraction from whisper JSON.
func TestParseCLIOutput(t *testing.T) {
	out := []byte(`{
		"language": "vi",
		"segments": [
			{"start": 0.0, "end": 2.5, "text": " Tôi yêu em "},
			{"start": 2.5, "end": 4.0, "text": "mãi mãi"}
		]
	}`)

	res, err := ParseCLIOutput(out)
	if err != nil {
		t.Fatalf("ParseCLIOutput: %v", err)
	}
	if res.Language != "vi" {
		t.Fatalf("language = %q, want vi", res.Language)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(res.Segments))
	}
	if res.Segments[0].Text != "Tôi yêu em" {
		t.Fatalf("segment text = %q, want trimmed", res.Segments[0].Text)
	}
	if res.Segments[0].EndMs != 2500 {
		t.Fatalf("end_ms = %d, want 2500", res.Segments[0].EndMs)
	}
}

// TestParseCLIOutputMalformed verifies that garbage output is permanent.
func TestParseCLIOutputMalformed(t *testing.T) {
	_, err := ParseCLIOutput([]byte("not json"))
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) {
		t.Fatal("malformed output should be permanent")
	}
}

// TestNewEngineSelection verifies factory dispatch on engine name.
func TestNewEngineSelection(t *testing.T) {
	if _, err := New(Config{Engine: "whisper-api"}); err != nil {
		t.Fatalf("whisper-api: %v", err)
	}
	if _, err := New(Config{Engine: "whisper-cli"}); err != nil {
		t.Fatalf("whisper-cli: %v", err)
	}
	if _, err := New(Config{Engine: "nope"}); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}
