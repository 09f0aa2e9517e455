package lyrics

import "testing"

// TestCorrectEnglish verifies the English rule set.
func TestCorrectEnglish(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"i love you", "I love you"},
		{"you and i", "you and I"},
		{"im falling", "I'm falling"},
		{"dont stop", "don't stop"},
		{"swim along", "swim along"},
	}
	for _, tc := range cases {
		if got := Correct(tc.in, "en"); got != tc.want {
			t.Fatalf("Correct(%q, en) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestCorrectRegionSubtag verifies "en-US" selects the English rules.
func TestCorrectRegionSubtag(t *testing.T) {
	if got := Correct("i know", "en-US"); got != "I know" {
		t.Fatalf("Correct(en-US) = %q", got)
	}
}

// TestCorrectUnknownLanguagePassthrough verifies unknown codes change nothing.
func TestCorrectUnknownLanguagePassthrough(t *testing.T) {
	in := "i love you dont stop"
	if got := Correct(in, "vi"); got != in {
		t.Fatalf("Correct(vi) = %q, want passthrough", got)
	}
	if got := Correct(in, ""); got != in {
		t.Fatalf("Correct(empty) = %q, want passthrough", got)
	}
}

// TestCorrectMultiline verifies standalone "i" is fixed at line starts.
func TestCorrectMultiline(t *testing.T) {
	in := "hold on tight\ni won't let go"
	want := "hold on tight\nI won't let go"
	if got := Correct(in, "en"); got != want {
		t.Fatalf("Correct = %q, want %q", got, want)
	}
}
