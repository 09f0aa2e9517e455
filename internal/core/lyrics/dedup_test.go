package lyrics

import (
	"reflect"
	"testing"
)

// TestNormalizeLinePreservesUnicode verifies non-ASCII letters survive
// normalization.
func TestNormalizeLinePreservesUnicode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Tôi yêu em", "tôi yêu em"},
		{"Xin chào, bạn!", "xin chào bạn"},
		{"Hello,   WORLD!!!", "hello world"},
		{"don't  stop", "don't stop"},
		{"こんにちは 世界", "こんにちは 世界"},
		{"...", ""},
	}
	for _, tc := range cases {
		if got := NormalizeLine(tc.in); got != tc.want {
			t.Fatalf("NormalizeLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestDedupAdjacentEqual verifies consecutive identical lines collapse.
func TestDedupAdjacentEqual(t *testing.T) {
	in := []string{"I love you", "I love you", "forever"}
	want := []string{"I love you", "forever"}

	got := Dedup(in, 1, 8)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dedup = %v, want %v", got, want)
	}
}

// TestDedupIgnoresPunctuationCase verifies merging works on normalized forms.
func TestDedupIgnoresPunctuationCase(t *testing.T) {
	in := []string{"I love you!", "i love YOU", "forever"}
	want := []string{"I love you!", "forever"}

	got := Dedup(in, 1, 8)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dedup = %v, want %v", got, want)
	}
}

// TestDedupPrefixRepetition verifies a line that extends its neighbor merges
// into the longer copy.
func TestDedupPrefixRepetition(t *testing.T) {
	in := []string{"I love you", "I love you forever and ever"}
	want := []string{"I love you forever and ever"}

	got := Dedup(in, 1, 8)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dedup = %v, want %v", got, want)
	}
}

// TestDedupShortOverlapKept verifies short coincidental overlaps below the
// repetition threshold are not merged.
func TestDedupShortOverlapKept(t *testing.T) {
	in := []string{"oh", "oh what a night"}

	got := Dedup(in, 1, 8)
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("Dedup = %v, want unchanged", got)
	}
}

// TestDedupKeepsSeparatedChorus verifies a legitimately repeated chorus line
// separated by a verse line survives with a window of one.
func TestDedupKeepsSeparatedChorus(t *testing.T) {
	in := []string{"la la la my love", "here comes the verse", "la la la my love"}

	got := Dedup(in, 1, 8)
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("Dedup = %v, want unchanged", got)
	}
}

// TestDedupNonLatin verifies merging of repeated non-Latin lines.
func TestDedupNonLatin(t *testing.T) {
	in := []string{"Tôi yêu em mãi mãi", "Tôi yêu em mãi mãi", "đến muôn đời"}
	want := []string{"Tôi yêu em mãi mãi", "đến muôn đời"}

	got := Dedup(in, 1, 8)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dedup = %v, want %v", got, want)
	}
}

// TestDedupIdempotent verifies dedup(dedup(x)) == dedup(x) across inputs.
func TestDedupIdempotent(t *testing.T) {
	inputs := [][]string{
		{"I love you", "I love you", "forever"},
		{"I love you", "I love you forever and ever", "I love you"},
		{"same line", "same line", "same line", "same line"},
		{"la la la my love", "here comes the verse", "la la la my love"},
		{"Tôi yêu em", "Tôi yêu em", "Tôi yêu em mãi mãi"},
		{"", "  ", "only real line"},
		{},
	}

	for _, in := range inputs {
		for _, window := range []int{1, 2, 3} {
			once := Dedup(in, window, 8)
			twice := Dedup(once, window, 8)
			if !reflect.DeepEqual(once, twice) {
				t.Fatalf("not idempotent (window=%d): in=%v once=%v twice=%v",
					window, in, once, twice)
			}
		}
	}
}
