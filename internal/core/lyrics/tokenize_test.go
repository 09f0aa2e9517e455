package lyrics

import (
	"reflect"
	"testing"
)

// TestTokenize verifies Unicode-aware word splitting.
func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Xin chào, bạn!", []string{"xin", "chào", "bạn"}},
		{"I love you forever", []string{"i", "love", "you", "forever"}},
		{"don't stop believin'", []string{"don't", "stop", "believin'"}},
		{"Tôi yêu em", []string{"tôi", "yêu", "em"}},
		{"1999 im Jahr", []string{"1999", "im", "jahr"}},
		{"--- !!! ---", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := Tokenize(tc.in)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
