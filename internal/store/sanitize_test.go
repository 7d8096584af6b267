package store

import "testing"

func TestSanitizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"markets", "markets"},
		{"FED-25DEC", "FED-25DEC"},
		{"a/b\\c", "a_b_c"},
		{"trending markets", "trending_markets"},
		{"key:with:colons", "key_with_colons"},
		{"dots.and_underscores-ok", "dots.and_underscores-ok"},
		{"ünïcode", "__n__code"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := SanitizeKey(tc.in); got != tc.want {
			t.Errorf("SanitizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
