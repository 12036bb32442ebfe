package http

import "testing"

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		path, pattern string
		want          bool
	}{
		{"/lots", "/lots", true},
		{"/spots/abc-123/release", "/spots/:id/release", true},
		{"/spots//release", "/spots/:id/release", false},
		{"/spots/abc-123", "/spots/:id/release", false},
		{"/v1/spots/abc/release", "/spots/:id/release", false},
		{"/spots/search", "/spots/:id/release", false},
	}
	for _, tc := range cases {
		if got := matchPattern(tc.path, tc.pattern); got != tc.want {
			t.Errorf("matchPattern(%q, %q): expected %v, got %v", tc.path, tc.pattern, tc.want, got)
		}
	}
}
