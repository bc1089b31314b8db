package httpmetrics

import "testing"

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "/"},
		{"root", "/", "/"},
		{"static", "/api/posts", "/api/posts"},
		{"uuid", "/api/posts/2f1e9c2a-9b1d-4e93-8a21-3f1c0de8a111", "/api/posts/{param}"},
		{"uuid with suffix", "/api/users/2f1e9c2a-9b1d-4e93-8a21-3f1c0de8a111/follow", "/api/users/{param}/follow"},
		{"numeric", "/api/users/12345/posts", "/api/users/{param}/posts"},
		{"non numeric segment", "/api/users/alice/posts", "/api/users/alice/posts"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizePath(tc.in); got != tc.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
