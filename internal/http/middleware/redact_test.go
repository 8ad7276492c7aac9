package middleware

import (
	"strings"
	"testing"
)

func TestScrubQuery(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    []string
		notWant []string
	}{
		{name: "empty", in: ""},
		{name: "plain values kept", in: "limit=5", want: []string{"limit=5"}},
		{name: "secret key masked", in: "limit=5&Token=abc123", want: []string{"Token=[REDACTED]", "limit=5"}, notWant: []string{"abc123"}},
		{name: "email redacted", in: "q=jane.doe@example.com", want: []string{"[REDACTED:email]"}, notWant: []string{"jane.doe"}},
		{name: "phone redacted", in: "q=212-555-1212", want: []string{"[REDACTED:phone]"}, notWant: []string{"555"}},
		{
			name:    "uuid before phone",
			in:      "id=3f2504e0-4f89-41d3-9a0c-0305e82c3301",
			want:    []string{"[REDACTED:id]"},
			notWant: []string{"[REDACTED:phone]", "3f2504e0"},
		},
		{name: "unparseable", in: "q=%zz&mail=a@b.io", want: []string{"[REDACTED:email]"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := scrubQuery(tc.in)
			if tc.in == "" && got != "" {
				t.Fatalf("empty in -> %q", got)
			}
			for _, w := range tc.want {
				if !strings.Contains(got, w) {
					t.Fatalf("scrubQuery(%q) = %q; missing %q", tc.in, got, w)
				}
			}
			for _, nw := range tc.notWant {
				if strings.Contains(got, nw) {
					t.Fatalf("scrubQuery(%q) = %q; must not contain %q", tc.in, got, nw)
				}
			}
		})
	}
}
