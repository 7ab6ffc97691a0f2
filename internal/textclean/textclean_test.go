package textclean

import "testing"

func TestClean(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain", "low mood", "low mood"},
		{"tags", "<p>low <b>mood</b></p>", "low mood"},
		{"inline tags", "<b>de</b>pression", "depression"},
		{"urls", "see https://example.com/a?b=1 and www.example.org today", "see and today"},
		{"whitespace", "  low\n\tmood   today ", "low mood today"},
		{"entities", "anxiety &amp; panic", "anxiety & panic"},
		{"nfc", "cafe\u0301", "caf\u00e9"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Clean(tc.in); got != tc.want {
				t.Fatalf("Clean(%q)=%q want %q", tc.in, got, tc.want)
			}
		})
	}
}
