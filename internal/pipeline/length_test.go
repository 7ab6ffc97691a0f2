package pipeline

import (
	"strings"
	"testing"
)

func TestSummaryTarget(t *testing.T) {
	cfg := DefaultConfig().Summarize
	cases := []struct {
		words int
		want  int
	}{
		{1, cfg.MinLen},
		{10, cfg.MinLen},
		{100, cfg.MinLen},
		{196, cfg.MinLen},
		{200, 130},
		{394, cfg.MaxLen},
		{10000, cfg.MaxLen},
	}
	for _, tc := range cases {
		text := strings.TrimSpace(strings.Repeat("w ", tc.words))
		if got := SummaryTarget(text, cfg); got != tc.want {
			t.Fatalf("words=%d got %d want %d", tc.words, got, tc.want)
		}
	}
}

func TestSummaryTargetAlwaysInBounds(t *testing.T) {
	cfg := DefaultConfig().Summarize
	for words := 0; words <= 2000; words += 7 {
		got := SummaryTarget(strings.Repeat("x ", words), cfg)
		if got < cfg.MinLen || got > cfg.MaxLen {
			t.Fatalf("words=%d target %d out of [%d,%d]", words, got, cfg.MinLen, cfg.MaxLen)
		}
	}
}
