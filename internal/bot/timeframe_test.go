package bot

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeframe(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"1m", time.Minute},
		{"15m", 15 * time.Minute},
		{"4h", 4 * time.Hour},
		{"1d", 24 * time.Hour},
	}
	for _, c := range cases {
		got, err := parseTimeframe(c.in)
		if err != nil {
			t.Errorf("parseTimeframe(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseTimeframe(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	for _, in := range []string{"", "m", "1x", "-1m", "0h", "banana"} {
		_, err := parseTimeframe(in)
		if err == nil {
			t.Errorf("parseTimeframe(%q): expected error", in)
			continue
		}
		if !errors.Is(err, ErrInvalidTimeframe) {
			t.Errorf("parseTimeframe(%q): error must wrap ErrInvalidTimeframe, got %v", in, err)
		}
	}
}
