package amount

import (
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1", 1_000_000},
		{"0.5", 500_000},
		{"12.000001", 12_000_001},
		{"0", 0},
		{"18446744073709.551615", math.MaxUint64},
	}
	for _, c := range cases {
		got, err := Parse(c.in, DefaultDecimals)
		if err != nil || got != c.want {
			t.Errorf("Parse(%q) = %d, %v; want %d", c.in, got, err, c.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"abc", "-1", "0.0000001", "18446744073709.551616"} {
		if _, err := Parse(in, DefaultDecimals); err == nil {
			t.Errorf("Parse(%q) accepted", in)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := Format(1_500_000, DefaultDecimals); got != "1.5" {
		t.Fatalf("Format = %q", got)
	}
	if got := Format(math.MaxUint64, 0); got != "18446744073709551615" {
		t.Fatalf("Format(max) = %q", got)
	}
}
