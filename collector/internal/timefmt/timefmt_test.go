package timefmt

import (
	"testing"
	"time"
)

func TestParse_FallbackChain(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Wed Feb 25 14:30:00 +0000 2026", "2026-02-25T14:30:00Z"},
		{"Wed Feb 25 14:30:00 +0530 2026", "2026-02-25T09:00:00Z"},
		{"2026-02-25T14:30:00Z", "2026-02-25T14:30:00Z"},
		{"2026-02-25T14:30:00.123Z", "2026-02-25T14:30:00Z"},
		{"2026-02-25T14:30:00+05:30", "2026-02-25T09:00:00Z"},
		{"2026-02-25 14:30:00", "2026-02-25T14:30:00Z"},
		{"2026-02-25", "2026-02-25T00:00:00Z"},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.raw)
		if !ok {
			t.Fatalf("Parse(%q): not parsed", tt.raw)
		}
		if Format(got) != tt.want {
			t.Fatalf("Parse(%q): got %s, want %s", tt.raw, Format(got), tt.want)
		}
	}
}

func TestParse_Unparsable(t *testing.T) {
	for _, raw := range []string{"", "yesterday", "25/02/2026"} {
		if _, ok := Parse(raw); ok {
			t.Fatalf("Parse(%q): expected failure", raw)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("Wed Feb 25 14:30:00 +0000 2026"); got != "2026-02-25T14:30:00Z" {
		t.Fatalf("Normalize: got %q", got)
	}
	if got := Normalize("garbage"); got != "" {
		t.Fatalf("Normalize(garbage): got %q, want empty", got)
	}
}

func TestFormat_TruncatesSubsecond(t *testing.T) {
	in := time.Date(2026, 2, 25, 14, 30, 0, 123456789, time.UTC)
	if got := Format(in); got != "2026-02-25T14:30:00Z" {
		t.Fatalf("Format: got %q", got)
	}
}

func TestOnOrAfter(t *testing.T) {
	since := time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC)

	if !OnOrAfter("2026-02-25T00:00:00Z", since) {
		t.Fatal("exact boundary should be in range")
	}
	if OnOrAfter("2026-02-24T23:59:59Z", since) {
		t.Fatal("one second before should be out of range")
	}
	// Unparsable timestamps are conservatively kept.
	if !OnOrAfter("", since) {
		t.Fatal("empty timestamp should be kept")
	}
	if !OnOrAfter("not a date", since) {
		t.Fatal("unparsable timestamp should be kept")
	}
}
