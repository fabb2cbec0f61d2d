package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2025-09-01T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
	if _, ok := ParseTime("2025-09-01T10:10:10.250Z"); !ok {
		t.Fatalf("expected fractional seconds to parse")
	}
}

func TestParseTimeUnix(t *testing.T) {
	at := time.Date(2025, 9, 1, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime(strconv.FormatInt(at.Unix(), 10))
	if !ok || got.Unix() != at.Unix() {
		t.Fatalf("unexpected unix seconds %v", got)
	}

	got, ok = ParseTime(strconv.FormatInt(at.UnixMilli()+250, 10))
	if !ok || got.UnixMilli() != at.UnixMilli()+250 {
		t.Fatalf("unexpected unix millis %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2025, 9, 1, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
	if got := ParseTimeDefault("yesterday", def); !got.Equal(def) {
		t.Fatalf("expected default for garbage")
	}
}

func TestParseDurationDefault(t *testing.T) {
	cases := map[string]time.Duration{
		"":      30 * time.Second,
		"90s":   90 * time.Second,
		"-5s":   30 * time.Second,
		"later": 30 * time.Second,
	}
	for in, want := range cases {
		if got := ParseDurationDefault(in, 30*time.Second); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}
