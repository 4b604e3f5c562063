package util

import (
	"testing"
	"time"
)

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	if !DirExists(dir) {
		t.Errorf("Expected DirExists to return true for existing dir")
	}
	if DirExists(dir + "-notfound") {
		t.Errorf("Expected DirExists to return false for non-existent dir")
	}
}

func TestFormatUptime(t *testing.T) {
	cases := []struct {
		dur      time.Duration
		expected string
	}{
		{time.Second * 5, "5 seconds"},
		{time.Second * 65, "1 minute, 5 seconds"},
		{time.Second * 3665, "1 hour, 1 minute, 5 seconds"},
		{time.Second * 3600, "1 hour, 0 minutes, 0 seconds"},
		{time.Second * 60, "1 minute, 0 seconds"},
		{time.Second * 1, "1 second"},
		{0, "0 seconds"},
		{time.Second * 7322, "2 hours, 2 minutes, 2 seconds"},
	}
	for _, c := range cases {
		got := FormatUptime(c.dur)
		if got != c.expected {
			t.Errorf("FormatUptime(%v) = %q, want %q", c.dur, got, c.expected)
		}
	}
}

func TestPlural(t *testing.T) {
	if Plural(1) != "" {
		t.Errorf("Plural(1) = %q, want \"\"", Plural(1))
	}
	if Plural(2) != "s" {
		t.Errorf("Plural(2) = %q, want \"s\"", Plural(2))
	}
	if Plural(0) != "s" {
		t.Errorf("Plural(0) = %q, want \"s\"", Plural(0))
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "2s")
	if got := GetEnvDuration("TEST_DURATION", time.Second); got != 2*time.Second {
		t.Errorf("GetEnvDuration = %v, want 2s", got)
	}
	t.Setenv("TEST_DURATION", "notaduration")
	if got := GetEnvDuration("TEST_DURATION", 3*time.Second); got != 3*time.Second {
		t.Errorf("GetEnvDuration fallback = %v, want 3s", got)
	}
	t.Setenv("TEST_DURATION", "")
	if got := GetEnvDuration("TEST_DURATION", 4*time.Second); got != 4*time.Second {
		t.Errorf("GetEnvDuration fallback unset = %v, want 4s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := GetEnvInt("TEST_INT", 7); got != 42 {
		t.Errorf("GetEnvInt = %d, want 42", got)
	}
	t.Setenv("TEST_INT", "notanint")
	if got := GetEnvInt("TEST_INT", 8); got != 8 {
		t.Errorf("GetEnvInt fallback = %d, want 8", got)
	}
	t.Setenv("TEST_INT", "")
	if got := GetEnvInt("TEST_INT", 9); got != 9 {
		t.Errorf("GetEnvInt fallback unset = %d, want 9", got)
	}
}

func TestGetEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "  redis ")
	if got := GetEnvString("TEST_STRING", "memory"); got != "redis" {
		t.Errorf("GetEnvString = %q, want redis", got)
	}
	t.Setenv("TEST_STRING", "")
	if got := GetEnvString("TEST_STRING", "memory"); got != "memory" {
		t.Errorf("GetEnvString fallback = %q, want memory", got)
	}
}
