package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DirExists reports whether path is an existing directory. Stat errors other
// than not-exist are logged and treated as absent.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return info.IsDir()
	case !os.IsNotExist(err):
		zap.S().Warnw("Cannot stat directory", "path", path, "error", err)
	}
	return false
}

// FormatUptime renders d as "H hours, M minutes, S seconds", dropping the
// leading units that are zero.
func FormatUptime(d time.Duration) string {
	units := []struct {
		n    int
		name string
	}{
		{int(d.Hours()), "hour"},
		{int(d.Minutes()) % 60, "minute"},
		{int(d.Seconds()) % 60, "second"},
	}
	parts := make([]string, 0, len(units))
	for i, u := range units {
		if len(parts) == 0 && u.n == 0 && i < len(units)-1 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s%s", u.n, u.name, Plural(u.n)))
	}
	return strings.Join(parts, ", ")
}

// Plural returns the English plural suffix for a count of n.
func Plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func GetEnvString(key, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		zap.S().Warnw("Invalid duration, using default", "key", key, "error", err, "default", fallback)
		return fallback
	}
	return d
}

func GetEnvInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		zap.S().Warnw("Invalid int, using default", "key", key, "error", err, "default", fallback)
		return fallback
	}
	return i
}
