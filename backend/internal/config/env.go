package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookupEnv returns parse(value) for a set key. Unset keys and values parse rejects fall back to def.
func lookupEnv[T any](key EnvKey, def T, parse func(string) (T, bool)) T {
	raw, ok := os.LookupEnv(string(key))
	if !ok {
		return def
	}

	if v, ok := parse(raw); ok {
		return v
	}

	return def
}

func getStringEnv(key EnvKey, def string) string {
	return lookupEnv(key, def, func(s string) (string, bool) { return s, true })
}

// getBoolEnv treats "true" and "1" as true and any other set value as false.
func getBoolEnv(key EnvKey, def bool) bool {
	return lookupEnv(key, def, func(s string) (bool, bool) {
		s = strings.ToLower(s)
		return s == "true" || s == "1", true
	})
}

func getIntEnv(key EnvKey, def int) int {
	return lookupEnv(key, def, func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	})
}

// getDurationEnv only accepts positive durations.
func getDurationEnv(key EnvKey, def time.Duration) time.Duration {
	return lookupEnv(key, def, func(s string) (time.Duration, bool) {
		d, err := time.ParseDuration(s)
		return d, err == nil && d > 0
	})
}

var logLevels = map[string]slog.Level{
	"DEBUG": slog.LevelDebug,
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

func getLogLevelEnv(key EnvKey, def slog.Leveler) slog.Leveler {
	return lookupEnv(key, def, func(s string) (slog.Leveler, bool) {
		lvl, ok := logLevels[strings.ToUpper(s)]
		return lvl, ok
	})
}
