package main

import (
	"fmt"
	"log/slog"
)

// logLevelFlag is a flag.Value for a slog level like "debug" or "WARN".
// It overrides the level from the config file only when given.
type logLevelFlag struct {
	level slog.Level
	isSet bool
}

func (f logLevelFlag) String() string {
	if !f.isSet {
		return ""
	}
	return f.level.String()
}

func (f *logLevelFlag) Set(s string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("invalid log level %q", s)
	}
	f.level = l
	f.isSet = true
	return nil
}

// Level returns the flag's level or fallback when the flag was not given.
func (f logLevelFlag) Level(fallback slog.Level) slog.Level {
	if !f.isSet {
		return fallback
	}
	return f.level
}
