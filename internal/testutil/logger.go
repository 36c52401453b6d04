package testutil

import "log/slog"

// NopLogger returns a logger whose output goes nowhere. Tests hand it to
// components that require a logger but whose log lines are irrelevant to
// the assertions.
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
