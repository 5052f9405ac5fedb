// Package debug gates verbose diagnostics behind named categories so a
// single subsystem can be traced without drowning the logs.
//
// ABLAUF_DEBUG selects categories (comma separated, or "all") and
// ABLAUF_LOG_LEVEL selects verbosity; both fall back to config values.
//
//	debug.Log("streaming", "event written", "type", eventType, "seq", seq)
//	if debug.Enabled("engine") { /* expensive formatting */ }
//
// Known categories: engine, workflow, storage, auth, transport,
// streaming, config.
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog.LevelDebug. At this level Raw emits full
// untruncated wire frames.
const LevelTrace = slog.LevelDebug - 4

// enabled is written once at startup, then only read.
var enabled map[string]bool

func init() {
	enabled = parseCategories(os.Getenv("ABLAUF_DEBUG"))
}

// Init applies category and level settings, letting the environment
// override whatever the config file says, and installs a JSON slog
// handler at the resulting level.
func Init(configCategories, configLevel string) {
	cats := configCategories
	if env := os.Getenv("ABLAUF_DEBUG"); env != "" {
		cats = env
	}
	enabled = parseCategories(cats)

	level := configLevel
	if env := os.Getenv("ABLAUF_LOG_LEVEL"); env != "" {
		level = env
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// Enabled reports whether a category is active, either directly or via
// "all".
func Enabled(category string) bool {
	return enabled["all"] || enabled[category]
}

// Log emits a debug record tagged with its category. Disabled
// categories cost a map lookup and nothing else.
func Log(category, msg string, args ...any) {
	if Enabled(category) {
		slog.Debug(msg, append([]any{"debug", category}, args...)...)
	}
}

// Raw dumps text straight to stderr with no slog framing, so wire
// payloads can be copied out of a terminal verbatim. Requires both the
// category and TRACE level.
func Raw(category, text string) {
	if Enabled(category) && slog.Default().Enabled(nil, LevelTrace) {
		fmt.Fprintln(os.Stderr, text)
	}
}

// ParseLevel maps a level name to slog.Level, defaulting to INFO on
// empty or unknown input.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseCategories(s string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			set[part] = true
		}
	}
	return set
}
