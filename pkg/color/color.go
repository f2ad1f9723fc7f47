// Package color provides terminal color output support for the remedy CLI.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"fmt"
	"os"
	"sync"
)

var state struct {
	enabled  bool
	once     sync.Once
	disabled bool
}

// Init initializes the color system based on environment and flags.
func Init(noColorFlag bool) {
	state.once.Do(func() {
		if _, exists := os.LookupEnv("NO_COLOR"); exists {
			state.disabled = true
		}
		if term := os.Getenv("TERM"); term == "dumb" {
			state.disabled = true
		}
		if noColorFlag {
			state.disabled = true
		}
		state.enabled = !state.disabled
	})
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	Init(false)
	return state.enabled
}

// Disable turns off color output.
func Disable() {
	state.disabled = true
	state.enabled = false
}

// ANSI color codes.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

func wrap(code, s string) string {
	if !Enabled() {
		return s
	}
	return code + s + Reset
}

// Success formats a success message in green.
func Success(s string) string { return wrap(Green, s) }

// Error formats an error message in red.
func Error(s string) string { return wrap(Red, s) }

// Warning formats a warning message in yellow.
func Warning(s string) string { return wrap(Yellow, s) }

// Warningf formats a warning message with printf-style arguments.
func Warningf(format string, args ...any) string {
	return wrap(Yellow, fmt.Sprintf(format, args...))
}

// SnapshotID formats a snapshot ID in cyan for visibility.
func SnapshotID(s string) string { return wrap(Cyan, s) }

// Dim formats secondary detail in gray.
func Dim(s string) string { return wrap(Gray, s) }
