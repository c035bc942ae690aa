package telemetry

import (
	"fmt"
	"io"
)

// logWriter is the destination for Logf output; nil means stdout.
var logWriter io.Writer

// SetLogWriter sets Logf's output destination.
func SetLogWriter(w io.Writer) {
	logWriter = w
}

// Logf writes a soft-error or narration line (spec.md §7: unclassified
// interactions and capacity exhaustion are warned, not fatal). It is the
// plain-text fallback used where a caller hasn't wired a slog.Logger.
func Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if logWriter != nil {
		fmt.Fprintln(logWriter, msg)
	} else {
		fmt.Println(msg)
	}
}
