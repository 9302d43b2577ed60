// Package applog wires the process-wide structured logger (spec.md §1's
// Non-goals exclude audit logging, not operational diagnostics). Grounded in
// the teacher's pack-mate kgiusti-go-fdo-server (cmd/root.go), which sets
// slog's default handler to hermannm.dev/devlog the same way.
package applog

import (
	"log/slog"
	"os"

	"hermannm.dev/devlog"
)

// Level is shared by callers that need to flip verbosity at runtime (e.g.
// cmd/shed's --debug flag) without re-creating the handler.
var Level slog.LevelVar

// Init installs devlog as the default slog handler. Call once at process
// startup, before any command dispatch.
func Init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &Level,
	})))
}

// SetDebug raises or lowers the default logger's level.
func SetDebug(debug bool) {
	if debug {
		Level.Set(slog.LevelDebug)
		return
	}
	Level.Set(slog.LevelInfo)
}

// Dispatch logs one SHE command at debug level: action, client, and outcome
// code, mirroring the per-operation slog.Debug calls in the teacher's
// auth.go/secure.go. Never logs key material or payload bytes.
func Dispatch(client string, action uint16, code byte) {
	slog.Debug("she command dispatched",
		slog.String("client", client),
		slog.Int("action", int(action)),
		slog.Int("rc", int(code)),
	)
}
