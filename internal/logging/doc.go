// Package logging provides slog-based structured logging for namegnome.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for machine consumption. Helpers build typed
// attributes and component-scoped loggers so call sites stay terse.
package logging
