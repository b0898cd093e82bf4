// Package logging provides structured logging utilities for calbridge.
//
// All components log through log/slog. This package keeps attribute names
// consistent and makes sure account emails and email-shaped calendar ids
// never reach the logs in clear text.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "events.list")
//	logger.Warn("provider attempt failed",
//	    logging.Attempt(2, 3),
//	    logging.Calendar(calendarID),
//	    logging.Err(err))
//
// Setup configures the process-wide default handler from the serve flags.
package logging
