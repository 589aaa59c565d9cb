// Package logger builds the relay's structured loggers on top of log/slog.
//
// New returns a *slog.Logger configured through functional options: output
// format, level, static attributes, and ContextExtractor callbacks that copy
// values from context.Context into every record.
//
// Attribute helpers (EventID, Channel, Lane, Status, Attempt, Error, Alert and
// friends) keep key names consistent across the router, the consumers and the
// status tracker, so log queries such as event_id=... follow a notification
// through the whole pipeline.
//
// Records that need operator attention (dead-lettered messages, exhausted
// dispatch retries, unpersisted success) are logged at error level with Alert().
//
//	log := logger.New(logger.WithEnvironment("production", "notifyrelay"))
//	log.LogAttrs(ctx, slog.LevelError, "message dead-lettered",
//	    logger.EventID(evt.ID),
//	    logger.Channel(ch),
//	    logger.Alert(),
//	)
package logger
