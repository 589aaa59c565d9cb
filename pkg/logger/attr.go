package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// EventID records the inbound event identifier under the key "event_id".
func EventID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("event_id", id)
}

// UserID records the recipient identifier under the key "user_id".
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// EventType records the event type under the key "event_type".
func EventType[T ~string](t T) slog.Attr {
	return slog.String("event_type", string(t))
}

// Channel records the delivery channel under the key "channel".
func Channel[T ~string](ch T) slog.Attr {
	return slog.String("channel", string(ch))
}

// Lane records the lane name under the key "lane".
func Lane(name string) slog.Attr {
	return slog.String("lane", name)
}

// Criticality records the event criticality under the key "criticality".
func Criticality[T ~string](c T) slog.Attr {
	return slog.String("criticality", string(c))
}

// Status records a delivery status under the key "status".
func Status[T ~string](s T) slog.Attr {
	return slog.String("status", string(s))
}

// Attempt records the delivery attempt number under the key "attempt".
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// MessageID records the lane message identifier under the key "message_id".
func MessageID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("message_id", id)
}

// WorkerID records the consumer instance identifier under the key "worker_id".
func WorkerID(id string) slog.Attr {
	return slog.String("worker_id", id)
}

// Delay records a retry delay under the key "delay".
func Delay(d time.Duration) slog.Attr {
	return slog.Duration("delay", d)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Alert marks a record as requiring operator attention.
// Alerting pipelines filter on alert=true.
func Alert() slog.Attr {
	return slog.Bool("alert", true)
}
