// ABOUTME: Notification surface for user-facing request outcomes
// ABOUTME: The client pushes transient messages here; errors still propagate to callers

package client

import "log/slog"

// Notifier receives transient user-facing messages. Notification is a side
// effect of failure handling, never a substitute for the returned error.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier routes notifications to a slog.Logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n LogNotifier) Success(msg string) {
	n.logger().Info(msg)
}

func (n LogNotifier) Error(msg string) {
	n.logger().Warn(msg)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}
