// Package notification delivers user-facing messages. Delivery is
// fire-and-forget: a failed notification is logged, never surfaced to the
// lifecycle paths that triggered it.
package notification

import (
	"github.com/gofiber/fiber/v2/log"
)

// Dispatcher sends a message to a user.
type Dispatcher interface {
	Notify(userID uint, title, body string)
}

// LogDispatcher writes notifications to the application log. It stands in
// until a push/email channel is wired up.
type LogDispatcher struct{}

// NewLogDispatcher creates the log-backed dispatcher.
func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

// Notify logs the message.
func (d *LogDispatcher) Notify(userID uint, title, body string) {
	log.Infof("[Notification] user=%d title=%q body=%q", userID, title, body)
}
