// Package notification delivers operational alerts from the ingest daemon
// to an external channel. The webhook backend covers Slack/Discord style
// endpoints; without a configured URL alerts go to the log.
package notification

import (
	"context"
	"log"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one notification.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier delivers alerts to a backend.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the process log.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// ForURL returns a webhook notifier when url is set, the log notifier
// otherwise.
func ForURL(url string) Notifier {
	if url == "" {
		return NewLogNotifier()
	}
	return NewWebhookNotifier(url)
}
