// Package notify formats and delivers triggered-alert notifications through
// pluggable channels (email, SMS, Telegram, push). Channel failures are
// isolated: one failing channel never blocks the others, and no channel
// retries on its own. A failed send is reported upward, not resubmitted.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stokalert/stokalert/internal/models"
	"github.com/stokalert/stokalert/internal/monitoring"
)

// Recipient carries the user's delivery addresses. Channel-specific
// prerequisites (address present, credentials configured) are checked by each
// channel.
type Recipient struct {
	Email string
	Phone string
}

// Message is one formatted notification in its plain-text and HTML variants.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Result reports the outcome of a dispatch: Success is false if any requested
// channel failed, with one error string per failing channel.
type Result struct {
	Success bool
	Errors  []string
}

// Channel delivers a formatted message over one medium.
type Channel interface {
	Method() models.NotificationMethod
	Send(ctx context.Context, msg Message, rcpt Recipient) error
}

// Dispatcher fans a triggered alert out to its requested channels.
type Dispatcher struct {
	channels map[models.NotificationMethod]Channel
	sink     *monitoring.Sink
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(sink *monitoring.Sink, channels ...Channel) *Dispatcher {
	d := &Dispatcher{
		channels: make(map[models.NotificationMethod]Channel),
		sink:     sink,
	}
	for _, ch := range channels {
		d.channels[ch.Method()] = ch
	}
	return d
}

// SendNotifications formats the trigger event and attempts every channel the
// alert requests. Per-channel errors are collected, never thrown; the caller
// records the aggregate outcome on the AlertLog.
func (d *Dispatcher) SendNotifications(ctx context.Context, alert models.Alert, log models.AlertLog, userEmail, userPhone string) Result {
	msg := FormatMessage(alert, log)
	rcpt := Recipient{Email: userEmail, Phone: userPhone}

	result := Result{Success: true}
	for _, method := range alert.NotificationMethods {
		ch, ok := d.channels[method]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: channel not configured", method))
			continue
		}
		if err := ch.Send(ctx, msg, rcpt); err != nil {
			d.sink.LogError("notify", string(method), alert.Symbol, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", method, err))
		}
	}

	result.Success = len(result.Errors) == 0
	return result
}

// FormatMessage renders the trigger facts (symbol, type, threshold, operator,
// observed value, time) as subject, plain text, and an HTML variant wrapping
// the same facts.
func FormatMessage(alert models.Alert, log models.AlertLog) Message {
	subject := fmt.Sprintf("Alert triggered: %s %s", alert.Symbol, alertTypeLabel(alert.Type))

	ts := log.TriggeredAt.Format("2006-01-02 15:04:05 MST")
	text := fmt.Sprintf(
		"Alert triggered for %s\n\nCondition: %s\nOperator: %s\nThreshold: %s\nObserved: %s\nTriggered at: %s\n",
		alert.Symbol,
		alertTypeLabel(alert.Type),
		alert.Condition.Operator,
		formatValue(log.TriggerValue),
		formatValue(log.ActualValue),
		ts,
	)

	html := fmt.Sprintf(
		`<h2>Alert triggered for %s</h2>
<table>
<tr><td>Condition</td><td>%s</td></tr>
<tr><td>Operator</td><td>%s</td></tr>
<tr><td>Threshold</td><td>%s</td></tr>
<tr><td>Observed</td><td><strong>%s</strong></td></tr>
<tr><td>Triggered at</td><td>%s</td></tr>
</table>`,
		alert.Symbol,
		alertTypeLabel(alert.Type),
		alert.Condition.Operator,
		formatValue(log.TriggerValue),
		formatValue(log.ActualValue),
		ts,
	)

	return Message{Subject: subject, Text: text, HTML: html}
}

// alertTypeLabel turns a snake_case alert type into a human-readable label.
func alertTypeLabel(t models.AlertType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// contextTimeout bounds a single channel send when the caller has not already
// imposed a deadline.
const contextTimeout = 10 * time.Second

func withSendTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, contextTimeout)
}
