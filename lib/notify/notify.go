package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"sphnotify/lib/pushover"
	"sphnotify/lib/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("sphnotify.lib.notify")

// Recipient is one push notification target with its own delivery
// credentials. Recipients with Errors set also receive error-class
// messages.
type Recipient struct {
	Name     string `json:"name"`
	UserKey  string `json:"user_key"`
	ApiToken string `json:"api_token"`
	Errors   bool   `json:"errors"`
}

// SmtpOptions configures the optional email mirror: every dispatched
// message is additionally sent to the listed addresses, best-effort.
type SmtpOptions struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

type Options struct {
	Enabled    bool
	Recipients []Recipient
	Push       *pushover.Client
	Smtp       *SmtpOptions
}

// Notifier fans one message out to every matching recipient. Deliveries
// are independent, a failure for one recipient never blocks the rest and
// is never retried.
type Notifier struct {
	enabled    bool
	recipients []Recipient
	push       *pushover.Client
	smtp       *SmtpOptions
}

func New(opts Options) *Notifier {
	if !opts.Enabled {
		slog.Info("push messages are disabled")
	}
	for _, r := range opts.Recipients {
		slog.Debug("push recipient registered", "name", r.Name, "errors", r.Errors)
	}
	return &Notifier{
		enabled:    opts.Enabled,
		recipients: opts.Recipients,
		push:       opts.Push,
		smtp:       opts.Smtp,
	}
}

func (n *Notifier) Dispatch(ctx context.Context, message string, isError bool) {
	ctx, span := tracer.Start(ctx, "notifier:Dispatch")
	defer span.End()

	if !n.enabled {
		slog.InfoContext(ctx, "message not delivered, notifications disabled", "message", message)
		return
	}

	for _, r := range n.recipients {
		if isError && !r.Errors {
			continue
		}
		err := n.push.Send(ctx, r.ApiToken, r.UserKey, message)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delivery failed for a recipient")
			slog.ErrorContext(ctx, "failed to deliver push message", "recipient", r.Name, "err", err)
			continue
		}
		slog.DebugContext(ctx, "push message delivered", "recipient", r.Name)
	}

	n.mirrorToEmail(ctx, message, isError)
}

// ReportError pushes a cycle failure to the recipients that opted into
// error notifications.
func (n *Notifier) ReportError(ctx context.Context, err error) {
	n.Dispatch(ctx, fmt.Sprintf("ERROR: %s", err.Error()), true)
}

func (n *Notifier) mirrorToEmail(ctx context.Context, message string, isError bool) {
	if n.smtp == nil {
		return
	}

	subject := "Vertretungsplan"
	if isError {
		subject = "Vertretungsplan Fehler"
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Vertretungsplan <%s>", n.smtp.EmailAddress)
	mail.To = n.smtp.To
	mail.Subject = subject
	mail.Text = []byte(message)

	addr := fmt.Sprintf("%s:%d", n.smtp.Server, n.smtp.Port)
	err := mail.Send(addr, smtp.PlainAuth("", n.smtp.EmailAddress, n.smtp.Password, n.smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to mirror message to email", "err", err)
	}
}
