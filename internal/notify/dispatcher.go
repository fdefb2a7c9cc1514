package notify

import (
	"context"
	"log/slog"
	"time"
)

// Dispatcher is the fire-and-forget notification boundary: sends run in a
// background goroutine with their own timeout, failures are logged and never
// propagated to the caller's primary operation.
type Dispatcher struct {
	mailer  Mailer
	logger  *slog.Logger
	timeout time.Duration
}

func NewDispatcher(mailer Mailer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{mailer: mailer, logger: logger, timeout: 15 * time.Second}
}

// Send dispatches the email asynchronously. It detaches from the caller's
// context so an already-finished request does not cancel the send.
func (d *Dispatcher) Send(template, recipient string, data map[string]any) {
	if d.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.mailer.Send(ctx, template, recipient, data); err != nil {
			d.logger.Error("notification send failed",
				"template", template, "recipient", recipient, "error", err)
		}
	}()
}
