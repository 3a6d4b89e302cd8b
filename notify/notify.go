package notify

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/fd0/pdftables/process"
	"github.com/gregdel/pushover"
	"github.com/sirupsen/logrus"
)

// Environment variables read by FromEnv.
const (
	TokenEnv      = "PDFTABLES_PUSHOVER_TOKEN"
	RecipientsEnv = "PDFTABLES_PUSHOVER_RECIPIENTS"
)

// Notifier sends messages via pushover.
type Notifier struct {
	Token      string
	Recipients []string

	// Attempts is the number of delivery attempts per recipient.
	Attempts uint
	Delay    time.Duration

	log  logrus.FieldLogger
	send func(*pushover.Message, *pushover.Recipient) error
}

// FromEnv returns a Notifier configured from the environment.
func FromEnv() *Notifier {
	var recipients []string

	for _, r := range strings.Split(os.Getenv(RecipientsEnv), ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			recipients = append(recipients, r)
		}
	}

	n := &Notifier{
		Token:      os.Getenv(TokenEnv),
		Recipients: recipients,
		Attempts:   3,
		Delay:      time.Second,
	}
	n.SetLogger(logrus.StandardLogger())

	return n
}

// SetLogger updates the logger to use.
func (n *Notifier) SetLogger(logger logrus.FieldLogger) {
	n.log = logger.WithField("component", "notify")
}

func (n *Notifier) sender() func(*pushover.Message, *pushover.Recipient) error {
	if n.send != nil {
		return n.send
	}

	app := pushover.New(n.Token)

	return func(msg *pushover.Message, recipient *pushover.Recipient) error {
		response, err := app.SendMessage(msg, recipient)
		if err != nil {
			return err
		}

		n.log.Debugf("response from pushover: %v", response)

		return nil
	}
}

// Summary sends the summary of a batch run to all recipients. Delivery
// failures are logged.
func (n *Notifier) Summary(ctx context.Context, s process.Summary) {
	if n.Token == "" {
		n.log.Warn("no pushover token found, skipping notification")

		return
	}

	if len(n.Recipients) == 0 {
		n.log.Warn("no recipients found, skipping notification")

		return
	}

	title := "pdftables: run finished"
	if s.Failed > 0 {
		title = fmt.Sprintf("pdftables: %d files failed", s.Failed)
	}

	message := pushover.NewMessageWithTitle(s.String(), title)
	send := n.sender()

	attempts := n.Attempts
	if attempts == 0 {
		attempts = 1
	}

	for _, r := range n.Recipients {
		recipient := pushover.NewRecipient(r)

		err := retry.Do(
			func() error {
				return send(message, recipient)
			},
			retry.Context(ctx),
			retry.Attempts(attempts),
			retry.Delay(n.Delay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			n.log.Warnf("unable to send message: %v", err)
		}
	}
}
