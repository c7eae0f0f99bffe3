package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/textproto"

	"gopkg.in/gomail.v2"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/provider"
)

// SMTPSender delivers email over SMTP.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// Option configures a sender.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewSMTPSender creates an SMTP email provider.
func NewSMTPSender(cfg SMTPConfig, opts ...Option) *SMTPSender {
	o := applyOptions(opts)
	return &SMTPSender{cfg: cfg, logger: o.logger}
}

// Channel implements provider.Provider.
func (s *SMTPSender) Channel() channel.Channel { return channel.Email }

// Send implements provider.Provider.
func (s *SMTPSender) Send(ctx context.Context, msg provider.Message) (provider.Result, error) {
	if !s.cfg.Configured() {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "smtp not configured, skipping",
			logger.RecordID(msg.RecordID),
		)
		return provider.Skipped(), nil
	}
	if !channel.ValidEmail(msg.Destination) {
		return provider.Result{}, provider.Permanent(fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.Destination))
	}

	messageID := fmt.Sprintf("<%s@%s>", msg.RecordID, s.cfg.Host)

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.Destination)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	if s.cfg.ReplyTo != "" {
		m.SetHeader("Reply-To", s.cfg.ReplyTo)
	}
	m.SetBody("text/plain", msg.Body)

	d := dialer(s.cfg.Host, s.cfg.Port, s.cfg.Secure, s.cfg.Username, s.cfg.Password)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	err := runWithContext(ctx, func() error {
		conn, err := d.Dial()
		if err != nil {
			return err
		}
		defer conn.Close()
		return conn.Send(s.cfg.From, []string{msg.Destination}, m)
	})
	if err != nil {
		return provider.Result{}, classify(err)
	}
	return provider.Result{ProviderID: messageID, Status: provider.StatusSent}, nil
}

func dialer(host string, port int, secure bool, username, password string) *gomail.Dialer {
	return &gomail.Dialer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		SSL:      secure,
	}
}

// runWithContext runs fn and returns early when ctx ends. gomail has no
// context support, so fn keeps running in the background until its own
// network timeout.
func runWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classify maps SMTP failures onto provider error classes. 5xx replies are
// permanent and anything else is retried.
func classify(err error) error {
	wrapped := errors.Join(ErrFailedToSendEmail, err)

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return provider.Permanent(wrapped)
	}
	return provider.Transient(wrapped)
}
