package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrz1836/postmark"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/provider"
)

// Postmark API error codes that will not succeed on retry.
// https://postmarkapp.com/developer/api/overview#error-codes
var permanentPostmarkCodes = map[int64]bool{
	10:  true, // bad or missing server token
	300: true, // invalid email request
	400: true, // sender signature not found
	406: true, // inactive recipient
}

// PostmarkSender delivers email through the Postmark API.
type PostmarkSender struct {
	client *postmark.Client
	cfg    PostmarkConfig
	logger *slog.Logger
}

// NewPostmarkSender creates a Postmark-backed email provider.
func NewPostmarkSender(cfg PostmarkConfig, opts ...Option) *PostmarkSender {
	o := applyOptions(opts)
	return &PostmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		cfg:    cfg,
		logger: o.logger,
	}
}

// Channel implements provider.Provider.
func (p *PostmarkSender) Channel() channel.Channel { return channel.Email }

// Send implements provider.Provider.
func (p *PostmarkSender) Send(ctx context.Context, msg provider.Message) (provider.Result, error) {
	if !p.cfg.Configured() {
		p.logger.LogAttrs(ctx, slog.LevelDebug, "postmark not configured, skipping",
			logger.RecordID(msg.RecordID),
		)
		return provider.Skipped(), nil
	}
	if !channel.ValidEmail(msg.Destination) {
		return provider.Result{}, provider.Permanent(fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.Destination))
	}

	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.cfg.From,
		ReplyTo:  p.cfg.ReplyTo,
		To:       msg.Destination,
		Subject:  msg.Subject,
		Tag:      msg.TemplateKey,
		TextBody: msg.Body,
	})
	if err != nil {
		return provider.Result{}, provider.Transient(errors.Join(ErrFailedToSendEmail, err))
	}
	if resp.ErrorCode > 0 {
		apiErr := errors.Join(ErrFailedToSendEmail, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
		if permanentPostmarkCodes[resp.ErrorCode] {
			return provider.Result{}, provider.Permanent(apiErr)
		}
		return provider.Result{}, provider.Transient(apiErr)
	}
	return provider.Result{ProviderID: resp.MessageID, Status: provider.StatusSent}, nil
}

// NewProvider picks Postmark when it is configured and SMTP otherwise.
func NewProvider(smtpCfg SMTPConfig, pmCfg PostmarkConfig, opts ...Option) provider.Provider {
	if pmCfg.Configured() {
		return NewPostmarkSender(pmCfg, opts...)
	}
	return NewSMTPSender(smtpCfg, opts...)
}
