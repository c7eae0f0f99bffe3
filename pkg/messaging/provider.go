package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/provider"
)

const maxResponseBody = 64 << 10

// Provider sends SMS or WhatsApp messages through the Messages endpoint of a
// Twilio-compatible API.
type Provider struct {
	cfg    Config
	ch     channel.Channel
	client *http.Client
	logger *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a provider for channel.SMS or channel.WhatsApp.
func New(cfg Config, ch channel.Channel, opts ...Option) (*Provider, error) {
	if ch != channel.SMS && ch != channel.WhatsApp {
		return nil, fmt.Errorf("%w: got %q", ErrUnsupportedChannel, ch)
	}
	p := &Provider{
		cfg:    cfg,
		ch:     ch,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Channel implements provider.Provider.
func (p *Provider) Channel() channel.Channel { return p.ch }

// Configured reports whether credentials and a sender exist for the channel.
func (p *Provider) Configured() bool {
	return p.cfg.AccountSID != "" && p.cfg.AuthToken != "" && p.sender() != ""
}

func (p *Provider) sender() string {
	if p.ch == channel.WhatsApp {
		return p.cfg.WhatsAppFrom
	}
	return p.cfg.SMSFrom
}

type apiResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send implements provider.Provider. It returns a skipped result without
// calling the API when credentials are missing.
func (p *Provider) Send(ctx context.Context, msg provider.Message) (provider.Result, error) {
	if !p.Configured() {
		p.logger.LogAttrs(ctx, slog.LevelDebug, "messaging provider not configured, skipping",
			logger.Channel(string(p.ch)),
			logger.RecordID(msg.RecordID),
		)
		return provider.Skipped(), nil
	}
	if !slices.Contains(p.cfg.ApprovedTemplates, msg.TemplateKey) {
		return provider.Result{}, provider.Permanent(fmt.Errorf("%w: %q", ErrTemplateNotApproved, msg.TemplateKey))
	}

	to, from := msg.Destination, p.sender()
	if p.ch == channel.WhatsApp {
		to, from = "whatsapp:"+to, "whatsapp:"+from
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(p.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return provider.Result{}, provider.Permanent(errors.Join(ErrRequestFailed, err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return provider.Result{}, provider.Transient(errors.Join(ErrRequestFailed, err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	var body apiResponse
	_ = json.Unmarshal(raw, &body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return provider.Result{ProviderID: body.SID, Status: provider.StatusSent}, nil
	}

	detail := body.Message
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}
	apiErr := fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, detail)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return provider.Result{}, provider.Transient(apiErr)
	}
	return provider.Result{}, provider.Permanent(apiErr)
}
