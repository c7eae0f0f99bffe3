// Package email delivers notification email over SMTP or the Postmark API and
// verifies SMTP settings on behalf of administrators.
//
// Both senders implement provider.Provider. An unconfigured sender reports a
// skipped send instead of failing, so environments without email still
// complete the delivery lifecycle.
//
//	p := email.NewProvider(cfg.SMTP, cfg.Postmark, email.WithLogger(log))
//	res, err := p.Send(ctx, provider.Message{Destination: "jane@example.com", Subject: "Hi", Body: "..."})
//
// CheckConnectivity dials, negotiates and authenticates without sending. When
// it fails the result Message carries the server's error text unchanged.
package email
