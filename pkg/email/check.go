package email

import (
	"context"
	"errors"
	"time"
)

// Settings are the connection parameters an operator wants to verify.
type Settings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Secure   bool   `json:"secure"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// CheckResult is the outcome of a connectivity check.
type CheckResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const defaultCheckTimeout = 15 * time.Second

// CheckConnectivity connects to the SMTP server, negotiates TLS and
// authenticates when credentials are given, then disconnects without sending.
//
// On failure Message holds the server or network error text exactly as
// received, and the returned error joins ErrConnectivity with that error.
func CheckConnectivity(ctx context.Context, s Settings) (CheckResult, error) {
	if s.Host == "" || s.Port <= 0 {
		return CheckResult{Message: ErrInvalidSettings.Error()}, ErrInvalidSettings
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCheckTimeout)
		defer cancel()
	}

	d := dialer(s.Host, s.Port, s.Secure, s.Username, s.Password)
	err := runWithContext(ctx, func() error {
		conn, err := d.Dial()
		if err != nil {
			return err
		}
		return conn.Close()
	})
	if err != nil {
		return CheckResult{Success: false, Message: err.Error()}, errors.Join(ErrConnectivity, err)
	}
	return CheckResult{Success: true, Message: "connection successful"}, nil
}
