// Package httpserver runs an http.Handler until its context is cancelled and
// then drains in-flight requests within a bounded shutdown timeout.
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// Signal handling is left to the caller, which usually derives ctx from
// signal.NotifyContext.
package httpserver
