// Package logger builds the service's *slog.Logger and provides attribute
// helpers so every component names the same fields the same way.
//
// # Usage
//
//	log := logger.NewFromConfig(cfg.Log)
//	logger.SetAsDefault(log)
//
//	log.LogAttrs(ctx, slog.LevelInfo, "notification sent",
//		logger.RecordID(rec.ID),
//		logger.Channel(string(rec.Channel)),
//		logger.TemplateKey(rec.TemplateKey),
//	)
//
// New wraps the JSON or text handler in LogHandlerDecorator, which adds
// attributes pulled from the context (see WithContextValue) on every record.
package logger
