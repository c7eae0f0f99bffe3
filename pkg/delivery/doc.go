// Package delivery turns a pending notification record into a provider send.
//
// Worker.Deliver claims the record, resolves the recipient's destination, the
// channel provider and the localized template, sends under a timeout and
// persists the outcome. Transient provider failures are retried with
// exponential backoff through a delayed re-enqueue until MaxAttempts is
// reached. Each channel has its own circuit breaker so an outage of one
// provider does not slow down the others.
//
//	w := delivery.NewWorker(records, users, providers, catalog, queue,
//		delivery.WithConfig(cfg.Delivery),
//		delivery.WithAuditor(auditLog),
//	)
//	outcome, err := w.Deliver(ctx, recordID)
package delivery
