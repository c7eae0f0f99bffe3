// Package events carries entity change events from their sources to the
// handlers that react to them.
//
// The Bus hashes each event's entity key to a partition consumed by a single
// goroutine, so all events for one submission or order are handled in order.
// A handler error redelivers the event with exponential backoff, capped at
// MaxRedeliveryBackoff, until the handlers succeed. Only events that cannot
// succeed (a panicking handler, a mistyped event, or an explicit
// MaxRedeliveries limit) are logged and dropped.
//
// PublishWait blocks until the event is handled, so a source can persist its
// position only after the handlers finished.
//
//	bus := events.NewBus(events.WithConfig(cfg.Events))
//	bus.Subscribe(events.KindSubmission, events.Typed(orch.HandleSubmission))
//	g.Go(bus.Run(ctx))
//	_ = bus.Publish(ctx, events.SubmissionEvent{ID: id, Op: events.OpCreate, After: sub})
package events
