// Package audit records orchestration and delivery decisions in an append-only log.
//
// Components write through a Recorder (implemented by *Logger) and never
// modify or delete what they wrote. Each entry carries an action name such as
// "submission.create.success" or "notification.delivery.sent", an optional
// resource reference, a result and free-form metadata.
//
// # Usage
//
//	storage := audit.NewMemoryStorage()
//	log := audit.NewLogger(storage, audit.WithRedactedKeys("destination"))
//
//	_ = log.Log(ctx, "materialOrder.create",
//		audit.WithResource("materialOrder", order.ID),
//		audit.WithMetadata("notified", 3),
//	)
//
//	entries, err := audit.NewReader(storage).Find(ctx, audit.Criteria{
//		Action: "materialOrder.create",
//	})
//
// # Storage
//
// MemoryStorage is provided here. Mongo and Postgres implementations live in
// the mongo and pg packages. Implementations must reject an entry whose ID
// already exists with ErrDuplicateEntry instead of overwriting it.
package audit
