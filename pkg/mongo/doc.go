// Package mongo connects to MongoDB and implements the service's stores on it.
//
// EntityStore serves submissions, material orders, users and certificates.
// NotificationStore holds delivery records and takes claims atomically.
// AuditStore is the append-only audit log. Watcher publishes change-stream
// inserts and updates of submissions and material orders onto the event bus.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := mongo.Setup(ctx, db); err != nil {
//		return err
//	}
//	store := mongo.NewEntityStore(db)
//	g.Go(mongo.NewWatcher(db, bus).Run(ctx))
//
// Change streams require a replica set. Setup enables pre-images on the
// watched collections so updates carry the previous document; updates that
// arrive without one are skipped.
package mongo
