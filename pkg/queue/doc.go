// Package queue is the delivery work queue: delayed tasks that each carry one
// notification record id, claimed and run by a Worker with bounded
// concurrency.
//
//   - Enqueuer adds a task for a record, optionally delayed.
//   - Worker polls the Repository, claims due tasks under a lock and runs the
//     Handler. Handler errors are retried with a linear backoff up to the
//     task's MaxRetries, after which the task moves to the dead letter list.
//
// A successful Handler call only means the delivery attempt was processed.
// Provider retries are scheduled by the delivery worker as new delayed tasks,
// independent of the task retry counter here.
//
//	repo := queue.NewMemoryStorage()
//	enq, _ := queue.NewEnqueuer(repo)
//	w, _ := queue.NewWorker(repo, func(ctx context.Context, id string) error {
//	    _, err := deliveryWorker.Deliver(ctx, id)
//	    return err
//	}, queue.FromConfig(cfg)...)
//	g.Go(w.Run(ctx))
package queue
