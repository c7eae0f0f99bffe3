// Package scheduler runs periodic jobs across several instances of the
// service without running the same job twice.
//
// Each job has a Schedule (Every, DailyAt, WeekdaysAt). On every tick the
// scheduler takes a lease named "scheduler:<job>" from a Locker for the job's
// TTL and runs the job only when it got the lease. MemoryLocker serves a
// single instance; the redis package provides a shared one.
//
//	s, _ := scheduler.New(locker, scheduler.WithConfig(cfg.Scheduler))
//	_ = s.Add(reminders, scheduler.Every(5*time.Minute), time.Minute)
//	g.Go(s.Run(ctx))
package scheduler
