package scheduler

import "errors"

var (
	// ErrLockerNil is returned when a scheduler is created without a locker.
	ErrLockerNil = errors.New("scheduler: locker cannot be nil")

	// ErrInvalidJob is returned when adding a nil job, a job without a name
	// or a nil schedule.
	ErrInvalidJob = errors.New("scheduler: invalid job")

	// ErrJobAlreadyRegistered is returned when adding a job name twice.
	ErrJobAlreadyRegistered = errors.New("scheduler: job already registered")

	// ErrNoJobs is returned when starting a scheduler without jobs.
	ErrNoJobs = errors.New("scheduler: no jobs registered")

	// ErrInvalidTimezone is returned for an unknown IANA zone name.
	ErrInvalidTimezone = errors.New("scheduler: invalid timezone")
)
