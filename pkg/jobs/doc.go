// Package jobs holds the periodic work run by the scheduler: draft
// reminders, the admin digest, certificate expiry warnings and the sweep that
// re-enqueues overdue delivery records.
//
// Every job is safe to run again: notifications carry dedupe keys derived
// from the subject and the period, and state is only marked after dispatch.
package jobs
