// Package orchestrator decides what happens when a timesheet submission or a
// material order changes.
//
// New submissions are validated and get their hour breakdowns computed;
// invalid ones are rejected with a system comment. Approvers are told about
// new submissions, foremen about decisions on theirs, and admin and
// warehouse users about new material orders. Every decision is written to the
// audit log. Handlers are safe to run again for the same event: recalculation
// is idempotent and notification intents carry an event-scoped dedupe key.
package orchestrator
