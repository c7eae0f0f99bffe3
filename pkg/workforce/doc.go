// Package workforce defines the business documents the notification pipeline
// reacts to (timesheet submissions, material orders, users and certificates)
// and the Store through which they are read and written.
//
// The documents are owned by the application. This package only validates
// them and lets the pipeline persist derived fields such as hour breakdowns,
// reminder marks and fired certificate thresholds.
package workforce
