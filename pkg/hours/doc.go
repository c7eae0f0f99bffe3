// Package hours derives worked-hour breakdowns from raw shift times.
//
// A shift is given as two local HH:MM clock values and the day it starts on.
// An end earlier than the start is an overnight shift ending the next day.
// A fixed 30 minute break is unpaid.
//
// # Usage
//
//	b, err := hours.Calculate(hours.Shift{
//		Start: "06:00",
//		End:   "14:30",
//		Date:  time.Date(2024, 3, 4, 0, 0, 0, 0, time.Local),
//	})
//	// b.Total == 8, b.Regular == 8, b.Overtime == 0
//
// Calculate is pure: identical input always produces an identical Breakdown,
// so entries can be recomputed on every redelivered event.
package hours
