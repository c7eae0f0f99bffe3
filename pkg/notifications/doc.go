// Package notifications turns notification intents into persisted delivery
// records and guards their lifecycle.
//
// A Record is one (user, channel) delivery of one template. It starts
// pending and moves at most once to sent, skipped or failed:
//
//	pending -> pending (retry scheduled)
//	pending -> sent | skipped | failed
//
// Fanout is the only writer that creates records. Record ids derive from the
// intent's DedupeKey so dispatching the same intent again is harmless:
//
//	fan := notifications.NewFanout(storage, queue, notifications.WithAuditor(auditLog))
//	n, err := fan.Dispatch(ctx, notifications.Intent{
//	    RecipientID: "user-1",
//	    TemplateKey: "TS_APPROVED_V1",
//	    Channels:    []channel.Channel{channel.Email},
//	    DedupeKey:   notifications.DedupeKey(eventID, "user-1", "TS_APPROVED_V1"),
//	})
//
// Storage.Claim gives one worker exclusive use of a pending record until its
// lease ends. Save writes the outcome and releases the claim.
package notifications
