// Package api exposes the notification service over HTTP with chi.
//
// Routes:
//
//	POST /v1/deliveries/{id}      run the delivery worker for one record
//	POST /v1/admin/email/check    test SMTP settings without sending
//	GET  /v1/notifications        list delivery records
//	GET  /v1/audit                read the audit log
//	GET  /health/live             liveness
//	GET  /health/ready            readiness of configured dependencies
//	GET  /metrics                 Prometheus metrics, when a handler is set
//
// The delivery trigger answers 200 with the outcome for every processed
// record, including duplicates and records busy on another worker, 404 for an
// unknown record and 503 when storage is unavailable. The email check answers
// 502 with the server's own error text when the settings do not work.
package api
