package workforce

import (
	"context"
	"time"
)

// Store is the narrow document-store interface the pipeline depends on.
type Store interface {
	GetSubmission(ctx context.Context, id string) (Submission, error)
	SaveSubmission(ctx context.Context, s Submission) error
	// ListReminderCandidates returns draft submissions created or submitted
	// before cutoff that have not been reminded.
	ListReminderCandidates(ctx context.Context, cutoff time.Time) ([]Submission, error)
	// MarkReminded sets RemindedAt only if it is still unset. It reports
	// whether this call made the change.
	MarkReminded(ctx context.Context, id string, at time.Time) (bool, error)
	CountSubmissions(ctx context.Context, status SubmissionStatus) (int, error)

	GetMaterialOrder(ctx context.Context, id string) (MaterialOrder, error)
	SaveMaterialOrder(ctx context.Context, o MaterialOrder) error
	CountMaterialOrders(ctx context.Context, status OrderStatus) (int, error)

	GetUser(ctx context.Context, id string) (User, error)
	SaveUser(ctx context.Context, u User) error
	ListUsersByRole(ctx context.Context, roles ...Role) ([]User, error)

	SaveCertificate(ctx context.Context, c Certificate) error
	// ListExpiringCertificates returns certificates expiring after from and
	// no later than until.
	ListExpiringCertificates(ctx context.Context, from, until time.Time) ([]Certificate, error)
	// AddNotifiedThresholds records thresholds as fired, ignoring ones already present.
	AddNotifiedThresholds(ctx context.Context, id string, days ...int) error
}
