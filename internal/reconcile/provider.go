package reconcile

import (
	"context"
	"errors"
)

// Remote job states as the reconciler understands them.
type State string

const (
	StateQueued     State = "QUEUED"
	StateInProgress State = "IN_PROGRESS"
	StateCompleted  State = "COMPLETED"
)

// ErrNotFound marks the upstream "job does not exist" class of failure,
// distinct from transient errors that are retried on the next pass.
var ErrNotFound = errors.New("request not found upstream")

// ResultPayload is the distilled remote result: the output asset URL plus
// whatever metadata the provider returned.
type ResultPayload struct {
	AssetURL string
	Raw      map[string]any
}

// Provider is the minimal capability surface of the remote generation API.
// Keeping it this small makes the reconciliation logic independent of the
// upstream shape and testable against a fake.
type Provider interface {
	Status(ctx context.Context, endpoint, requestID string) (State, error)
	Result(ctx context.Context, endpoint, requestID string) (*ResultPayload, error)
}
