package wizard

import "context"

// DraftStore is the persistence contract the wizard runs against.
//
// Get returns a NotFound error for unknown ids. PatchSection merges only the keys
// present in values and fails with Frozen once the report is submitted. Submit is
// idempotent: submitting a submitted report returns it unchanged.
type DraftStore interface {
	Create(ctx context.Context) (*Report, error)
	Get(ctx context.Context, responseID string) (*Report, error)
	PatchSection(ctx context.Context, responseID string, step Step, values Values) (*Report, error)
	Submit(ctx context.Context, responseID string) (*Report, error)
}
