package tasks

import "context"

// Store persists tasks. Get is unscoped so the service can run the ownership
// check itself; Update and Delete are scoped by owner so a concurrent
// ownership change cannot slip between check and write.
type Store interface {
	List(ctx context.Context, ownerID string, q Query) ([]Task, error)
	Get(ctx context.Context, id string) (Task, error)
	Create(ctx context.Context, t Task) (Task, error)
	Update(ctx context.Context, ownerID string, t Task) (Task, error)
	Delete(ctx context.Context, ownerID, id string) error
}
