package tasks

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps tasks in process. Used when no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]Task)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) List(ctx context.Context, ownerID string, q Query) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Task, 0)
	for _, t := range s.tasks {
		if t.OwnerID == ownerID && q.matches(t) {
			out = append(out, cloneTask(t))
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Task) int {
		c := compareBy(q.SortBy, a, b)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if q.SortDesc {
			return -c
		}
		return c
	})
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return cloneTask(t), nil
}

func (s *MemoryStore) Create(ctx context.Context, t Task) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[t.ID] = cloneTask(t)
	return cloneTask(t), nil
}

func (s *MemoryStore) Update(ctx context.Context, ownerID string, t Task) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[t.ID]
	if !ok || cur.OwnerID != ownerID {
		return Task{}, ErrNotFound
	}
	t.OwnerID = cur.OwnerID
	t.CreatedAt = cur.CreatedAt
	s.tasks[t.ID] = cloneTask(t)
	return cloneTask(t), nil
}

func (s *MemoryStore) Delete(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[id]
	if !ok || cur.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (q Query) matches(t Task) bool {
	if q.IsCompleted != nil && t.IsCompleted != *q.IsCompleted {
		return false
	}
	if q.Priority != nil && t.Priority != *q.Priority {
		return false
	}
	if len(q.Tags) > 0 && !slices.ContainsFunc(q.Tags, func(tag string) bool {
		return slices.Contains(t.Tags, tag)
	}) {
		return false
	}
	if q.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(q.Search)) {
		return false
	}
	return true
}

func compareBy(f SortField, a, b Task) int {
	switch f {
	case SortByID:
		return strings.Compare(a.ID, b.ID)
	case SortByTitle:
		return strings.Compare(a.Title, b.Title)
	case SortByDescription:
		return strings.Compare(a.Description, b.Description)
	case SortByIsCompleted:
		return compareBool(a.IsCompleted, b.IsCompleted)
	case SortByPriority:
		return a.Priority - b.Priority
	case SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
