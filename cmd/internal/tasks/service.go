package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"tasker/cmd/identity/ids"
	"tasker/cmd/internal/metrics"
)

// Publisher receives task mutations for the owner's live subscribers.
// Publish must not block.
type Publisher interface {
	Publish(ownerID, eventType string, payload any)
}

// Service applies ownership checks and field rules on top of a Store.
type Service struct {
	store   Store
	pub     Publisher
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher attaches the realtime feed.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics counts mutations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService returns a Service over store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("tasks: nil store")
	}
	s := &Service{
		store: store,
		log:   slog.Default(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// CreateInput holds the fields a new task may be created with.
type CreateInput struct {
	Title string
}

// ReplaceInput is a full replacement of the mutable fields.
type ReplaceInput struct {
	Title       string
	Description string
	IsCompleted bool
	Priority    int
	Tags        []string
}

// PatchInput changes only the non-nil fields.
type PatchInput struct {
	Title       *string
	Description *string
	IsCompleted *bool
	Priority    *int
	Tags        *[]string
}

// List returns the owner's tasks.
func (s *Service) List(ctx context.Context, ownerID string, q Query) ([]Task, error) {
	return s.store.List(ctx, ownerID, q)
}

// Get returns the task when ownerID owns it.
func (s *Service) Get(ctx context.Context, ownerID, id string) (Task, error) {
	return s.owned(ctx, ownerID, id)
}

// Create adds a task with default description, priority, completion and tags.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (Task, error) {
	title := strings.TrimSpace(in.Title)
	if err := checkTitle(title); err != nil {
		return Task{}, err
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Task{}, fmt.Errorf("tasks: id: %w", err)
	}

	t, err := s.store.Create(ctx, Task{
		ID:          id,
		Title:       title,
		Description: "",
		IsCompleted: false,
		Priority:    PriorityLow,
		Tags:        []string{},
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Task{}, err
	}

	s.metrics.TaskMutation("create")
	s.publish(ownerID, EventCreated, t)
	return t, nil
}

// Replace overwrites every mutable field.
func (s *Service) Replace(ctx context.Context, ownerID, id string, in ReplaceInput) (Task, error) {
	cur, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return Task{}, err
	}

	cur.Title = strings.TrimSpace(in.Title)
	cur.Description = in.Description
	cur.IsCompleted = in.IsCompleted
	cur.Priority = in.Priority
	cur.Tags = normalizeTags(in.Tags)

	return s.save(ctx, ownerID, cur, "replace")
}

// Patch changes the fields present in in.
func (s *Service) Patch(ctx context.Context, ownerID, id string, in PatchInput) (Task, error) {
	cur, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return Task{}, err
	}

	if in.Title != nil {
		cur.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		cur.Description = *in.Description
	}
	if in.IsCompleted != nil {
		cur.IsCompleted = *in.IsCompleted
	}
	if in.Priority != nil {
		cur.Priority = *in.Priority
	}
	if in.Tags != nil {
		cur.Tags = normalizeTags(*in.Tags)
	}

	return s.save(ctx, ownerID, cur, "patch")
}

// Delete removes the task when ownerID owns it.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	s.metrics.TaskMutation("delete")
	s.publish(ownerID, EventDeleted, DeletedPayload{ID: id})
	return nil
}

// owned loads the task and runs the ownership check. A foreign task is
// indistinguishable from a missing one.
func (s *Service) owned(ctx context.Context, ownerID, id string) (Task, error) {
	if ownerID == "" || !ids.Valid(id) {
		return Task{}, ErrNotFound
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if t.OwnerID != ownerID {
		s.log.Debug("tasks.access.denied", "task_id", id, "user_id", ownerID)
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *Service) save(ctx context.Context, ownerID string, t Task, op string) (Task, error) {
	if err := checkFields(t); err != nil {
		return Task{}, err
	}
	t.UpdatedAt = s.now()

	out, err := s.store.Update(ctx, ownerID, t)
	if err != nil {
		return Task{}, err
	}

	s.metrics.TaskMutation(op)
	s.publish(ownerID, EventUpdated, out)
	return out, nil
}

func (s *Service) publish(ownerID, eventType string, payload any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(ownerID, eventType, payload)
}

func checkTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < TitleMinLen || n > TitleMaxLen {
		return fmt.Errorf("%w: title must be between %d and %d characters", ErrInvalidInput, TitleMinLen, TitleMaxLen)
	}
	return nil
}

func checkFields(t Task) error {
	if err := checkTitle(t.Title); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Description) > DescriptionMaxLen {
		return fmt.Errorf("%w: description must be at most %d characters", ErrInvalidInput, DescriptionMaxLen)
	}
	if t.Priority < PriorityLow || t.Priority > PriorityHigh {
		return fmt.Errorf("%w: priority must be between %d and %d", ErrInvalidInput, PriorityLow, PriorityHigh)
	}
	if len(t.Tags) > MaxTags {
		return fmt.Errorf("%w: at most %d tags", ErrInvalidInput, MaxTags)
	}
	for _, tag := range t.Tags {
		if utf8.RuneCountInString(tag) > TagMaxLen {
			return fmt.Errorf("%w: tags must be at most %d characters", ErrInvalidInput, TagMaxLen)
		}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, strings.TrimSpace(t))
	}
	return out
}
