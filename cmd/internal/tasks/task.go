package tasks

import "time"

// Priority levels.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
)

// Field limits, counted in runes.
const (
	TitleMinLen       = 2
	TitleMaxLen       = 50
	DescriptionMaxLen = 225
	MaxTags           = 20
	TagMaxLen         = 20
)

// Task is both the stored row and the API representation.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"isCompleted"`
	Priority    int       `json:"priority"`
	Tags        []string  `json:"tags"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Event types published on mutation.
const (
	EventCreated = "task.created"
	EventUpdated = "task.updated"
	EventDeleted = "task.deleted"
)

// DeletedPayload is published for EventDeleted.
type DeletedPayload struct {
	ID string `json:"id"`
}

func cloneTask(t Task) Task {
	tags := make([]string, len(t.Tags))
	copy(tags, t.Tags)
	t.Tags = tags
	return t
}
