package tasks

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SortField names a sortable task column.
type SortField string

const (
	SortByID          SortField = "id"
	SortByTitle       SortField = "title"
	SortByDescription SortField = "description"
	SortByIsCompleted SortField = "isCompleted"
	SortByPriority    SortField = "priority"
	SortByCreatedAt   SortField = "createdAt"
	SortByUpdatedAt   SortField = "updatedAt"
)

var sortFields = map[SortField]struct{}{
	SortByID: {}, SortByTitle: {}, SortByDescription: {}, SortByIsCompleted: {},
	SortByPriority: {}, SortByCreatedAt: {}, SortByUpdatedAt: {},
}

// Query filters and orders a task listing. Nil pointers and empty values
// mean "no filter".
type Query struct {
	IsCompleted *bool
	Priority    *int
	// Tags matches tasks carrying any of the given tags.
	Tags   []string
	Search string

	SortBy   SortField
	SortDesc bool
}

// DefaultQuery lists newest first.
func DefaultQuery() Query {
	return Query{SortBy: SortByCreatedAt, SortDesc: true}
}

// ParseQuery reads isCompleted, priority, tags, search, sortBy and sortOrder.
// Tags may be repeated or comma-separated. Without sortBy the order is
// createdAt descending and sortOrder is ignored.
func ParseQuery(v url.Values) (Query, error) {
	q := DefaultQuery()

	if raw := strings.TrimSpace(v.Get("isCompleted")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Query{}, fmt.Errorf("%w: isCompleted must be a boolean", ErrInvalidInput)
		}
		q.IsCompleted = &b
	}

	if raw := strings.TrimSpace(v.Get("priority")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < PriorityLow || n > PriorityHigh {
			return Query{}, fmt.Errorf("%w: priority must be an integer between 1 and 3", ErrInvalidInput)
		}
		q.Priority = &n
	}

	for _, raw := range v["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				q.Tags = append(q.Tags, tag)
			}
		}
	}

	q.Search = strings.TrimSpace(v.Get("search"))

	order := strings.ToLower(strings.TrimSpace(v.Get("sortOrder")))
	switch order {
	case "", "asc", "desc":
	default:
		return Query{}, fmt.Errorf("%w: sortOrder must be one of [asc desc]", ErrInvalidInput)
	}

	if raw := strings.TrimSpace(v.Get("sortBy")); raw != "" {
		f := SortField(raw)
		if _, ok := sortFields[f]; !ok {
			return Query{}, fmt.Errorf("%w: sortBy must be one of [id title description isCompleted priority createdAt updatedAt]", ErrInvalidInput)
		}
		q.SortBy = f
		q.SortDesc = order == "desc"
	}

	return q, nil
}
