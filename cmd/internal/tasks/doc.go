// Package tasks implements the owner-scoped task CRUD API.
//
// Every read and mutation compares the task's owner to the authenticated
// user. A task owned by someone else is reported exactly like a task that
// does not exist (ErrNotFound), so callers cannot probe for other users' IDs.
//
// Mutations are published to an optional Publisher (the realtime feed).
package tasks
