package realtime

import (
	"time"

	"tasker/cmd/identity/ids"
)

// newClientID returns a ULID identifying one websocket connection.
func newClientID(now time.Time) (string, error) {
	return ids.NewULID(now)
}

// newEnvelopeID returns a ULID so envelope IDs sort by emission time.
func newEnvelopeID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
