package realtime

import "sync"

// feed is the subscriber set of one user.
type feed struct {
	userID string

	mu      sync.RWMutex
	members map[string]*Client
}

func newFeed(userID string) *feed {
	return &feed{userID: userID, members: make(map[string]*Client)}
}

func (f *feed) join(c *Client) {
	f.mu.Lock()
	f.members[c.ID] = c
	f.mu.Unlock()
}

// leave removes the client. It reports whether the client was a member and
// whether the feed is now empty.
func (f *feed) leave(clientID string) (removed, empty bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, removed = f.members[clientID]
	delete(f.members, clientID)
	return removed, len(f.members) == 0
}

func (f *feed) size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.members)
}

// broadcast never blocks; full or closing clients miss env.
func (f *feed) broadcast(env Envelope) (delivered, dropped int) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, m := range f.members {
		if m.offer(env) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}
