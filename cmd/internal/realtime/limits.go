package realtime

import "time"

const (
	// Max bytes per inbound frame. Clients only send pings.
	maxFrameBytes = 4 << 10

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
	maxPingFailures   = 3

	// Per-connection inbound limit.
	rateLimitEvents = 30
	rateLimitWindow = 10 * time.Second

	defaultSendQueueSize = 64
	minSendQueueSize     = 8

	defaultWriteTimeout = 5 * time.Second
	closeGrace          = time.Second
)
