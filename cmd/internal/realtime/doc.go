// Package realtime pushes task mutations to their owner over WebSocket.
//
// A Hub keeps one feed per user. Gateway authenticates the upgrade request,
// subscribes the connection to the caller's feed and runs the
// writer, heartbeat and read loops. Publish never blocks: a client whose queue
// is full misses the event.
package realtime
