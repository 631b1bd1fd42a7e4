// Package ratelimit throttles repeated login failures with fixed-window
// counters keyed by client IP and by email.
//
// Counters live in Redis when configured so limits hold across replicas, and
// in process memory otherwise.
package ratelimit
