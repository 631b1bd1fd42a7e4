// Package identity owns user accounts: the User model, the Store boundary used
// by the session core, and its Postgres and in-memory implementations.
//
// Stores never hash passwords; callers pass an already-encoded PHC string.
package identity
