// Package password hashes and verifies user passwords with Argon2id.
//
// Hashes are stored as PHC strings. Verify treats the stored string as
// untrusted input: malformed hashes and hashes whose cost parameters are far
// above the configured ones yield ErrInvalidHash. Key comparison is constant
// time.
//
// Hasher bounds how many Argon2id computations run at once.
package password
