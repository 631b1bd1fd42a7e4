// Package token signs and verifies the compact credentials used for sessions.
//
// Tokens are HS256 JWTs. Each carries the user ID as "sub", a "kind" claim
// (access or refresh), a unique "jti", and "iat"/"exp" managed by the codec.
//
// Verify distinguishes ErrTokenExpired from ErrTokenInvalid so callers can log
// the difference, even though the HTTP layer collapses both into 401.
package token
