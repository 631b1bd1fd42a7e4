// Package session issues, verifies and rotates the access/refresh token pair.
//
// Register and Login turn credentials into a pair; Refresh turns a refresh
// token into a new pair; Authenticate resolves an access token to a live user.
// Tokens are self-contained: nothing is stored server-side, so a rotated
// refresh token remains valid until its own expiry.
//
// Transport (cookies, headers) is handled by the HTTP layer.
package session
