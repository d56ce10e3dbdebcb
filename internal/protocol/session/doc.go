// Package session owns connection policy for instrument links.
//
// Ownership boundary:
// - connect/read/write timeouts
// - reconnect attempts and backoff
package session
