// Package session holds the Redis-backed session state for authentication:
// the refresh-token store and the layered login rate limiter. Both share one
// Redis client and reach it through single-round-trip atomic operations, so
// concurrent logins never observe partial state.
package session
