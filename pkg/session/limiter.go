package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter policy constants. The address counter survives a successful login
// so distributed attempts from one origin against many identifiers still
// accumulate.
const (
	AddressLimit  = 100
	AddressWindow = 24 * time.Hour

	PairLimit  = 10
	PairWindow = time.Hour
)

const (
	addressKeyPrefix = "login_fail_ip:"
	pairKeyPrefix    = "login_fail_identifier_ip:"
)

// LoginLimiter tracks failed logins with two layered counters: one per
// source address and one per (identifier, address) pair. Both counters are
// incremented in a single MULTI/EXEC batch and their TTLs reset on every
// increment, giving a sliding window.
type LoginLimiter struct {
	client *redis.Client
}

// NewLoginLimiter returns a limiter backed by the given Redis client.
func NewLoginLimiter(client *redis.Client) *LoginLimiter {
	return &LoginLimiter{client: client}
}

// AttemptsByAddress returns the current failure count for the address.
// A missing counter reads as zero.
func (l *LoginLimiter) AttemptsByAddress(ctx context.Context, addr string) (int64, error) {
	return l.counter(ctx, addressKey(addr))
}

// AttemptsByPair returns the current failure count for the
// (identifier, address) pair. A missing counter reads as zero.
func (l *LoginLimiter) AttemptsByPair(ctx context.Context, addr, identifier string) (int64, error) {
	return l.counter(ctx, pairKey(addr, identifier))
}

// RecordFailure increments both counters and resets both TTLs in one atomic
// batch. Partial increments would let an attacker sidestep one layer, so the
// four commands go through MULTI/EXEC.
func (l *LoginLimiter) RecordFailure(ctx context.Context, addr, identifier string) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, addressKey(addr))
		pipe.Expire(ctx, addressKey(addr), AddressWindow)
		pipe.Incr(ctx, pairKey(addr, identifier))
		pipe.Expire(ctx, pairKey(addr, identifier), PairWindow)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

// Clear removes the pair-scoped counter after a successful authentication.
// The address-scoped counter is left untouched.
func (l *LoginLimiter) Clear(ctx context.Context, addr, identifier string) error {
	if err := l.client.Del(ctx, pairKey(addr, identifier)).Err(); err != nil {
		return fmt.Errorf("clear login failures: %w", err)
	}
	return nil
}

func (l *LoginLimiter) counter(ctx context.Context, key string) (int64, error) {
	count, err := l.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("read login failure counter: %w", err)
	}
	return count, nil
}

func addressKey(addr string) string {
	return addressKeyPrefix + addr
}

func pairKey(addr, identifier string) string {
	return pairKeyPrefix + identifier + "_" + addr
}
