// Package auth implements quill's credential and session security core.
//
// # Overview
//
// This package owns password hashing, token issuance and verification, and
// the Service type that orchestrates registration, login, refresh, and the
// verification and recovery flows. Transport concerns live in pkg/api;
// persistence lives in pkg/storage and pkg/session.
//
// # Password Hashing
//
// Passwords are hashed with Argon2id and stored in PHC string format:
//
//	hasher := auth.NewHasher()
//	digest, err := hasher.Hash("hunter2!")
//	// digest: $argon2id$v=19$m=19456,t=2,p=1$[salt]$[hash]
//
//	ok, err := hasher.Verify("hunter2!", digest)
//
// Each call salts independently, so equal passwords produce distinct
// digests. Inputs are bounded to MaxPasswordLength bytes on both the hash
// and verify paths.
//
// # Tokens
//
// Access and refresh tokens are HS256 JWTs carrying only a subject and a
// lifetime. Verification is pinned to HS256; any other algorithm, a bad
// signature, expiry, or an empty subject all collapse into ErrInvalidToken:
//
//	codec := auth.NewTokenCodec(secret)
//	token, err := codec.Issue(userID, 15*time.Minute)
//	subject, err := codec.Verify(token)
//
// # Login Protection
//
// Service.Login consults two Redis-backed failure counters before touching
// credentials: per client address (100 per 24h) and per identifier+address
// pair (10 per 1h). A tripped limit is indistinguishable from a wrong
// password on the wire. See pkg/session for the counter semantics.
package auth
