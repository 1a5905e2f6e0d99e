// Package authkey implements prefixed API-key generation and verification:
// the presented credential is "<prefix>.<secret>", the prefix is an
// unauthenticated lookup column, and the secret is checked with a slow
// hash bound to the stored row.
package authkey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost matches the teacher's default application cost factor.
const BcryptCost = 12

var (
	ErrMalformed = errors.New("authkey: malformed key")
	ErrUnknown   = errors.New("authkey: unknown prefix")
	ErrRevoked   = errors.New("authkey: key revoked")
	ErrMismatch  = errors.New("authkey: secret mismatch")
)

// Generate produces a new API key: the raw value to hand back to the
// caller once, its prefix (the unique lookup column), and the bcrypt hash
// of the secret half to persist.
func Generate() (raw, prefix, hashedSecret string, err error) {
	prefixBytes := make([]byte, 4)
	if _, err = rand.Read(prefixBytes); err != nil {
		return "", "", "", fmt.Errorf("generate prefix: %w", err)
	}
	prefix = hex.EncodeToString(prefixBytes)
	secret := strings.ReplaceAll(uuid.NewString(), "-", "")

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), BcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hash secret: %w", err)
	}

	raw = prefix + "." + secret
	return raw, prefix, string(hashed), nil
}

// Split separates a presented "<prefix>.<secret>" key into its two halves.
func Split(presented string) (prefix, secret string, ok bool) {
	parts := strings.SplitN(presented, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// VerifySecret checks a presented secret against a stored bcrypt hash.
func VerifySecret(secret, hashedSecret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedSecret), []byte(secret)) == nil
}

// Record is the subset of a stored API-key row needed for authentication.
type Record struct {
	ProjectID    int64
	HashedSecret string
	RevokedAt    *time.Time
}

// Lookuper resolves an API key prefix to its stored record. internal/store
// implements this directly, so no store-specific type appears here.
type Lookuper interface {
	LookupAPIKeyByPrefix(ctx context.Context, prefix string) (Record, bool, error)
}

// Authenticate resolves a presented "X-API-Key" header value to a project
// id, or one of the sentinel errors above describing why it was rejected.
func Authenticate(ctx context.Context, lookup Lookuper, presented string) (int64, error) {
	prefix, secret, ok := Split(presented)
	if !ok {
		return 0, ErrMalformed
	}

	rec, found, err := lookup.LookupAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrUnknown
	}
	if rec.RevokedAt != nil {
		return 0, ErrRevoked
	}
	if !VerifySecret(secret, rec.HashedSecret) {
		return 0, ErrMismatch
	}
	return rec.ProjectID, nil
}
