package authkey

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	records map[string]Record
}

func (f fakeLookup) LookupAPIKeyByPrefix(ctx context.Context, prefix string) (Record, bool, error) {
	rec, ok := f.records[prefix]
	return rec, ok, nil
}

func TestGenerateProducesDotSeparatedKey(t *testing.T) {
	raw, prefix, hashed, err := Generate()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, prefix+"."))
	assert.Len(t, prefix, 8)
	assert.True(t, strings.HasPrefix(hashed, "$2"))
}

func TestGenerateThenVerify(t *testing.T) {
	raw, prefix, hashed, err := Generate()
	require.NoError(t, err)

	gotPrefix, secret, ok := Split(raw)
	require.True(t, ok)
	assert.Equal(t, prefix, gotPrefix)
	assert.True(t, VerifySecret(secret, hashed))
	assert.False(t, VerifySecret("wrong-secret", hashed))
}

func TestSplitRejectsMalformed(t *testing.T) {
	_, _, ok := Split("no-dot-here")
	assert.False(t, ok)

	_, _, ok = Split(".missing-prefix")
	assert.False(t, ok)

	_, _, ok = Split("missing-secret.")
	assert.False(t, ok)
}

func TestAuthenticateSuccess(t *testing.T) {
	raw, prefix, hashed, err := Generate()
	require.NoError(t, err)

	lookup := fakeLookup{records: map[string]Record{
		prefix: {ProjectID: 42, HashedSecret: hashed},
	}}

	projectID, err := Authenticate(context.Background(), lookup, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), projectID)
}

func TestAuthenticateMalformed(t *testing.T) {
	_, err := Authenticate(context.Background(), fakeLookup{}, "invalid-no-dot")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestAuthenticateUnknownPrefix(t *testing.T) {
	_, err := Authenticate(context.Background(), fakeLookup{records: map[string]Record{}}, "unknown1.somesecret")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	raw, prefix, hashed, err := Generate()
	require.NoError(t, err)
	_, _, ok := Split(raw)
	require.True(t, ok)

	lookup := fakeLookup{records: map[string]Record{
		prefix: {ProjectID: 1, HashedSecret: hashed},
	}}

	_, err = Authenticate(context.Background(), lookup, prefix+".wrong-secret")
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestAuthenticateRevoked(t *testing.T) {
	raw, prefix, hashed, err := Generate()
	require.NoError(t, err)

	revoked := time.Now()
	lookup := fakeLookup{records: map[string]Record{
		prefix: {ProjectID: 1, HashedSecret: hashed, RevokedAt: &revoked},
	}}

	_, err = Authenticate(context.Background(), lookup, raw)
	assert.ErrorIs(t, err, ErrRevoked)
}
