package store

// TODO: add integration tests against a real pgxpool.Pool (or a Postgres
// testcontainer) covering CreateAlertUnderLock's advisory-lock cooldown
// behavior, TryMarkSending's stale-reclaim window, and unique-violation
// mapping end to end. The pure-logic pieces below are covered without a
// live database connection.

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestDedupeTagsSortsDropsEmptyAndDuplicates(t *testing.T) {
	got := dedupeTags([]string{"b", "a", "", "b", "c", ""})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDedupeTagsNilInput(t *testing.T) {
	got := dedupeTags(nil)
	assert.Empty(t, got)
}

func TestIsUniqueViolationMatchesCode23505(t *testing.T) {
	err := &pgconn.PgError{Code: "23505"}
	assert.True(t, isUniqueViolation(err))
}

func TestIsUniqueViolationFalseForOtherCodes(t *testing.T) {
	err := &pgconn.PgError{Code: "23503"}
	assert.False(t, isUniqueViolation(err))
}

func TestIsUniqueViolationFalseForNonPgError(t *testing.T) {
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestIsUniqueViolationFalseForNil(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
}

func TestSendingStaleAfterIs120Seconds(t *testing.T) {
	assert.Equal(t, int64(120), int64(sendingStaleAfter.Seconds()))
}
