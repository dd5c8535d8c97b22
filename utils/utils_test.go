package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := GenerateToken("u1", "admin", "e1", time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "e1", claims.ExpertID)
}

func TestParseTokenRejectsExpiredAndEmptySubject(t *testing.T) {
	expired, err := GenerateToken("u1", "", "", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	anonymous, err := GenerateToken("", "", "", time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(anonymous)
	assert.Error(t, err)

	_, err = ParseToken("garbage")
	assert.Error(t, err)
}

func TestHTTPStatusFollowsKind(t *testing.T) {
	cases := map[error]int{
		Validation("bad", "bad"):                     http.StatusBadRequest,
		Conflict("taken", "taken"):                   http.StatusConflict,
		Noop("done", "done"):                         http.StatusConflict,
		NotFound("missing", "missing"):               http.StatusNotFound,
		Forbidden("nope", "nope"):                    http.StatusForbidden,
		Unavailable("down", "down", errors.New("x")): http.StatusServiceUnavailable,
		errors.New("plain"):                          http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}

func TestHasCodeSeesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("create booking: %w", Conflict("slot_taken", "taken"))
	assert.True(t, HasCode(err, "slot_taken"))
	assert.False(t, HasCode(err, "blocked"))
	assert.False(t, HasCode(errors.New("slot_taken"), "slot_taken"))
}

func TestHealthyIgnoresUnconfiguredDependencies(t *testing.T) {
	assert.True(t, HealthStatus{}.Healthy())

	down := false
	assert.False(t, HealthStatus{Mongo: &down}.Healthy())
	assert.False(t, HealthStatus{Redis: []bool{true, false}}.Healthy())
}
