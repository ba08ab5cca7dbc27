package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var secret = []byte("test_secret")

func TestIssueAndParse(t *testing.T) {
	token, exp, err := Issue(Claims{
		UserID: 7,
		Name:   "Jane Doe",
		Email:  "jane@example.com",
		Role:   "user",
	}, secret)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.WithinDuration(t, time.Now().Add(TokenLifetime), exp, time.Minute)

	claims, err := Parse(token, secret)
	require.NoError(t, err)
	require.Equal(t, uint(7), claims.UserID)
	require.Equal(t, "Jane Doe", claims.Name)
	require.Equal(t, "jane@example.com", claims.Email)
	require.Equal(t, "user", claims.Role)
	require.WithinDuration(t, exp, claims.Exp, time.Second)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _, err := Issue(Claims{UserID: 7, Role: "user"}, secret)
	require.NoError(t, err)

	_, err = Parse(token, []byte("other_secret"))
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not.a.token", secret)
	require.Error(t, err)
}

func TestNewCartIDUnique(t *testing.T) {
	require.NotEqual(t, NewCartID(), NewCartID())
}
