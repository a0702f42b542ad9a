package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsRoundTrip(t *testing.T) {
	withHome(t)

	loaded, err := LoadCredentials()
	require.NoError(t, err)
	assert.Nil(t, loaded, "nothing saved yet")

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, SaveCredentials(Credentials{
		AccessToken: "eyJ.token.sig",
		TokenType:   "Bearer",
		Expiry:      expiry,
		Cookies:     []StoredCookie{{Name: "connect.sid", Value: "s%3Aabc"}},
	}))

	loaded, err = LoadCredentials()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "eyJ.token.sig", loaded.AccessToken)
	assert.Equal(t, "Bearer", loaded.TokenType)
	assert.True(t, expiry.Equal(loaded.Expiry))
	assert.Equal(t, []StoredCookie{{Name: "connect.sid", Value: "s%3Aabc"}}, loaded.Cookies)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestCredentialsFileIsEncrypted(t *testing.T) {
	withHome(t)

	require.NoError(t, SaveCredentials(Credentials{AccessToken: "plain-secret-value"}))

	path, err := CredentialsPath()
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "plain-secret-value")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestClearCredentials(t *testing.T) {
	withHome(t)

	assert.NoError(t, ClearCredentials(), "missing file is fine")

	require.NoError(t, SaveCredentials(Credentials{AccessToken: "x"}))
	require.NoError(t, ClearCredentials())

	loaded, err := LoadCredentials()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadCredentialsCorrupt(t *testing.T) {
	withHome(t)

	path, err := CredentialsPath()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("not an age file"), 0600))

	_, err = LoadCredentials()
	assert.ErrorContains(t, err, "credentials unreadable")
}

func TestCredentialsEmpty(t *testing.T) {
	var nilCreds *Credentials
	assert.True(t, nilCreds.Empty())
	assert.True(t, (&Credentials{TokenType: "Bearer"}).Empty())
	assert.False(t, (&Credentials{AccessToken: "a"}).Empty())
	assert.False(t, (&Credentials{Cookies: []StoredCookie{{Name: "sid"}}}).Empty())
}

func TestMask(t *testing.T) {
	assert.Equal(t, "(empty)", Mask(""))
	assert.Equal(t, "***", Mask("abc"))
	assert.Equal(t, "****efgh", Mask("abcdefgh"))
}
