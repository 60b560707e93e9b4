package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	var out syncBuffer

	err := runLogin(context.Background(), "alice", "correct-pw", env.options(&out)...)
	require.NoError(t, err)

	token, ok := env.store.get(env.api.origin(t))
	require.True(t, ok)
	assert.Equal(t, env.api.token, token)
	assert.Contains(t, out.String(), "Login successful")
	assert.Contains(t, out.String(), "User: alice")
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	var out syncBuffer

	err := runLogin(context.Background(), "alice", "wrong", env.options(&out)...)
	assert.ErrorIs(t, err, errLoginFailed)

	_, ok := env.store.get(env.api.origin(t))
	assert.False(t, ok)
}

func TestLogin_ReadsEnvironment(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("PAINEL_USERNAME", "alice")
	t.Setenv("PAINEL_PASSWORD", "correct-pw")
	var out syncBuffer

	require.NoError(t, runLogin(context.Background(), "", "", env.options(&out)...))
	_, ok := env.store.get(env.api.origin(t))
	assert.True(t, ok)
}

func TestLogin_RequiresUsername(t *testing.T) {
	t.Setenv("PAINEL_USERNAME", "")

	err := runLogin(context.Background(), "", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username is required")
}

func TestLogin_NoConfigFile(t *testing.T) {
	mustChdir(t, t.TempDir())
	t.Setenv("PAINEL_CONFIG_DIR", t.TempDir())

	err := runLogin(context.Background(), "alice", "correct-pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestLogout_EndsOtherProcesses(t *testing.T) {
	env := newTestEnv(t)
	env.loggedIn(t)

	other := env.otherProcess(t)
	require.True(t, other.IsAuthenticated())

	var out syncBuffer
	require.NoError(t, runLogout(env.options(&out)...))

	assert.False(t, other.IsAuthenticated())
	_, ok := env.store.get(env.api.origin(t))
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Logged out from test")
}

func TestLogout_WhenLoggedOut(t *testing.T) {
	env := newTestEnv(t)
	var out syncBuffer

	require.NoError(t, runLogout(env.options(&out)...))
	assert.Contains(t, out.String(), "Not logged in")
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)

	var out syncBuffer
	require.NoError(t, runStatus(context.Background(), false, env.options(&out)...))
	assert.Contains(t, out.String(), "Status: logged out")

	env.loggedIn(t)
	var after syncBuffer
	require.NoError(t, runStatus(context.Background(), true, env.options(&after)...))
	assert.Contains(t, after.String(), "logged in as alice")
	assert.Contains(t, after.String(), "Verified: alice")
}

func TestStatus_VerifyRejectedTokenLogsOut(t *testing.T) {
	env := newTestEnv(t)
	env.loggedIn(t)
	env.api.rejectAll.Store(true)

	other := env.otherProcess(t)
	var out syncBuffer

	err := runStatus(context.Background(), true, env.options(&out)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authenticated")
	assert.False(t, other.IsAuthenticated())
}
