package app_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgstate/internal/app"
	"tgstate/internal/authd"
	"tgstate/internal/config"
	"tgstate/internal/crypto"
	"tgstate/internal/domain"
	"tgstate/internal/services/login"
	"tgstate/internal/store"
)

type codePrompter struct{ code string }

func (p codePrompter) RequestCode(context.Context, string) (string, error) { return p.code, nil }

func (p codePrompter) RequestRegistration(context.Context, string) (domain.Registration, error) {
	return domain.Registration{}, domain.ErrPromptCanceled
}

func (p codePrompter) ConfirmSecretChat(context.Context, domain.SecretChat) (domain.Decision, error) {
	return domain.DecisionAccept, nil
}

func testConfig(t *testing.T, url string) config.Config {
	t.Helper()
	return config.Config{
		Home:              t.TempDir(),
		Phone:             "+15550001",
		AcceptSecretChats: "always",
		FlushInterval:     time.Second,
		AuthPollInterval:  time.Millisecond,
		AuthURL:           url,
	}
}

func TestLoginThenRestartAcceptsSecretChat(t *testing.T) {
	srv := httptest.NewServer(authd.New(authd.Config{
		Users: map[string]string{"+15550001": "me"},
	}, nil, nil).Handler())
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	ctx := context.Background()
	opts := app.Options{Prompter: codePrompter{code: authd.DefaultCode}, HTTP: srv.Client()}

	first, err := app.NewApp(cfg, opts)
	require.NoError(t, err)
	res, err := first.Start(ctx)
	require.NoError(t, err)
	assert.True(t, res.SignedIn)
	assert.DirExists(t, filepath.Join(cfg.StateDir(), config.DownloadsDir))

	info, err := os.Stat(filepath.Join(cfg.StateDir(), store.AuthFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, first.Remote.InjectSecretRequest(ctx, 2002, "bob"))

	second, err := app.NewApp(cfg, opts)
	require.NoError(t, err)
	res, err = second.Start(ctx)
	require.NoError(t, err)
	assert.True(t, res.AuthRestored)
	assert.False(t, res.SignedIn)
	require.Len(t, res.Difference.SecretChats, 1)

	id := res.Difference.SecretChats[0].ID
	assert.True(t, second.Lifecycle.CanSend(id))

	chats, found, err := second.Secrets.LoadSecretChats()
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, chats, 1)
	assert.Equal(t, domain.ChatActive, chats[0].State)
	assert.Equal(t, "bob", chats[0].Name)
}

func TestRestartKeepsSecretChatKey(t *testing.T) {
	srv := httptest.NewServer(authd.New(authd.Config{
		Users: map[string]string{"+15550001": "me"},
	}, nil, nil).Handler())
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	ctx := context.Background()
	opts := app.Options{Prompter: codePrompter{code: authd.DefaultCode}, HTTP: srv.Client()}

	first, err := app.NewApp(cfg, opts)
	require.NoError(t, err)
	_, err = first.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Remote.InjectSecretRequest(ctx, 2002, "bob"))

	second, err := app.NewApp(cfg, opts)
	require.NoError(t, err)
	res, err := second.Start(ctx)
	require.NoError(t, err)
	require.Len(t, res.Difference.SecretChats, 1)
	id := res.Difference.SecretChats[0].ID
	accepted, ok := second.Engine.SecretChat(id)
	require.True(t, ok)
	require.False(t, accepted.Key.IsZero())

	// The cursor was never flushed, so the next difference reports the
	// now active chat again.
	third, err := app.NewApp(cfg, opts)
	require.NoError(t, err)
	res, err = third.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChatsRestored)
	require.Len(t, res.Difference.SecretChats, 1)
	assert.Equal(t, domain.ChatActive, res.Difference.SecretChats[0].State)
	require.NoError(t, third.Lifecycle.Flush(ctx))

	got, ok := third.Engine.SecretChat(id)
	require.True(t, ok)
	assert.Equal(t, accepted.Key, got.Key)
	assert.Equal(t, accepted.KeyFingerprint, got.KeyFingerprint)
	assert.Equal(t, crypto.KeyDigest(got.Key), got.Digest)
	assert.True(t, third.Lifecycle.CanSend(id))

	chats, _, err := third.Secrets.LoadSecretChats()
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, accepted.Key, chats[0].Key)
	assert.Equal(t, accepted.KeyFingerprint, chats[0].KeyFingerprint)
	assert.Equal(t, accepted.Digest, chats[0].Digest)
}

func TestStartSecretChat_ActiveAfterSync(t *testing.T) {
	srv := httptest.NewServer(authd.New(authd.Config{
		AutoAccept: true,
		Users:      map[string]string{"+15550001": "me", "+15550002": "bob"},
	}, nil, nil).Handler())
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	ctx := context.Background()
	a, err := app.NewApp(cfg, app.Options{Prompter: codePrompter{code: authd.DefaultCode}, HTTP: srv.Client()})
	require.NoError(t, err)
	_, err = a.Start(ctx)
	require.NoError(t, err)

	chat, err := a.Lifecycle.StartSecretChat(ctx, 1002)
	require.NoError(t, err)
	assert.Equal(t, domain.ChatWaiting, chat.State)
	a.Lifecycle.Drain(ctx)
	assert.False(t, a.Lifecycle.CanSend(chat.ID))
	_, found, err := a.Secrets.LoadSecretChats()
	require.NoError(t, err)
	assert.False(t, found)

	_, err = a.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, a.Lifecycle.CanSend(chat.ID))

	chats, found, err := a.Secrets.LoadSecretChats()
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, chats, 1)
	assert.Equal(t, chat.ID, chats[0].ID)
	assert.Equal(t, domain.ChatActive, chats[0].State)
	assert.False(t, chats[0].Key.IsZero())
	assert.Equal(t, crypto.KeyDigest(chats[0].Key), chats[0].Digest)
}

func TestStart_WithoutPrompter(t *testing.T) {
	a, err := app.NewApp(testConfig(t, "http://127.0.0.1:1"), app.Options{})
	require.NoError(t, err)
	_, err = a.Start(context.Background())
	assert.ErrorIs(t, err, app.ErrNoPrompter)
}

func TestRestore_Offline(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	a, err := app.NewApp(cfg, app.Options{})
	require.NoError(t, err)

	res, err := a.Restore()
	require.NoError(t, err)
	assert.Equal(t, login.Result{}, res)
	assert.Len(t, a.Engine.Shards(), 5)
	assert.Equal(t, store.DefaultWorkingShard, a.Engine.WorkingShard())
}
