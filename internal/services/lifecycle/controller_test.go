package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgstate/internal/crypto"
	"tgstate/internal/domain"
	"tgstate/internal/engine"
	"tgstate/internal/services/lifecycle"
	"tgstate/internal/store"
)

const ourID domain.UserID = 100

type writeCounter struct {
	mu     sync.Mutex
	writes map[string]int
}

func (w *writeCounter) StoreWritten(name string, _ int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writes == nil {
		w.writes = make(map[string]int)
	}
	w.writes[name]++
}

func (w *writeCounter) count(name string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes[name]
}

type fakeAcceptor struct {
	key   domain.SecretKey
	fp    int64
	err   error
	calls int
}

func (a *fakeAcceptor) AcceptSecretChat(context.Context, domain.SecretChat) (domain.SecretKey, int64, error) {
	a.calls++
	return a.key, a.fp, a.err
}

type fakeRequester struct {
	chat  domain.SecretChat
	err   error
	peers []domain.UserID
}

func (r *fakeRequester) RequestSecretChat(_ context.Context, peer domain.UserID) (domain.SecretChat, error) {
	r.peers = append(r.peers, peer)
	if r.err != nil {
		return domain.SecretChat{}, r.err
	}
	c := r.chat
	c.UserID, c.AdminID = peer, ourID
	return c, nil
}

func (r *fakeRequester) CompleteSecretChat(context.Context, domain.SecretChat) (domain.SecretKey, int64, error) {
	return domain.SecretKey{}, 0, errors.New("not used")
}

type fakePrompter struct {
	answer domain.Decision
}

func (p *fakePrompter) RequestCode(context.Context, string) (string, error) {
	return "", domain.ErrPromptCanceled
}

func (p *fakePrompter) RequestRegistration(context.Context, string) (domain.Registration, error) {
	return domain.Registration{}, domain.ErrPromptCanceled
}

func (p *fakePrompter) ConfirmSecretChat(context.Context, domain.SecretChat) (domain.Decision, error) {
	return p.answer, nil
}

type fixture struct {
	dir      string
	eng      *engine.State
	writes   *writeCounter
	acceptor *fakeAcceptor
	ctrl     *lifecycle.Controller
}

func newFixture(t *testing.T, policy domain.AcceptPolicy, opts ...lifecycle.Option) *fixture {
	t.Helper()
	f := &fixture{
		dir:      t.TempDir(),
		eng:      engine.New(),
		writes:   &writeCounter{},
		acceptor: &fakeAcceptor{fp: 77},
	}
	f.acceptor.key[0] = 0xAB
	f.eng.SetOurID(ourID)

	obs := store.WithObserver(f.writes)
	f.ctrl = lifecycle.New(f.eng, lifecycle.Stores{
		Auth:    store.NewAuthFileStore(f.dir, obs),
		Cursor:  store.NewCursorFileStore(f.dir, obs),
		Secrets: store.NewSecretChatFileStore(f.dir, obs),
	}, f.acceptor, policy, opts...)
	f.ctrl.Attach()
	return f
}

func (f *fixture) request(t *testing.T, id domain.SecretChatID, peer domain.UserID) {
	t.Helper()
	require.NoError(t, f.eng.CreateSecretChat(id, ourID, peer, "bob"))
	require.NoError(t, f.eng.RequestSecretChat(id))
	f.ctrl.Drain(context.Background())
}

func (f *fixture) stored(t *testing.T) []domain.SecretChat {
	t.Helper()
	chats, _, err := store.NewSecretChatFileStore(f.dir).LoadSecretChats()
	require.NoError(t, err)
	return chats
}

func TestCursorFlush_WritesOnceWhenDirty(t *testing.T) {
	f := newFixture(t, domain.AcceptNever)

	f.eng.SetPts(10)
	f.eng.SetQts(3)
	f.ctrl.Drain(context.Background())

	wrote, err := f.ctrl.PersistCursorIfDirty()
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = f.ctrl.PersistCursorIfDirty()
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, f.writes.count(store.CursorFile))

	c, found, err := store.NewCursorFileStore(f.dir).LoadCursor()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.Cursor{Pts: 10, Qts: 3}, c)
}

func TestMessageReceived_MarksCursorDirty(t *testing.T) {
	f := newFixture(t, domain.AcceptNever)

	f.eng.MessageReceived()
	f.ctrl.Drain(context.Background())

	wrote, err := f.ctrl.PersistCursorIfDirty()
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestAcceptAlways_ActivatesAndPersists(t *testing.T) {
	f := newFixture(t, domain.AcceptAlways)

	f.request(t, 5, 200)

	chat, ok := f.eng.SecretChat(5)
	require.True(t, ok)
	assert.Equal(t, domain.ChatActive, chat.State)
	assert.EqualValues(t, 77, chat.KeyFingerprint)
	assert.Equal(t, f.acceptor.key, chat.Key)
	assert.True(t, f.ctrl.CanSend(5))

	stored := f.stored(t)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.SecretChatID(5), stored[0].ID)
	assert.Equal(t, map[domain.SecretChatID]domain.UserID{5: 200}, f.ctrl.Roster())
}

func TestAcceptAlways_AcceptFailureLeavesRequest(t *testing.T) {
	f := newFixture(t, domain.AcceptAlways)
	f.acceptor.err = errors.New("network down")

	f.request(t, 5, 200)

	chat, _ := f.eng.SecretChat(5)
	assert.Equal(t, domain.ChatRequested, chat.State)
	assert.False(t, f.ctrl.CanSend(5))
	assert.Empty(t, f.stored(t))
}

func TestAcceptNever_IgnoresRequest(t *testing.T) {
	f := newFixture(t, domain.AcceptNever)

	f.request(t, 5, 200)

	assert.Zero(t, f.acceptor.calls)
	assert.Empty(t, f.ctrl.Pending())
	chat, _ := f.eng.SecretChat(5)
	assert.Equal(t, domain.ChatRequested, chat.State)
}

func TestAsk_DeclineDeletesAndDropsRoster(t *testing.T) {
	f := newFixture(t, domain.AcceptAskEachTime)

	f.request(t, 5, 200)
	require.Len(t, f.ctrl.Pending(), 1)
	assert.Contains(t, f.ctrl.Roster(), domain.SecretChatID(5))

	require.NoError(t, f.ctrl.Resolve(context.Background(), 5, domain.DecisionDecline))
	f.ctrl.Drain(context.Background())

	chat, _ := f.eng.SecretChat(5)
	assert.Equal(t, domain.ChatDeleted, chat.State)
	assert.Empty(t, f.ctrl.Roster())
	assert.Empty(t, f.ctrl.Pending())
	assert.Zero(t, f.acceptor.calls)
}

func TestAsk_ResolveTwice(t *testing.T) {
	f := newFixture(t, domain.AcceptAskEachTime)
	f.request(t, 5, 200)

	require.NoError(t, f.ctrl.Resolve(context.Background(), 5, domain.DecisionAccept))
	err := f.ctrl.Resolve(context.Background(), 5, domain.DecisionAccept)
	assert.ErrorIs(t, err, lifecycle.ErrNoPendingDecision)
	assert.Equal(t, 1, f.acceptor.calls)
}

func TestAsk_PrompterAnswerIsApplied(t *testing.T) {
	f := newFixture(t, domain.AcceptAskEachTime,
		lifecycle.WithPrompter(&fakePrompter{answer: domain.DecisionAccept}))

	f.request(t, 5, 200)

	require.Eventually(t, func() bool {
		f.ctrl.Drain(context.Background())
		return f.ctrl.CanSend(5)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.stored(t), 1)
}

func TestSecretFile_OnlyActiveChats(t *testing.T) {
	f := newFixture(t, domain.AcceptAskEachTime)

	f.request(t, 5, 200)
	f.request(t, 6, 300)
	require.NoError(t, f.ctrl.Resolve(context.Background(), 6, domain.DecisionAccept))
	f.ctrl.Drain(context.Background())

	stored := f.stored(t)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.SecretChatID(6), stored[0].ID)
}

func TestActiveFieldChange_FlushedPeriodically(t *testing.T) {
	f := newFixture(t, domain.AcceptAlways)
	f.request(t, 5, 200)
	before := f.writes.count(store.SecretFile)

	require.NoError(t, f.eng.SetChatTitle(5, "Bob B."))
	f.ctrl.Drain(context.Background())
	assert.Equal(t, before, f.writes.count(store.SecretFile))

	wrote, err := f.ctrl.PersistSecretChatsIfDirty()
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, "Bob B.", f.stored(t)[0].Name)

	wrote, err = f.ctrl.PersistSecretChatsIfDirty()
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestRekeyCommit_ForcesWrite(t *testing.T) {
	f := newFixture(t, domain.AcceptAlways)
	f.request(t, 5, 200)
	before := f.writes.count(store.SecretFile)

	var next domain.SecretKey
	next[0] = 0x42
	require.NoError(t, f.eng.SetRekeyPhase(5, domain.RekeyAccepted))
	require.NoError(t, f.eng.SetChatKey(5, next, 99))
	f.ctrl.Drain(context.Background())
	assert.Equal(t, before, f.writes.count(store.SecretFile))

	require.NoError(t, f.eng.SetRekeyPhase(5, domain.RekeyCommitted))
	f.ctrl.Drain(context.Background())
	assert.Equal(t, before+1, f.writes.count(store.SecretFile))
	assert.Equal(t, next, f.stored(t)[0].Key)
}

func TestWorkingShard_PersistedOnlyWhenSigned(t *testing.T) {
	f := newFixture(t, domain.AcceptNever)
	f.eng.SetShardOption(1, "10.0.0.1", 443)
	f.eng.SetShardOption(2, "10.0.0.2", 443)

	f.eng.SetWorkingShard(1)
	f.ctrl.Drain(context.Background())
	assert.Zero(t, f.writes.count(store.AuthFile))

	var key domain.AuthKey
	key[0] = 1
	require.NoError(t, f.eng.SetAuthKey(2, 11, key))
	require.NoError(t, f.eng.SetSigned(2))
	f.eng.SetWorkingShard(2)
	f.ctrl.Drain(context.Background())
	assert.Equal(t, 1, f.writes.count(store.AuthFile))

	snap, found, err := store.NewAuthFileStore(f.dir).LoadAuth()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.ShardID(2), snap.Working)
	assert.Equal(t, ourID, snap.OurID)
}

func TestResync_RebuildsRosterFromRestore(t *testing.T) {
	f := newFixture(t, domain.AcceptNever)

	unmute := f.eng.Mute()
	require.NoError(t, f.eng.CreateSecretChat(5, ourID, 200, "bob"))
	require.NoError(t, f.eng.CreateSecretChat(6, 300, ourID, "carol"))
	require.NoError(t, f.eng.CreateSecretChat(7, ourID, 400, "dave"))
	require.NoError(t, f.eng.DeleteSecretChat(7))
	unmute()
	f.ctrl.Drain(context.Background())
	assert.Empty(t, f.ctrl.Roster())

	f.ctrl.Resync()
	assert.Equal(t, map[domain.SecretChatID]domain.UserID{5: 200, 6: 300}, f.ctrl.Roster())
}

func TestRun_FlushesOnShutdown(t *testing.T) {
	f := newFixture(t, domain.AcceptNever)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx, time.Hour) }()

	f.eng.SetSeq(9)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	c, found, err := store.NewCursorFileStore(f.dir).LoadCursor()
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 9, c.Seq)
}

func TestRun_PeriodicFlush(t *testing.T) {
	f := newFixture(t, domain.AcceptNever)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = f.ctrl.Run(ctx, 10*time.Millisecond) }()
	f.eng.SetDate(1234)

	require.Eventually(t, func() bool {
		return f.writes.count(store.CursorFile) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStartSecretChat_WaitsThenPersistsOnceActive(t *testing.T) {
	req := &fakeRequester{chat: domain.SecretChat{ID: 9, Name: "bob", Date: 1700, Layer: 46, AccessHash: 5150}}
	f := newFixture(t, domain.AcceptAlways, lifecycle.WithRequester(req))

	chat, err := f.ctrl.StartSecretChat(context.Background(), 200)
	require.NoError(t, err)
	f.ctrl.Drain(context.Background())

	assert.Equal(t, []domain.UserID{200}, req.peers)
	assert.Equal(t, domain.ChatWaiting, chat.State)
	assert.EqualValues(t, 5150, chat.AccessHash)
	assert.Equal(t, ourID, chat.AdminID)
	assert.False(t, f.ctrl.CanSend(9))
	assert.Equal(t, map[domain.SecretChatID]domain.UserID{9: 200}, f.ctrl.Roster())
	assert.Empty(t, f.stored(t))
	assert.Zero(t, f.acceptor.calls)

	var key domain.SecretKey
	key[0] = 0x5A
	require.NoError(t, f.eng.SetChatKey(9, key, 31))
	require.NoError(t, f.eng.SetChatDigest(9, crypto.KeyDigest(key)))
	require.NoError(t, f.eng.SetChatState(9, domain.ChatActive))
	f.ctrl.Drain(context.Background())

	assert.True(t, f.ctrl.CanSend(9))
	stored := f.stored(t)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.ChatActive, stored[0].State)
	assert.Equal(t, key, stored[0].Key)
	assert.EqualValues(t, 31, stored[0].KeyFingerprint)
	assert.Equal(t, crypto.KeyDigest(key), stored[0].Digest)
}

func TestStartSecretChat_RequestFailureLeavesNoChat(t *testing.T) {
	req := &fakeRequester{err: errors.New("peer not found")}
	f := newFixture(t, domain.AcceptAlways, lifecycle.WithRequester(req))

	_, err := f.ctrl.StartSecretChat(context.Background(), 404)
	require.Error(t, err)
	assert.Empty(t, f.eng.SecretChats())
	assert.Empty(t, f.ctrl.Roster())
}

func TestStartSecretChat_NeedsRequester(t *testing.T) {
	f := newFixture(t, domain.AcceptAlways)
	_, err := f.ctrl.StartSecretChat(context.Background(), 200)
	assert.Error(t, err)
}

func TestPeerDelete_RewritesSecretFileAtOnce(t *testing.T) {
	tests := []struct {
		name    string
		deliver func(t *testing.T, f *fixture)
	}{
		{
			name: "engine",
			deliver: func(t *testing.T, f *fixture) {
				require.NoError(t, f.eng.SetChatState(5, domain.ChatDeleted))
			},
		},
		{
			name: "difference",
			deliver: func(t *testing.T, f *fixture) {
				chat, _ := f.eng.SecretChat(5)
				chat.Key, chat.KeyFingerprint, chat.Digest = domain.SecretKey{}, 0, domain.Digest{}
				chat.State = domain.ChatDeleted
				require.NoError(t, store.MergeSecretChat(f.eng, chat))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, domain.AcceptAlways)
			f.request(t, 5, 200)
			f.request(t, 6, 300)
			require.Len(t, f.stored(t), 2)
			before := f.writes.count(store.SecretFile)

			tt.deliver(t, f)
			f.ctrl.Drain(context.Background())

			assert.Equal(t, before+1, f.writes.count(store.SecretFile))
			stored := f.stored(t)
			require.Len(t, stored, 1)
			assert.Equal(t, domain.SecretChatID(6), stored[0].ID)
			assert.Equal(t, map[domain.SecretChatID]domain.UserID{6: 300}, f.ctrl.Roster())
			assert.False(t, f.ctrl.CanSend(5))

			wrote, err := f.ctrl.PersistSecretChatsIfDirty()
			require.NoError(t, err)
			assert.False(t, wrote)

			reloaded := engine.New()
			n, err := store.RestoreSecretChats(store.NewSecretChatFileStore(f.dir), reloaded)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			_, ok := reloaded.SecretChat(5)
			assert.False(t, ok)
		})
	}
}

func TestRemove_DropsChatFromFile(t *testing.T) {
	f := newFixture(t, domain.AcceptAlways)
	f.request(t, 5, 200)
	require.Len(t, f.stored(t), 1)

	require.NoError(t, f.ctrl.Remove(5))
	f.ctrl.Drain(context.Background())

	assert.Empty(t, f.stored(t))
	assert.Empty(t, f.ctrl.Roster())
	chat, _ := f.eng.SecretChat(5)
	assert.Equal(t, domain.ChatDeleted, chat.State)
	assert.True(t, chat.Key.IsZero())
}
