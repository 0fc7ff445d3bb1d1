package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tgstate/internal/crypto"
	"tgstate/internal/domain"
	"tgstate/internal/logging"
	"tgstate/internal/store"
)

// DefaultFlushInterval is how often dirty stores are written.
const DefaultFlushInterval = 5 * time.Second

// ErrNoPendingDecision is returned by Resolve for a chat that is not
// waiting on the user.
var ErrNoPendingDecision = errors.New("lifecycle: no pending decision for secret chat")

// Stores groups the stores the controller writes.
type Stores struct {
	Auth    domain.AuthStore
	Cursor  domain.CursorStore
	Secrets domain.SecretChatStore
}

// FlushObserver is told when a periodic flush had nothing to write.
type FlushObserver interface {
	FlushSkipped(store string)
}

// Option configures a Controller.
type Option func(*Controller)

// WithPrompter asks p about incoming requests under AcceptAskEachTime.
// Without a prompter, requests wait for Resolve.
func WithPrompter(p domain.Prompter) Option {
	return func(c *Controller) { c.prompter = p }
}

// WithRequester lets StartSecretChat open chats with peers.
func WithRequester(r domain.SecretChatRequester) Option {
	return func(c *Controller) { c.requester = r }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Controller) { c.log = l }
}

func WithFlushObserver(o FlushObserver) Option {
	return func(c *Controller) { c.observer = o }
}

// Controller owns the persistence and roster decisions made in response to
// engine events.
//
// Events are queued by Enqueue and processed one at a time by Drain (or by
// Run, which calls Drain). Handling an event may call back into the
// engine; the resulting events are queued behind the current one rather
// than handled re-entrantly.
type Controller struct {
	eng       domain.Engine
	stores    Stores
	acceptor  domain.SecretChatAcceptor
	requester domain.SecretChatRequester
	policy    domain.AcceptPolicy
	prompter  domain.Prompter
	log       logging.Logger
	observer  FlushObserver

	inbox *inbox

	mu           sync.Mutex
	cursorDirty  bool
	secretsDirty bool
	pending      map[domain.SecretChatID]domain.SecretChat
	roster       map[domain.SecretChatID]domain.UserID
}

// New builds a Controller. Call Attach to start receiving engine events.
func New(
	eng domain.Engine,
	stores Stores,
	acceptor domain.SecretChatAcceptor,
	policy domain.AcceptPolicy,
	opts ...Option,
) *Controller {
	c := &Controller{
		eng:      eng,
		stores:   stores,
		acceptor: acceptor,
		policy:   policy,
		log:      logging.Nop(),
		inbox:    newInbox(),
		pending:  make(map[domain.SecretChatID]domain.SecretChat),
		roster:   make(map[domain.SecretChatID]domain.UserID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach subscribes the controller to the engine.
func (c *Controller) Attach() {
	c.eng.Subscribe(c.Enqueue)
}

// Enqueue queues an engine event. It never blocks.
func (c *Controller) Enqueue(ev domain.Event) {
	c.inbox.push(item{ev: &ev})
}

// PostDecision queues the user's answer for a pending request.
func (c *Controller) PostDecision(id domain.SecretChatID, d domain.Decision) {
	c.inbox.push(item{decision: &decision{id: id, answer: d}})
}

// Drain processes queued items until the queue is empty.
func (c *Controller) Drain(ctx context.Context) {
	for {
		it, ok := c.inbox.pop()
		if !ok {
			return
		}
		switch {
		case it.ev != nil:
			c.HandleEvent(ctx, *it.ev)
		case it.decision != nil:
			if err := c.Resolve(ctx, it.decision.id, it.decision.answer); err != nil {
				c.log.Warn(ctx, "secret chat decision failed", "chat", it.decision.id, "err", err)
			}
		}
	}
}

// Run drains events as they arrive and flushes dirty stores every interval
// until ctx is done. The stores are flushed one last time before it
// returns.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			c.Drain(context.WithoutCancel(ctx))
			return c.Flush(context.WithoutCancel(ctx))
		case <-c.inbox.ready:
			c.Drain(ctx)
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				c.log.Error(ctx, "periodic flush failed", "err", err)
			}
		}
	}
}

// HandleEvent applies one engine event. It must not be called while
// another event is being handled.
func (c *Controller) HandleEvent(ctx context.Context, ev domain.Event) {
	switch ev.Kind {
	case domain.EventCursor, domain.EventMessage:
		c.mu.Lock()
		c.cursorDirty = true
		c.mu.Unlock()
	case domain.EventWorkingShard:
		c.persistAuth(ctx)
	case domain.EventSecretChat:
		c.handleSecretChat(ctx, ev.Chat, ev.Flags)
	}
}

func (c *Controller) handleSecretChat(ctx context.Context, chat domain.SecretChat, flags domain.UpdateFlags) {
	log := c.log.With("chat", chat.ID, "flags", flags)

	if flags.Has(domain.UpdateDeleted) || chat.State == domain.ChatDeleted {
		c.mu.Lock()
		delete(c.roster, chat.ID)
		delete(c.pending, chat.ID)
		c.mu.Unlock()
	} else {
		c.mu.Lock()
		c.roster[chat.ID] = chat.Peer(c.eng.OurID())
		c.mu.Unlock()
	}

	if flags.Has(domain.UpdateWorking | domain.UpdateDeleted) {
		if err := c.persistSecrets(); err != nil {
			log.Error(ctx, "write secret chats failed", "err", err)
		}
	} else if chat.State == domain.ChatActive &&
		flags.Has(domain.UpdateFields|domain.UpdateTitle|domain.UpdateAdmin|domain.UpdateAccessHash|domain.UpdateMembers) {
		c.mu.Lock()
		c.secretsDirty = true
		c.mu.Unlock()
	}

	if flags.Has(domain.UpdateRequested) && chat.State == domain.ChatRequested {
		c.onRequest(ctx, chat)
	}
}

// onRequest applies the accept policy to an incoming request.
func (c *Controller) onRequest(ctx context.Context, chat domain.SecretChat) {
	switch c.policy {
	case domain.AcceptAlways:
		if err := c.accept(ctx, chat); err != nil {
			c.log.Warn(ctx, "accept secret chat failed", "chat", chat.ID, "err", err)
		}
	case domain.AcceptNever:
		c.log.Info(ctx, "secret chat request ignored", "chat", chat.ID, "peer", chat.Peer(c.eng.OurID()))
	default:
		c.mu.Lock()
		_, asked := c.pending[chat.ID]
		c.pending[chat.ID] = chat
		c.mu.Unlock()
		if asked || c.prompter == nil {
			return
		}
		go func() {
			d, err := c.prompter.ConfirmSecretChat(ctx, chat)
			if err != nil {
				c.log.Warn(ctx, "secret chat prompt failed", "chat", chat.ID, "err", err)
				return
			}
			c.PostDecision(chat.ID, d)
		}()
	}
}

// Resolve applies the user's answer to a pending request. Declining
// deletes the chat and removes it from the roster.
func (c *Controller) Resolve(ctx context.Context, id domain.SecretChatID, d domain.Decision) error {
	c.mu.Lock()
	chat, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPendingDecision, id)
	}

	if d == domain.DecisionAccept {
		return c.accept(ctx, chat)
	}
	return c.Remove(id)
}

// Remove terminates a chat on the user's behalf and drops it from the
// roster. The peer is not told.
func (c *Controller) Remove(id domain.SecretChatID) error {
	c.mu.Lock()
	delete(c.roster, id)
	delete(c.pending, id)
	c.mu.Unlock()
	return c.eng.DeleteSecretChat(id)
}

// StartSecretChat asks the server for a chat with peer. The chat waits for
// the peer in the engine and is first written once it becomes active.
func (c *Controller) StartSecretChat(ctx context.Context, peer domain.UserID) (domain.SecretChat, error) {
	if c.requester == nil {
		return domain.SecretChat{}, errors.New("lifecycle: no requester configured")
	}
	chat, err := c.requester.RequestSecretChat(ctx, peer)
	if err != nil {
		return domain.SecretChat{}, fmt.Errorf("request secret chat: %w", err)
	}

	steps := []func() error{
		func() error { return c.eng.CreateSecretChat(chat.ID, chat.UserID, chat.AdminID, chat.Name) },
		func() error { return c.eng.SetChatDate(chat.ID, chat.Date) },
		func() error { return c.eng.SetChatTTL(chat.ID, chat.TTL) },
		func() error { return c.eng.SetChatLayer(chat.ID, chat.Layer) },
		func() error { return c.eng.SetChatAccessHash(chat.ID, chat.AccessHash) },
		func() error { return c.eng.SetChatState(chat.ID, domain.ChatWaiting) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return domain.SecretChat{}, err
		}
	}
	c.log.Info(ctx, "secret chat requested", "chat", chat.ID, "peer", peer)
	cur, _ := c.eng.SecretChat(chat.ID)
	return cur, nil
}

func (c *Controller) accept(ctx context.Context, chat domain.SecretChat) error {
	if c.acceptor == nil {
		return errors.New("lifecycle: no acceptor configured")
	}
	if cur, ok := c.eng.SecretChat(chat.ID); ok {
		chat = cur
	}
	key, fp, err := c.acceptor.AcceptSecretChat(ctx, chat)
	if err != nil {
		return err
	}
	defer crypto.Wipe(key[:])

	if err := c.eng.SetChatKey(chat.ID, key, fp); err != nil {
		return err
	}
	if err := c.eng.SetChatDigest(chat.ID, crypto.KeyDigest(key)); err != nil {
		return err
	}
	return c.eng.SetChatState(chat.ID, domain.ChatActive)
}

// Pending lists requests waiting on the user, ordered by id.
func (c *Controller) Pending() []domain.SecretChat {
	c.mu.Lock()
	out := make([]domain.SecretChat, 0, len(c.pending))
	for _, chat := range c.pending {
		out = append(out, chat)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Roster returns the peer of every chat the user can see.
func (c *Controller) Roster() map[domain.SecretChatID]domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[domain.SecretChatID]domain.UserID, len(c.roster))
	for id, peer := range c.roster {
		out[id] = peer
	}
	return out
}

// Resync rebuilds the roster from the engine. Restores run muted, so this
// is how restored chats become visible.
func (c *Controller) Resync() {
	ourID := c.eng.OurID()
	roster := make(map[domain.SecretChatID]domain.UserID)
	for _, chat := range c.eng.SecretChats() {
		if chat.State != domain.ChatDeleted {
			roster[chat.ID] = chat.Peer(ourID)
		}
	}
	c.mu.Lock()
	c.roster = roster
	c.mu.Unlock()
}

// CanSend reports whether messages may be sent into the chat.
func (c *Controller) CanSend(id domain.SecretChatID) bool {
	chat, ok := c.eng.SecretChat(id)
	return ok && chat.State == domain.ChatActive
}

// PersistCursorIfDirty writes the cursor when it changed since the last
// write. It reports whether a write happened.
func (c *Controller) PersistCursorIfDirty() (bool, error) {
	c.mu.Lock()
	dirty := c.cursorDirty
	c.mu.Unlock()
	if !dirty {
		c.skipped(store.CursorFile)
		return false, nil
	}
	if err := c.stores.Cursor.SaveCursor(c.eng.Cursor()); err != nil {
		return false, err
	}
	c.mu.Lock()
	c.cursorDirty = false
	c.mu.Unlock()
	return true, nil
}

// PersistSecretChatsIfDirty writes the secret chats when a persisted field
// of an active chat changed since the last write.
func (c *Controller) PersistSecretChatsIfDirty() (bool, error) {
	c.mu.Lock()
	dirty := c.secretsDirty
	c.mu.Unlock()
	if !dirty {
		c.skipped(store.SecretFile)
		return false, nil
	}
	if err := c.persistSecrets(); err != nil {
		return false, err
	}
	return true, nil
}

// Flush writes every dirty store.
func (c *Controller) Flush(ctx context.Context) error {
	_, cerr := c.PersistCursorIfDirty()
	_, serr := c.PersistSecretChatsIfDirty()
	return errors.Join(cerr, serr)
}

func (c *Controller) persistSecrets() error {
	n, err := c.stores.Secrets.SaveSecretChats(c.eng.SecretChats())
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.secretsDirty = false
	c.mu.Unlock()
	c.log.Debug(context.Background(), "secret chats written", "count", n)
	return nil
}

// persistAuth writes the shard table once the working shard is signed in.
// Before that there is nothing worth keeping.
func (c *Controller) persistAuth(ctx context.Context) {
	if c.stores.Auth == nil || !c.eng.Signed(c.eng.WorkingShard()) {
		c.log.Debug(ctx, "working shard changed before sign-in, not persisted", "shard", c.eng.WorkingShard())
		return
	}
	if err := c.stores.Auth.SaveAuth(store.SnapshotAuth(c.eng)); err != nil {
		c.log.Error(ctx, "write auth failed", "err", err)
	}
}

func (c *Controller) skipped(name string) {
	if c.observer != nil {
		c.observer.FlushSkipped(name)
	}
}

// Compile-time assertion that Controller implements domain.LifecycleService.
var _ domain.LifecycleService = (*Controller)(nil)
