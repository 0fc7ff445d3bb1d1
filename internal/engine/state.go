package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"tgstate/internal/crypto"
	"tgstate/internal/domain"
)

var (
	// ErrNotCreated is returned by a secret-chat setter when the chat was
	// never created through CreateSecretChat.
	ErrNotCreated = errors.New("engine: secret chat not created")

	// ErrUnknownShard is returned when a shard id has no endpoint.
	ErrUnknownShard = errors.New("engine: unknown shard")

	// ErrZeroKey is returned when an all-zero key would replace the key of
	// an active chat.
	ErrZeroKey = errors.New("engine: zero key for active secret chat")
)

type chatEntry struct {
	chat    domain.SecretChat
	created bool

	pendingKey domain.SecretKey
	pendingFP  int64
	hasPending bool
}

// State is the engine's in-memory model. The zero value is not usable; call New.
type State struct {
	mu sync.Mutex

	shards   map[domain.ShardID]*domain.Shard
	maxShard domain.ShardID
	working  domain.ShardID
	ourID    domain.UserID

	cursor domain.Cursor
	chats  map[domain.SecretChatID]*chatEntry

	handler domain.UpdateHandler
	muted   int
}

func New() *State {
	return &State{
		shards: make(map[domain.ShardID]*domain.Shard),
		chats:  make(map[domain.SecretChatID]*chatEntry),
	}
}

// Subscribe installs h as the single update handler, replacing any other.
func (s *State) Subscribe(h domain.UpdateHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Mute drops events until the returned function runs. Calls nest.
func (s *State) Mute() func() {
	s.mu.Lock()
	s.muted++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.muted--
			s.mu.Unlock()
		})
	}
}

func (s *State) emit(ev domain.Event) {
	s.mu.Lock()
	h, muted := s.handler, s.muted > 0
	s.mu.Unlock()
	if h != nil && !muted {
		h(ev)
	}
}

// ---------- Shards ----------

// Shards returns a snapshot of every known shard ordered by id.
func (s *State) Shards() []domain.Shard {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Shard, 0, len(s.shards))
	for _, sh := range s.shards {
		out = append(out, *sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) Shard(id domain.ShardID) (domain.Shard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shards[id]
	if !ok {
		return domain.Shard{}, false
	}
	return *sh, true
}

// MaxShardID is the highest shard id ever configured.
func (s *State) MaxShardID() domain.ShardID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxShard
}

// SetShardOption records or moves a shard endpoint. Key material is kept.
func (s *State) SetShardOption(id domain.ShardID, host string, port int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shards[id]
	if !ok {
		sh = &domain.Shard{ID: id}
		s.shards[id] = sh
	}
	sh.Host, sh.Port = host, port
	if id > s.maxShard {
		s.maxShard = id
	}
}

func (s *State) SetAuthKey(id domain.ShardID, keyID int64, key domain.AuthKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shards[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownShard, id)
	}
	sh.KeyID, sh.Key, sh.HasKey = keyID, key, true
	return nil
}

func (s *State) SetSigned(id domain.ShardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shards[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownShard, id)
	}
	sh.Signed = true
	return nil
}

// Authorized reports whether the shard holds an authorization key.
func (s *State) Authorized(id domain.ShardID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shards[id]
	return ok && sh.HasKey
}

// Signed reports whether our account is logged in on the shard.
func (s *State) Signed(id domain.ShardID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shards[id]
	return ok && sh.Signed
}

func (s *State) WorkingShard() domain.ShardID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working
}

func (s *State) SetWorkingShard(id domain.ShardID) {
	s.mu.Lock()
	changed := s.working != id
	s.working = id
	s.mu.Unlock()

	if changed {
		s.emit(domain.Event{Kind: domain.EventWorkingShard, Shard: id})
	}
}

func (s *State) OurID() domain.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ourID
}

func (s *State) SetOurID(id domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ourID = id
}

// ---------- Cursor ----------

func (s *State) Cursor() domain.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *State) SetPts(v int32)  { s.setCursor(func(c *domain.Cursor) { c.Pts = v }) }
func (s *State) SetQts(v int32)  { s.setCursor(func(c *domain.Cursor) { c.Qts = v }) }
func (s *State) SetSeq(v int32)  { s.setCursor(func(c *domain.Cursor) { c.Seq = v }) }
func (s *State) SetDate(v int32) { s.setCursor(func(c *domain.Cursor) { c.Date = v }) }

func (s *State) setCursor(f func(*domain.Cursor)) {
	s.mu.Lock()
	f(&s.cursor)
	c := s.cursor
	s.mu.Unlock()
	s.emit(domain.Event{Kind: domain.EventCursor, Cursor: c})
}

// MessageReceived notes that a message was consumed from the update stream.
func (s *State) MessageReceived() {
	s.emit(domain.Event{Kind: domain.EventMessage, Cursor: s.Cursor()})
}

// ---------- Secret chats ----------

// SecretChats returns a snapshot of every chat, terminated ones included,
// ordered by id.
func (s *State) SecretChats() []domain.SecretChat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.SecretChat, 0, len(s.chats))
	for _, e := range s.chats {
		if e.created {
			out = append(out, e.chat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) SecretChat(id domain.SecretChatID) (domain.SecretChat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[id]
	if !ok || !e.created {
		return domain.SecretChat{}, false
	}
	return e.chat, true
}

// CreateSecretChat registers a chat. Calling it again for a live chat only
// refreshes the participants and name; a terminated chat starts over.
func (s *State) CreateSecretChat(id domain.SecretChatID, userID, adminID domain.UserID, name string) error {
	s.mu.Lock()
	e, ok := s.chats[id]
	if !ok || e.chat.State == domain.ChatDeleted {
		e = &chatEntry{}
		s.chats[id] = e
	}
	e.created = true
	e.chat.ID, e.chat.UserID, e.chat.AdminID, e.chat.Name = id, userID, adminID, name
	c := e.chat
	s.mu.Unlock()

	s.emit(domain.Event{Kind: domain.EventSecretChat, Chat: c, Flags: domain.UpdateCreated})
	return nil
}

// mutate applies f to a created chat and emits the resulting flags.
func (s *State) mutate(id domain.SecretChatID, f func(e *chatEntry) domain.UpdateFlags) error {
	s.mu.Lock()
	e, ok := s.chats[id]
	if !ok || !e.created {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotCreated, id)
	}
	flags := f(e)
	c := e.chat
	s.mu.Unlock()

	if flags != 0 {
		s.emit(domain.Event{Kind: domain.EventSecretChat, Chat: c, Flags: flags})
	}
	return nil
}

// RequestSecretChat marks an incoming request awaiting our decision.
func (s *State) RequestSecretChat(id domain.SecretChatID) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		e.chat.State = domain.ChatRequested
		return domain.UpdateRequested
	})
}

func (s *State) SetChatDate(id domain.SecretChatID, date int32) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		e.chat.Date = date
		return domain.UpdateFields
	})
}

func (s *State) SetChatTTL(id domain.SecretChatID, ttl int32) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		e.chat.TTL = ttl
		return domain.UpdateFields
	})
}

func (s *State) SetChatLayer(id domain.SecretChatID, layer int32) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		e.chat.Layer = layer
		return domain.UpdateFields
	})
}

// SetChatState moves the chat between lifecycle states. Reaching active
// flags the update as working, reaching terminated as deleted.
func (s *State) SetChatState(id domain.SecretChatID, state domain.ChatState) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		prev := e.chat.State
		e.chat.State = state
		switch {
		case state == domain.ChatDeleted && prev != domain.ChatDeleted:
			crypto.Wipe(e.chat.Key[:])
			return domain.UpdateDeleted
		case state == domain.ChatActive && prev != domain.ChatActive:
			return domain.UpdateWorking
		case state == domain.ChatRequested && prev != domain.ChatRequested:
			return domain.UpdateRequested
		default:
			return domain.UpdateFields
		}
	})
}

// SetChatKey installs key material. While a rekey is in flight the key is
// held aside and only replaces the live key on commit. An active chat never
// takes an all-zero key.
func (s *State) SetChatKey(id domain.SecretChatID, key domain.SecretKey, fingerprint int64) error {
	var refused error
	err := s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		if e.chat.State == domain.ChatActive && key.IsZero() {
			refused = fmt.Errorf("%w: %s", ErrZeroKey, id)
			return 0
		}
		switch e.chat.Rekey {
		case domain.RekeyRequested, domain.RekeyAccepted:
			e.pendingKey, e.pendingFP, e.hasPending = key, fingerprint, true
			return domain.UpdateRekey
		}
		e.chat.Key, e.chat.KeyFingerprint = key, fingerprint
		return domain.UpdateFields
	})
	if err != nil {
		return err
	}
	return refused
}

func (s *State) SetChatDigest(id domain.SecretChatID, digest domain.Digest) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		e.chat.Digest = digest
		return domain.UpdateFields
	})
}

func (s *State) SetChatSeq(id domain.SecretChatID, in, lastIn, out int32) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		e.chat.InSeq, e.chat.LastInSeq, e.chat.OutSeq = in, lastIn, out
		return domain.UpdateFields
	})
}

func (s *State) SetChatAccessHash(id domain.SecretChatID, hash int64) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		e.chat.AccessHash = hash
		return domain.UpdateAccessHash
	})
}

func (s *State) SetChatTitle(id domain.SecretChatID, name string) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		e.chat.Name = name
		return domain.UpdateTitle
	})
}

func (s *State) SetChatAdmin(id domain.SecretChatID, admin domain.UserID) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		e.chat.AdminID = admin
		return domain.UpdateAdmin
	})
}

// SetRekeyPhase advances key renegotiation. Committing swaps in the held
// key and reports the chat as working so it is persisted; the phase then
// returns to idle. Aborting (idle before commit) discards the held key.
func (s *State) SetRekeyPhase(id domain.SecretChatID, phase domain.RekeyPhase) error {
	return s.mutate(id, func(e *chatEntry) domain.UpdateFlags {
		switch phase {
		case domain.RekeyCommitted:
			if e.hasPending {
				crypto.Wipe(e.chat.Key[:])
				e.chat.Key, e.chat.KeyFingerprint = e.pendingKey, e.pendingFP
				crypto.Wipe(e.pendingKey[:])
				e.hasPending = false
			}
			e.chat.Rekey = domain.RekeyIdle
			return domain.UpdateRekey | domain.UpdateWorking
		case domain.RekeyIdle:
			if e.hasPending {
				crypto.Wipe(e.pendingKey[:])
				e.hasPending = false
			}
		}
		e.chat.Rekey = phase
		return domain.UpdateRekey
	})
}

// DeleteSecretChat terminates the chat locally.
func (s *State) DeleteSecretChat(id domain.SecretChatID) error {
	return s.SetChatState(id, domain.ChatDeleted)
}

// Compile-time assertion that State implements domain.Engine.
var _ domain.Engine = (*State)(nil)
