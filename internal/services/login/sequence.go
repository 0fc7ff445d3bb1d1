package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tgstate/internal/crypto"
	"tgstate/internal/domain"
	"tgstate/internal/logging"
	"tgstate/internal/store"
)

// DefaultPollInterval is how often shard authorization is checked.
const DefaultPollInterval = 100 * time.Millisecond

// ErrCanceled is returned when the user backs out of a prompt.
var ErrCanceled = errors.New("login: canceled by user")

// Stores are the persisted state restored before login.
type Stores struct {
	Auth    domain.AuthStore
	Cursor  domain.CursorStore
	Secrets domain.SecretChatStore
}

// Options tunes a Sequence.
type Options struct {
	Phone        string
	TestMode     bool
	PollInterval time.Duration
	Logger       logging.Logger

	// Restored runs after the muted restore, before any network call.
	Restored func()
}

// Result summarizes a completed login.
type Result struct {
	UserID         domain.UserID
	AuthRestored   bool
	CursorRestored bool
	ChatsRestored  int
	SignedIn       bool
	Exported       int
	Difference     domain.Difference
	Dialogs        []domain.Dialog
	Contacts       []domain.Contact
}

// Sequence performs one login.
type Sequence struct {
	eng      domain.Engine
	stores   Stores
	remote   domain.Remote
	prompter domain.Prompter
	opts     Options
	log      logging.Logger
}

// New constructs a Sequence.
func New(
	eng domain.Engine,
	stores Stores,
	remote domain.Remote,
	prompter domain.Prompter,
	opts Options,
) *Sequence {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Sequence{
		eng:      eng,
		stores:   stores,
		remote:   remote,
		prompter: prompter,
		opts:     opts,
		log:      log.With("phone", opts.Phone),
	}
}

// Run executes the login.
//
// Steps:
//  1. Restore the auth, cursor and secret-chat stores with events muted.
//  2. Negotiate an authorization key with every shard that lacks one.
//  3. Sign in (or register) on the working shard unless already signed.
//  4. Export the authorization to every other unsigned shard, one at a time.
//  5. Write the auth store.
//  6. Fetch the difference since the restored cursor, the dialog list and
//     the contact list.
func (s *Sequence) Run(ctx context.Context) (Result, error) {
	res, err := s.Restore()
	if err != nil {
		return res, err
	}
	if s.opts.Restored != nil {
		s.opts.Restored()
	}

	if err := s.authorizeShards(ctx); err != nil {
		return res, fmt.Errorf("authorize shards: %w", err)
	}

	if !s.eng.Signed(s.eng.WorkingShard()) {
		if err := s.signIn(ctx); err != nil {
			return res, err
		}
		res.SignedIn = true
	}

	n, err := s.exportAuthorization(ctx)
	res.Exported = n
	if err != nil {
		return res, fmt.Errorf("export authorization: %w", err)
	}

	if err := s.stores.Auth.SaveAuth(store.SnapshotAuth(s.eng)); err != nil {
		return res, fmt.Errorf("write auth: %w", err)
	}
	res.UserID = s.eng.OurID()
	s.log.Info(ctx, "logged in", "user", res.UserID, "working", s.eng.WorkingShard())

	if err := s.sync(ctx, &res); err != nil {
		return res, err
	}
	return res, nil
}

// Restore loads the auth, cursor and secret-chat stores into the engine
// with events muted. Run calls it first; it is also usable on its own for
// offline inspection.
func (s *Sequence) Restore() (Result, error) {
	unmute := s.eng.Mute()
	defer unmute()

	var res Result
	var err error
	if res.AuthRestored, err = store.RestoreAuth(s.stores.Auth, s.eng, s.opts.TestMode); err != nil {
		return res, fmt.Errorf("restore auth: %w", err)
	}
	if res.CursorRestored, err = store.RestoreCursor(s.stores.Cursor, s.eng); err != nil {
		return res, fmt.Errorf("restore cursor: %w", err)
	}
	if res.ChatsRestored, err = store.RestoreSecretChats(s.stores.Secrets, s.eng); err != nil {
		return res, fmt.Errorf("restore secret chats: %w", err)
	}
	res.UserID = s.eng.OurID()
	return res, nil
}

// authorizeShards runs a handshake against every keyless shard and waits,
// polling, until all of them hold a key.
func (s *Sequence) authorizeShards(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sh := range s.eng.Shards() {
		if sh.HasKey {
			continue
		}
		g.Go(func() error {
			keyID, key, err := s.remote.Handshake(gctx, sh)
			if err != nil {
				return fmt.Errorf("%s: %w", sh.ID, err)
			}
			s.log.Debug(gctx, "shard authorized", "shard", sh.ID, "endpoint", sh.Endpoint())
			return s.eng.SetAuthKey(sh.ID, keyID, key)
		})
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			if err != nil {
				return err
			}
			done = nil
			if s.allAuthorized() {
				return nil
			}
		case <-ticker.C:
			if s.allAuthorized() {
				return nil
			}
		}
	}
}

func (s *Sequence) allAuthorized() bool {
	for _, sh := range s.eng.Shards() {
		if !s.eng.Authorized(sh.ID) {
			return false
		}
	}
	return true
}

// signIn requests a code and keeps prompting until the server accepts one.
func (s *Sequence) signIn(ctx context.Context) error {
	sent, err := s.remote.SendCode(ctx, s.opts.Phone)
	if err != nil {
		return fmt.Errorf("send code: %w", err)
	}

	var uid domain.UserID
	if sent.Registered {
		uid, err = s.signInRegistered(ctx, sent.Hash)
	} else {
		uid, err = s.signUp(ctx, sent.Hash)
	}
	if err != nil {
		return err
	}

	s.eng.SetOurID(uid)
	return s.eng.SetSigned(s.eng.WorkingShard())
}

func (s *Sequence) signInRegistered(ctx context.Context, hash string) (domain.UserID, error) {
	for {
		code, err := s.prompter.RequestCode(ctx, s.opts.Phone)
		if err != nil {
			return 0, promptErr(err)
		}
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		uid, err := s.remote.SignIn(ctx, s.opts.Phone, hash, code)
		if errors.Is(err, domain.ErrInvalidCode) {
			s.log.Warn(ctx, "code rejected, asking again")
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("sign in: %w", err)
		}
		return uid, nil
	}
}

func (s *Sequence) signUp(ctx context.Context, hash string) (domain.UserID, error) {
	for {
		reg, err := s.prompter.RequestRegistration(ctx, s.opts.Phone)
		if err != nil {
			return 0, promptErr(err)
		}
		reg.FirstName = strings.TrimSpace(reg.FirstName)
		reg.LastName = strings.TrimSpace(reg.LastName)
		reg.Code = strings.TrimSpace(reg.Code)
		if reg.FirstName == "" || reg.LastName == "" || reg.Code == "" {
			s.log.Warn(ctx, "registration incomplete, asking again")
			continue
		}
		uid, err := s.remote.SignUp(ctx, s.opts.Phone, hash, reg)
		if errors.Is(err, domain.ErrInvalidCode) {
			s.log.Warn(ctx, "code rejected, asking again")
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("sign up: %w", err)
		}
		return uid, nil
	}
}

func promptErr(err error) error {
	if errors.Is(err, domain.ErrPromptCanceled) {
		return ErrCanceled
	}
	return fmt.Errorf("prompt: %w", err)
}

func (s *Sequence) exportAuthorization(ctx context.Context) (int, error) {
	from, ok := s.eng.Shard(s.eng.WorkingShard())
	if !ok {
		return 0, fmt.Errorf("working shard %s has no endpoint", s.eng.WorkingShard())
	}
	n := 0
	for _, to := range s.eng.Shards() {
		if to.Signed || to.ID == from.ID {
			continue
		}
		if err := s.remote.ExportAuthorization(ctx, from, to); err != nil {
			return n, fmt.Errorf("%s: %w", to.ID, err)
		}
		if err := s.eng.SetSigned(to.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// sync applies the server difference to the engine and fetches the dialog
// and contact lists.
func (s *Sequence) sync(ctx context.Context, res *Result) error {
	diff, err := s.Sync(ctx)
	if err != nil {
		return err
	}
	res.Difference = diff

	if res.Dialogs, err = s.remote.GetDialogList(ctx); err != nil {
		return fmt.Errorf("get dialogs: %w", err)
	}
	if res.Contacts, err = s.remote.UpdateContactList(ctx); err != nil {
		return fmt.Errorf("update contacts: %w", err)
	}
	return nil
}

// Sync fetches the difference since the engine's cursor and applies it.
// Secret chats are merged so that local key material survives; a chat we
// requested that the peer has since accepted gets its key first.
func (s *Sequence) Sync(ctx context.Context) (domain.Difference, error) {
	diff, err := s.remote.GetDifference(ctx, s.eng.Cursor())
	if err != nil {
		return diff, fmt.Errorf("get difference: %w", err)
	}
	for _, chat := range diff.SecretChats {
		if err := s.applySecretChat(ctx, chat); err != nil {
			return diff, fmt.Errorf("apply secret chat %s: %w", chat.ID, err)
		}
	}
	for range diff.Messages {
		s.eng.MessageReceived()
	}
	s.eng.SetSeq(diff.Cursor.Seq)
	s.eng.SetPts(diff.Cursor.Pts)
	s.eng.SetQts(diff.Cursor.Qts)
	s.eng.SetDate(diff.Cursor.Date)
	return diff, nil
}

func (s *Sequence) applySecretChat(ctx context.Context, chat domain.SecretChat) error {
	cur, ok := s.eng.SecretChat(chat.ID)
	if ok && cur.State == domain.ChatWaiting && chat.State == domain.ChatActive {
		key, fp, err := s.remote.CompleteSecretChat(ctx, cur)
		if err != nil {
			return fmt.Errorf("complete: %w", err)
		}
		defer crypto.Wipe(key[:])
		if err := s.eng.SetChatKey(chat.ID, key, fp); err != nil {
			return err
		}
		if err := s.eng.SetChatDigest(chat.ID, crypto.KeyDigest(key)); err != nil {
			return err
		}
	}

	err := store.MergeSecretChat(s.eng, chat)
	if errors.Is(err, store.ErrKeyless) {
		s.log.Warn(ctx, "secret chat active remotely but no key is held here", "chat", chat.ID)
		return nil
	}
	return err
}
