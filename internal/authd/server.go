package authd

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tgstate/internal/authclient"
	"tgstate/internal/crypto"
	"tgstate/internal/domain"
	"tgstate/internal/logging"
)

// DefaultCode is the confirmation code accepted when none is configured.
const DefaultCode = "12345"

// Recorder counts handled requests.
type Recorder interface {
	Request(route, outcome string)
}

// Config seeds a Server.
type Config struct {
	// Code is the confirmation code every sign-in must present.
	Code string
	// Users maps already registered phones to display names.
	Users map[string]string
	// AutoAccept makes the simulated peer accept every chat requested of it
	// as soon as it is requested.
	AutoAccept bool
}

type user struct {
	id    int64
	name  string
	phone string
}

// chat is one secret chat. The server plays the peer's side of the
// exchange: peerPriv/peerPub are the peer's half, clientPub ours once known.
type chat struct {
	wire      authclient.Chat
	outgoing  bool
	peerPriv  domain.ExchangePrivate
	peerPub   domain.ExchangePublic
	clientPub domain.ExchangePublic
	fp        int64
	changed   int32
}

// Server holds the simulated account database.
type Server struct {
	code       string
	autoAccept bool
	log        logging.Logger
	rec        Recorder

	mu       sync.Mutex
	keys     map[int64]domain.ShardID
	users    map[string]*user
	hashes   map[string]string
	current  *user
	nextUser int64
	pts      int32
	chats    map[int32]*chat
	nextChat int32
	messages []int32
}

// New builds a Server. rec may be nil.
func New(cfg Config, log logging.Logger, rec Recorder) *Server {
	if cfg.Code == "" {
		cfg.Code = DefaultCode
	}
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		code:       cfg.Code,
		autoAccept: cfg.AutoAccept,
		log:        log,
		rec:        rec,
		keys:       make(map[int64]domain.ShardID),
		users:      make(map[string]*user),
		hashes:     make(map[string]string),
		chats:      make(map[int32]*chat),
		nextUser:   1000,
		nextChat:   1,
	}
	phones := make([]string, 0, len(cfg.Users))
	for p := range cfg.Users {
		phones = append(phones, p)
	}
	sort.Strings(phones)
	for _, p := range phones {
		s.register(p, cfg.Users[p])
	}
	return s
}

// userByID finds a registered account. The caller holds s.mu.
func (s *Server) userByID(id int64) (*user, bool) {
	for _, u := range s.users {
		if u.id == id {
			return u, true
		}
	}
	return nil, false
}

func (s *Server) register(phone, name string) *user {
	s.nextUser++
	u := &user{id: s.nextUser, name: name, phone: phone}
	s.users[phone] = u
	return u
}

// apiError is written as an ErrorResponse with its status.
type apiError struct {
	status int
	code   string
	msg    string
}

func (e *apiError) Error() string { return e.code + ": " + e.msg }

func badRequest(code, msg string) error {
	return &apiError{status: http.StatusBadRequest, code: code, msg: msg}
}

func notFound(code, msg string) error {
	return &apiError{status: http.StatusNotFound, code: code, msg: msg}
}

var errAuthRequired = &apiError{status: http.StatusUnauthorized, code: "auth_required", msg: "not signed in"}

// Handler routes every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(method, path string, h func(r *http.Request) (any, error)) {
		mux.HandleFunc(method+" "+path, s.serve(path, h))
	}
	route(http.MethodPost, authclient.RouteHandshake, s.handshake)
	route(http.MethodPost, authclient.RouteSendCode, s.sendCode)
	route(http.MethodPost, authclient.RouteSignIn, s.signIn)
	route(http.MethodPost, authclient.RouteSignUp, s.signUp)
	route(http.MethodPost, authclient.RouteExport, s.export)
	route(http.MethodPost, authclient.RouteAcceptSecret, s.accept)
	route(http.MethodPost, authclient.RouteRequestSecret, s.requestSecret)
	route(http.MethodPost, authclient.RouteConfirmSecret, s.confirmSecret)
	route(http.MethodPost, authclient.RouteDifference, s.difference)
	route(http.MethodGet, authclient.RouteDialogs, s.dialogs)
	route(http.MethodGet, authclient.RouteContacts, s.contacts)
	route(http.MethodPost, authclient.RouteInjectRequest, s.injectRequest)
	route(http.MethodPost, authclient.RouteInjectMessage, s.injectMessage)
	route(http.MethodPost, authclient.RouteInjectAccept, s.injectAccept)
	route(http.MethodPost, authclient.RouteInjectDelete, s.injectDelete)
	return mux
}

func (s *Server) serve(path string, h func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer r.Body.Close()

		out, err := h(r)
		status := http.StatusOK
		outcome := "ok"
		if err != nil {
			var ae *apiError
			if !errors.As(err, &ae) {
				ae = &apiError{status: http.StatusInternalServerError, code: "internal", msg: err.Error()}
			}
			status, outcome = ae.status, ae.code
			out = authclient.ErrorResponse{Code: ae.code, Message: ae.msg}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if out != nil {
			_ = json.NewEncoder(w).Encode(out)
		}
		if s.rec != nil {
			s.rec.Request(path, outcome)
		}
		s.log.Debug(r.Context(), "request",
			"method", r.Method, "path", path, "remote", r.RemoteAddr,
			"status", status, "duration", time.Since(start))
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("bad_json", err.Error())
	}
	return nil
}

func (s *Server) handshake(r *http.Request) (any, error) {
	var req authclient.HandshakeRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	clientPub, err := crypto.ParseExchangePublic(req.ClientPublic)
	if err != nil {
		return nil, badRequest("bad_key", err.Error())
	}
	priv, pub, err := crypto.NewExchange()
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(priv[:])
	shared, err := crypto.Agree(priv, clientPub)
	if err != nil {
		return nil, badRequest("bad_key", err.Error())
	}
	shard := domain.ShardID(req.Shard)
	key, err := authclient.DeriveAuthKey(shared, shard)
	if err != nil {
		return nil, err
	}
	keyID := crypto.AuthKeyID(key)
	crypto.Wipe(key[:])

	s.mu.Lock()
	s.keys[keyID] = shard
	s.mu.Unlock()
	return authclient.HandshakeResponse{ServerPublic: pub[:], KeyID: keyID}, nil
}

func (s *Server) sendCode(r *http.Request) (any, error) {
	var req authclient.SendCodeRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if req.Phone == "" {
		return nil, badRequest("phone_invalid", "empty phone")
	}
	hash := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[hash] = req.Phone
	_, registered := s.users[req.Phone]
	s.log.Info(r.Context(), "code sent", "phone", req.Phone, "registered", registered)
	return authclient.SendCodeResponse{Registered: registered, Hash: hash}, nil
}

// checkCode validates a hash and code pair. The caller holds s.mu.
func (s *Server) checkCode(phone, hash, code string) error {
	if p, ok := s.hashes[hash]; !ok || p != phone {
		return badRequest("hash_invalid", "unknown code hash")
	}
	if code != s.code {
		return badRequest(authclient.CodeInvalid, "wrong code")
	}
	return nil
}

func (s *Server) signIn(r *http.Request) (any, error) {
	var req authclient.SignInRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCode(req.Phone, req.Hash, req.Code); err != nil {
		return nil, err
	}
	u, ok := s.users[req.Phone]
	if !ok {
		return nil, badRequest("phone_unoccupied", "phone not registered")
	}
	delete(s.hashes, req.Hash)
	s.current = u
	return authclient.SignInResponse{UserID: u.id}, nil
}

func (s *Server) signUp(r *http.Request) (any, error) {
	var req authclient.SignInRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if req.FirstName == "" || req.LastName == "" {
		return nil, badRequest("name_invalid", "first and last name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCode(req.Phone, req.Hash, req.Code); err != nil {
		return nil, err
	}
	if _, ok := s.users[req.Phone]; ok {
		return nil, badRequest("phone_occupied", "phone already registered")
	}
	delete(s.hashes, req.Hash)
	u := s.register(req.Phone, req.FirstName+" "+req.LastName)
	s.current = u
	return authclient.SignInResponse{UserID: u.id}, nil
}

func (s *Server) export(r *http.Request) (any, error) {
	var req authclient.ExportRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, errAuthRequired
	}
	for _, id := range []int64{req.FromKeyID, req.ToKeyID} {
		if _, ok := s.keys[id]; !ok {
			return nil, notFound("key_unknown", "unknown authorization key")
		}
	}
	return nil, nil
}

func (s *Server) accept(r *http.Request) (any, error) {
	var req authclient.AcceptRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	pub, err := crypto.ParseExchangePublic(req.Public)
	if err != nil {
		return nil, badRequest("bad_key", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.chat(req.ChatID, req.AccessHash)
	if err != nil {
		return nil, err
	}
	if c.outgoing || c.wire.State != domain.ChatRequested.String() {
		return nil, badRequest("chat_state", "secret chat is "+c.wire.State)
	}
	c.clientPub = pub
	if err := s.complete(c); err != nil {
		return nil, err
	}
	return authclient.AcceptResponse{PeerPublic: c.peerPub[:], Fingerprint: c.fp}, nil
}

// chat looks up a chat by id and access hash. The caller holds s.mu.
func (s *Server) chat(id int32, accessHash int64) (*chat, error) {
	c, ok := s.chats[id]
	if !ok || c.wire.AccessHash != accessHash {
		return nil, notFound("chat_unknown", "unknown secret chat")
	}
	return c, nil
}

// complete derives the chat key from the peer's scalar and our point,
// records its fingerprint and marks the chat active. The caller holds s.mu.
func (s *Server) complete(c *chat) error {
	shared, err := crypto.Agree(c.peerPriv, c.clientPub)
	if err != nil {
		return badRequest("bad_key", err.Error())
	}
	defer crypto.Wipe(shared[:])
	key, err := authclient.DeriveSecretKey(shared, domain.SecretChatID(c.wire.ID))
	if err != nil {
		return err
	}
	c.fp = crypto.KeyFingerprint(key[:])
	crypto.Wipe(key[:])
	crypto.Wipe(c.peerPriv[:])

	s.pts++
	c.wire.State = domain.ChatActive.String()
	c.changed = s.pts
	return nil
}

// newChat registers a chat between the signed-in user and peer. The caller
// holds s.mu.
func (s *Server) newChat(adminID, userID int64, name string) (*chat, error) {
	priv, pub, err := crypto.NewExchange()
	if err != nil {
		return nil, err
	}
	id := s.nextChat
	s.nextChat++
	s.pts++
	hash := uuid.New()
	c := &chat{
		wire: authclient.Chat{
			ID:         id,
			UserID:     userID,
			AdminID:    adminID,
			Name:       name,
			Date:       int32(time.Now().Unix()),
			Layer:      17,
			AccessHash: int64(binary.LittleEndian.Uint64(hash[:8])),
		},
		peerPriv: priv,
		peerPub:  pub,
		changed:  s.pts,
	}
	s.chats[id] = c
	return c, nil
}

// requestSecret opens a chat from the signed-in user to another account.
func (s *Server) requestSecret(r *http.Request) (any, error) {
	var req authclient.SecretRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	pub, err := crypto.ParseExchangePublic(req.Public)
	if err != nil {
		return nil, badRequest("bad_key", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, errAuthRequired
	}
	peer, ok := s.userByID(req.Peer)
	if !ok || peer.id == s.current.id {
		return nil, notFound("user_unknown", "no such peer")
	}
	c, err := s.newChat(s.current.id, peer.id, peer.name)
	if err != nil {
		return nil, err
	}
	c.outgoing = true
	c.clientPub = pub
	c.wire.State = domain.ChatWaiting.String()
	resp := c.wire

	if s.autoAccept {
		if err := s.complete(c); err != nil {
			return nil, err
		}
	}
	s.log.Info(r.Context(), "secret chat opened", "chat", c.wire.ID, "peer", peer.id, "accepted", s.autoAccept)
	return resp, nil
}

// confirmSecret hands the requester the peer's point once the peer accepted.
func (s *Server) confirmSecret(r *http.Request) (any, error) {
	var req authclient.ConfirmRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.chat(req.ChatID, req.AccessHash)
	if err != nil {
		return nil, err
	}
	if !c.outgoing || c.wire.State != domain.ChatActive.String() {
		return nil, badRequest("chat_state", "secret chat is "+c.wire.State)
	}
	return authclient.AcceptResponse{PeerPublic: c.peerPub[:], Fingerprint: c.fp}, nil
}

func (s *Server) difference(r *http.Request) (any, error) {
	var from authclient.Cursor
	if err := decode(r, &from); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := authclient.DifferenceResponse{
		Cursor: authclient.Cursor{Pts: s.pts, Qts: from.Qts, Seq: s.pts, Date: int32(time.Now().Unix())},
	}
	for _, at := range s.messages {
		if at > from.Pts {
			resp.Messages++
		}
	}
	ids := make([]int32, 0, len(s.chats))
	for id, c := range s.chats {
		if c.changed > from.Pts {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		resp.SecretChats = append(resp.SecretChats, s.chats[id].wire)
	}
	return resp, nil
}

func (s *Server) dialogs(*http.Request) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []authclient.Dialog{}
	ids := make([]int32, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		out = append(out, authclient.Dialog{Peer: s.chats[id].wire.Name})
	}
	return out, nil
}

func (s *Server) contacts(*http.Request) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []authclient.Contact{}
	for _, u := range s.users {
		if s.current != nil && u.id == s.current.id {
			continue
		}
		out = append(out, authclient.Contact{ID: u.id, Name: u.name, Phone: u.phone})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Server) injectRequest(r *http.Request) (any, error) {
	var req authclient.InjectRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, errAuthRequired
	}
	c, err := s.newChat(req.Peer, s.current.id, req.Name)
	if err != nil {
		return nil, err
	}
	c.wire.State = domain.ChatRequested.String()
	s.log.Info(r.Context(), "secret chat requested", "chat", c.wire.ID, "peer", req.Peer)
	return c.wire, nil
}

// injectAccept plays the peer accepting a chat the user requested.
func (s *Server) injectAccept(r *http.Request) (any, error) {
	var req authclient.InjectChat
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[req.ChatID]
	if !ok {
		return nil, notFound("chat_unknown", "unknown secret chat")
	}
	if !c.outgoing || c.wire.State != domain.ChatWaiting.String() {
		return nil, badRequest("chat_state", "secret chat is "+c.wire.State)
	}
	return nil, s.complete(c)
}

// injectDelete plays the peer terminating a chat.
func (s *Server) injectDelete(r *http.Request) (any, error) {
	var req authclient.InjectChat
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[req.ChatID]
	if !ok {
		return nil, notFound("chat_unknown", "unknown secret chat")
	}
	crypto.Wipe(c.peerPriv[:])
	s.pts++
	c.wire.State = domain.ChatDeleted.String()
	c.changed = s.pts
	return nil, nil
}

func (s *Server) injectMessage(*http.Request) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pts++
	s.messages = append(s.messages, s.pts)
	return nil, nil
}

// Serve runs the server on addr until ctx is done, then shuts it down.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
