package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"tgstate/internal/crypto"
	"tgstate/internal/domain"
)

// HTTP talks to an authorization server at Base.
type HTTP struct {
	Base string
	HTTP *http.Client

	// requested holds our scalar for chats we opened until the peer accepts.
	// It lives only in memory; a waiting chat does not survive a restart.
	mu        sync.Mutex
	requested map[domain.SecretChatID]domain.ExchangePrivate
}

func NewHTTP(base string) *HTTP {
	return &HTTP{
		Base:      strings.TrimRight(base, "/"),
		HTTP:      http.DefaultClient,
		requested: make(map[domain.SecretChatID]domain.ExchangePrivate),
	}
}

// Handshake runs an X25519 exchange and expands the secret into the shard's
// authorization key. The key id is checked against the server's.
func (c *HTTP) Handshake(ctx context.Context, sh domain.Shard) (int64, domain.AuthKey, error) {
	priv, pub, err := crypto.NewExchange()
	if err != nil {
		return 0, domain.AuthKey{}, err
	}
	defer crypto.Wipe(priv[:])

	var resp HandshakeResponse
	if err := c.post(ctx, RouteHandshake, HandshakeRequest{Shard: int32(sh.ID), ClientPublic: pub[:]}, &resp); err != nil {
		return 0, domain.AuthKey{}, err
	}
	serverPub, err := crypto.ParseExchangePublic(resp.ServerPublic)
	if err != nil {
		return 0, domain.AuthKey{}, err
	}
	shared, err := crypto.Agree(priv, serverPub)
	if err != nil {
		return 0, domain.AuthKey{}, err
	}
	defer crypto.Wipe(shared[:])

	key, err := DeriveAuthKey(shared, sh.ID)
	if err != nil {
		return 0, domain.AuthKey{}, err
	}
	keyID := crypto.AuthKeyID(key)
	if keyID != resp.KeyID {
		return 0, domain.AuthKey{}, fmt.Errorf("handshake %s: key id mismatch", sh.ID)
	}
	return keyID, key, nil
}

func (c *HTTP) SendCode(ctx context.Context, phone string) (domain.SentCode, error) {
	var resp SendCodeResponse
	if err := c.post(ctx, RouteSendCode, SendCodeRequest{Phone: phone}, &resp); err != nil {
		return domain.SentCode{}, err
	}
	return domain.SentCode{Registered: resp.Registered, Hash: resp.Hash}, nil
}

func (c *HTTP) SignIn(ctx context.Context, phone, hash, code string) (domain.UserID, error) {
	var resp SignInResponse
	err := c.post(ctx, RouteSignIn, SignInRequest{Phone: phone, Hash: hash, Code: code}, &resp)
	return domain.UserID(resp.UserID), err
}

func (c *HTTP) SignUp(ctx context.Context, phone, hash string, reg domain.Registration) (domain.UserID, error) {
	var resp SignInResponse
	err := c.post(ctx, RouteSignUp, SignInRequest{
		Phone:     phone,
		Hash:      hash,
		Code:      reg.Code,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
	}, &resp)
	return domain.UserID(resp.UserID), err
}

func (c *HTTP) ExportAuthorization(ctx context.Context, from, to domain.Shard) error {
	return c.post(ctx, RouteExport, ExportRequest{FromKeyID: from.KeyID, ToKeyID: to.KeyID}, nil)
}

// AcceptSecretChat answers a request with a fresh X25519 public key and
// derives the chat key from the peer's.
func (c *HTTP) AcceptSecretChat(ctx context.Context, chat domain.SecretChat) (domain.SecretKey, int64, error) {
	priv, pub, err := crypto.NewExchange()
	if err != nil {
		return domain.SecretKey{}, 0, err
	}
	defer crypto.Wipe(priv[:])

	var resp AcceptResponse
	req := AcceptRequest{ChatID: int32(chat.ID), AccessHash: chat.AccessHash, Public: pub[:]}
	if err := c.post(ctx, RouteAcceptSecret, req, &resp); err != nil {
		return domain.SecretKey{}, 0, err
	}
	return finishExchange(chat.ID, priv, resp)
}

// RequestSecretChat opens a chat with peer. Our scalar is kept until
// CompleteSecretChat runs for the returned chat.
func (c *HTTP) RequestSecretChat(ctx context.Context, peer domain.UserID) (domain.SecretChat, error) {
	priv, pub, err := crypto.NewExchange()
	if err != nil {
		return domain.SecretChat{}, err
	}
	var resp Chat
	if err := c.post(ctx, RouteRequestSecret, SecretRequest{Peer: int64(peer), Public: pub[:]}, &resp); err != nil {
		crypto.Wipe(priv[:])
		return domain.SecretChat{}, err
	}
	chat := resp.Domain()

	c.mu.Lock()
	if c.requested == nil {
		c.requested = make(map[domain.SecretChatID]domain.ExchangePrivate)
	}
	c.requested[chat.ID] = priv
	c.mu.Unlock()
	return chat, nil
}

// CompleteSecretChat fetches the peer's half of a chat we requested and
// derives its key. It fails for a chat this client did not request.
func (c *HTTP) CompleteSecretChat(ctx context.Context, chat domain.SecretChat) (domain.SecretKey, int64, error) {
	c.mu.Lock()
	priv, ok := c.requested[chat.ID]
	c.mu.Unlock()
	if !ok {
		return domain.SecretKey{}, 0, fmt.Errorf("complete secret chat %s: not requested by this client", chat.ID)
	}

	var resp AcceptResponse
	req := ConfirmRequest{ChatID: int32(chat.ID), AccessHash: chat.AccessHash}
	if err := c.post(ctx, RouteConfirmSecret, req, &resp); err != nil {
		return domain.SecretKey{}, 0, err
	}
	key, fp, err := finishExchange(chat.ID, priv, resp)
	if err != nil {
		return key, fp, err
	}

	c.mu.Lock()
	delete(c.requested, chat.ID)
	c.mu.Unlock()
	crypto.Wipe(priv[:])
	return key, fp, nil
}

// finishExchange derives a chat key from our scalar and the peer's point
// and checks it against the fingerprint the server reported.
func finishExchange(id domain.SecretChatID, priv domain.ExchangePrivate, resp AcceptResponse) (domain.SecretKey, int64, error) {
	peer, err := crypto.ParseExchangePublic(resp.PeerPublic)
	if err != nil {
		return domain.SecretKey{}, 0, err
	}
	shared, err := crypto.Agree(priv, peer)
	if err != nil {
		return domain.SecretKey{}, 0, err
	}
	defer crypto.Wipe(shared[:])

	key, err := DeriveSecretKey(shared, id)
	if err != nil {
		return domain.SecretKey{}, 0, err
	}
	fp := crypto.KeyFingerprint(key[:])
	if fp != resp.Fingerprint {
		crypto.Wipe(key[:])
		return domain.SecretKey{}, 0, fmt.Errorf("secret chat %s: fingerprint mismatch", id)
	}
	return key, fp, nil
}

func (c *HTTP) GetDifference(ctx context.Context, from domain.Cursor) (domain.Difference, error) {
	var resp DifferenceResponse
	if err := c.post(ctx, RouteDifference, CursorFrom(from), &resp); err != nil {
		return domain.Difference{}, err
	}
	diff := domain.Difference{Cursor: resp.Cursor.Domain(), Messages: resp.Messages}
	for _, ch := range resp.SecretChats {
		diff.SecretChats = append(diff.SecretChats, ch.Domain())
	}
	return diff, nil
}

func (c *HTTP) GetDialogList(ctx context.Context) ([]domain.Dialog, error) {
	var resp []Dialog
	if err := c.getJSON(ctx, RouteDialogs, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Dialog, len(resp))
	for i, d := range resp {
		out[i] = domain.Dialog{Peer: d.Peer, Unread: d.Unread}
	}
	return out, nil
}

func (c *HTTP) UpdateContactList(ctx context.Context) ([]domain.Contact, error) {
	var resp []Contact
	if err := c.getJSON(ctx, RouteContacts, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Contact, len(resp))
	for i, ct := range resp {
		out[i] = domain.Contact{ID: domain.UserID(ct.ID), Name: ct.Name, Phone: ct.Phone}
	}
	return out, nil
}

// InjectSecretRequest asks a development server to simulate an incoming
// secret-chat request.
func (c *HTTP) InjectSecretRequest(ctx context.Context, peer domain.UserID, name string) error {
	return c.post(ctx, RouteInjectRequest, InjectRequest{Peer: int64(peer), Name: name}, nil)
}

// InjectSecretAccept makes a development server accept, as the peer, a
// chat this client requested.
func (c *HTTP) InjectSecretAccept(ctx context.Context, id domain.SecretChatID) error {
	return c.post(ctx, RouteInjectAccept, InjectChat{ChatID: int32(id)}, nil)
}

// InjectSecretDelete makes a development server terminate a chat as if the
// peer had deleted it.
func (c *HTTP) InjectSecretDelete(ctx context.Context, id domain.SecretChatID) error {
	return c.post(ctx, RouteInjectDelete, InjectChat{ChatID: int32(id)}, nil)
}

func (c *HTTP) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTP) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(req, resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func statusError(req *http.Request, resp *http.Response) error {
	var body ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)
	if body.Code == CodeInvalid {
		return domain.ErrInvalidCode
	}
	msg := body.Message
	if msg == "" {
		msg = body.Code
	}
	return fmt.Errorf("auth %s %s: %s: %s", strings.ToLower(req.Method), req.URL.Path, resp.Status, msg)
}

var _ domain.Remote = (*HTTP)(nil)
