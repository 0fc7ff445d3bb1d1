package authclient

import "tgstate/internal/domain"

// Routes served by the authorization server.
const (
	RouteHandshake     = "/handshake"
	RouteSendCode      = "/auth/send-code"
	RouteSignIn        = "/auth/sign-in"
	RouteSignUp        = "/auth/sign-up"
	RouteExport        = "/auth/export"
	RouteAcceptSecret  = "/secret/accept"
	RouteRequestSecret = "/secret/request"
	RouteConfirmSecret = "/secret/confirm"
	RouteDifference    = "/updates/difference"
	RouteDialogs       = "/dialogs"
	RouteContacts      = "/contacts"
	RouteInjectRequest = "/dev/secret-request"
	RouteInjectMessage = "/dev/message"
	RouteInjectAccept  = "/dev/secret-accept"
	RouteInjectDelete  = "/dev/secret-delete"
)

// CodeInvalid is the error code of a rejected confirmation code.
const CodeInvalid = "invalid_code"

type HandshakeRequest struct {
	Shard        int32  `json:"shard"`
	ClientPublic []byte `json:"client_public"`
}

type HandshakeResponse struct {
	ServerPublic []byte `json:"server_public"`
	KeyID        int64  `json:"key_id"`
}

type SendCodeRequest struct {
	Phone string `json:"phone"`
}

type SendCodeResponse struct {
	Registered bool   `json:"registered"`
	Hash       string `json:"hash"`
}

type SignInRequest struct {
	Phone     string `json:"phone"`
	Hash      string `json:"hash"`
	Code      string `json:"code"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type SignInResponse struct {
	UserID int64 `json:"user_id"`
}

type ExportRequest struct {
	FromKeyID int64 `json:"from_key_id"`
	ToKeyID   int64 `json:"to_key_id"`
}

type AcceptRequest struct {
	ChatID     int32  `json:"chat_id"`
	AccessHash int64  `json:"access_hash"`
	Public     []byte `json:"public"`
}

type AcceptResponse struct {
	PeerPublic  []byte `json:"peer_public"`
	Fingerprint int64  `json:"fingerprint"`
}

// SecretRequest opens a chat with Peer. Public is our half of the exchange.
type SecretRequest struct {
	Peer   int64  `json:"peer"`
	Public []byte `json:"public"`
}

// ConfirmRequest fetches the peer's half of an accepted chat we requested.
// The response is an AcceptResponse.
type ConfirmRequest struct {
	ChatID     int32 `json:"chat_id"`
	AccessHash int64 `json:"access_hash"`
}

// Chat is a secret chat as carried in a difference.
type Chat struct {
	ID         int32  `json:"id"`
	UserID     int64  `json:"user_id"`
	AdminID    int64  `json:"admin_id"`
	Name       string `json:"name"`
	Date       int32  `json:"date"`
	TTL        int32  `json:"ttl"`
	Layer      int32  `json:"layer"`
	AccessHash int64  `json:"access_hash"`
	State      string `json:"state"`
}

type Cursor struct {
	Pts  int32 `json:"pts"`
	Qts  int32 `json:"qts"`
	Seq  int32 `json:"seq"`
	Date int32 `json:"date"`
}

type DifferenceResponse struct {
	Cursor      Cursor `json:"cursor"`
	Messages    int    `json:"messages"`
	SecretChats []Chat `json:"secret_chats"`
}

type Dialog struct {
	Peer   string `json:"peer"`
	Unread int    `json:"unread"`
}

type Contact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// InjectRequest asks a development server to simulate an incoming
// secret-chat request from Peer to the signed-in user.
type InjectRequest struct {
	Peer int64  `json:"peer"`
	Name string `json:"name"`
}

// InjectChat makes a development server act as the peer of ChatID.
type InjectChat struct {
	ChatID int32 `json:"chat_id"`
}

type ErrorResponse struct {
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (c Cursor) Domain() domain.Cursor {
	return domain.Cursor{Pts: c.Pts, Qts: c.Qts, Seq: c.Seq, Date: c.Date}
}

func CursorFrom(c domain.Cursor) Cursor {
	return Cursor{Pts: c.Pts, Qts: c.Qts, Seq: c.Seq, Date: c.Date}
}

// Domain converts the wire chat. Unknown states map to waiting.
func (c Chat) Domain() domain.SecretChat {
	return domain.SecretChat{
		ID:         domain.SecretChatID(c.ID),
		UserID:     domain.UserID(c.UserID),
		AdminID:    domain.UserID(c.AdminID),
		Name:       c.Name,
		Date:       c.Date,
		TTL:        c.TTL,
		Layer:      c.Layer,
		AccessHash: c.AccessHash,
		State:      parseState(c.State),
	}
}

func parseState(s string) domain.ChatState {
	for _, st := range []domain.ChatState{
		domain.ChatNone, domain.ChatWaiting, domain.ChatRequested, domain.ChatActive, domain.ChatDeleted,
	} {
		if st.String() == s {
			return st
		}
	}
	return domain.ChatWaiting
}
