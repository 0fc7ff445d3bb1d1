package types

// SentCode is the server reply to a verification code request.
type SentCode struct {
	Registered bool
	Hash       string
}

// Registration carries the fields needed to sign up an unregistered phone.
type Registration struct {
	FirstName string
	LastName  string
	Code      string
}

// Difference is the server reply to a get-difference request.
type Difference struct {
	Cursor      Cursor
	Messages    int
	SecretChats []SecretChat
}

// Dialog is a conversation summary from the dialog list.
type Dialog struct {
	Peer   string
	Unread int
}

// Contact is one entry in the remote contact list.
type Contact struct {
	ID    UserID
	Name  string
	Phone string
}
