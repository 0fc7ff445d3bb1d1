package types

import "strings"

// UpdateFlags describe which aspects of a peer changed in one engine update.
type UpdateFlags uint32

const (
	UpdateCreated    UpdateFlags = 1 << 0
	UpdateDeleted    UpdateFlags = 1 << 1
	UpdateRequested  UpdateFlags = 1 << 8
	UpdateWorking    UpdateFlags = 1 << 9
	UpdateTitle      UpdateFlags = 1 << 11
	UpdateAdmin      UpdateFlags = 1 << 12
	UpdateMembers    UpdateFlags = 1 << 13
	UpdateAccessHash UpdateFlags = 1 << 14
	// UpdateFields covers setters with no flag of their own (ttl, layer, seq, date).
	UpdateFields UpdateFlags = 1 << 16
	UpdateRekey  UpdateFlags = 1 << 17
)

// Has reports whether any bit of f is set in u.
func (u UpdateFlags) Has(f UpdateFlags) bool { return u&f != 0 }

var flagNames = []struct {
	f    UpdateFlags
	name string
}{
	{UpdateCreated, "created"},
	{UpdateDeleted, "deleted"},
	{UpdateRequested, "requested"},
	{UpdateWorking, "working"},
	{UpdateTitle, "title"},
	{UpdateAdmin, "admin"},
	{UpdateMembers, "members"},
	{UpdateAccessHash, "access_hash"},
	{UpdateFields, "fields"},
	{UpdateRekey, "rekey"},
}

func (u UpdateFlags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if u&fn.f != 0 {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// EventKind distinguishes the payload of an Event.
type EventKind int

const (
	EventSecretChat EventKind = iota + 1
	EventCursor
	EventMessage
	EventWorkingShard
)

// Event is one ordered notification from the protocol engine.
type Event struct {
	Kind   EventKind
	Chat   SecretChat
	Flags  UpdateFlags
	Cursor Cursor
	Shard  ShardID
}
