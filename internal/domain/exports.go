package domain

import (
	interfaces "tgstate/internal/domain/interfaces"
	types "tgstate/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	ShardID         = types.ShardID
	AuthKey         = types.AuthKey
	Shard           = types.Shard
	UserID          = types.UserID
	Cursor          = types.Cursor
	SecretChatID    = types.SecretChatID
	SecretKey       = types.SecretKey
	Digest          = types.Digest
	ExchangePrivate = types.ExchangePrivate
	ExchangePublic  = types.ExchangePublic
	SharedSecret    = types.SharedSecret
	ChatState       = types.ChatState
	RekeyPhase      = types.RekeyPhase
	SecretChat      = types.SecretChat
	UpdateFlags     = types.UpdateFlags
	EventKind       = types.EventKind
	Event           = types.Event
	AcceptPolicy    = types.AcceptPolicy
	Decision        = types.Decision
	SentCode        = types.SentCode
	Registration    = types.Registration
	Difference      = types.Difference
	Dialog          = types.Dialog
	Contact         = types.Contact
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	AuthSnapshot        = interfaces.AuthSnapshot
	AuthStore           = interfaces.AuthStore
	CursorStore         = interfaces.CursorStore
	SecretChatStore     = interfaces.SecretChatStore
	UpdateHandler       = interfaces.UpdateHandler
	ShardTable          = interfaces.ShardTable
	CursorTable         = interfaces.CursorTable
	SecretChatTable     = interfaces.SecretChatTable
	Engine              = interfaces.Engine
	Authenticator       = interfaces.Authenticator
	SecretChatAcceptor  = interfaces.SecretChatAcceptor
	SecretChatRequester = interfaces.SecretChatRequester
	Syncer              = interfaces.Syncer
	Remote              = interfaces.Remote
	Prompter            = interfaces.Prompter
	LifecycleService    = interfaces.LifecycleService
)

// Constants re-exported so callers rarely need the types package.
const (
	AuthKeySize   = types.AuthKeySize
	SecretKeySize = types.SecretKeySize
	DigestSize    = types.DigestSize

	ExchangeKeySize = types.ExchangeKeySize

	ChatNone      = types.ChatNone
	ChatWaiting   = types.ChatWaiting
	ChatRequested = types.ChatRequested
	ChatActive    = types.ChatActive
	ChatDeleted   = types.ChatDeleted

	RekeyIdle      = types.RekeyIdle
	RekeyRequested = types.RekeyRequested
	RekeyAccepted  = types.RekeyAccepted
	RekeyCommitted = types.RekeyCommitted

	UpdateCreated    = types.UpdateCreated
	UpdateDeleted    = types.UpdateDeleted
	UpdateRequested  = types.UpdateRequested
	UpdateWorking    = types.UpdateWorking
	UpdateTitle      = types.UpdateTitle
	UpdateAdmin      = types.UpdateAdmin
	UpdateMembers    = types.UpdateMembers
	UpdateAccessHash = types.UpdateAccessHash
	UpdateFields     = types.UpdateFields
	UpdateRekey      = types.UpdateRekey

	EventSecretChat   = types.EventSecretChat
	EventCursor       = types.EventCursor
	EventMessage      = types.EventMessage
	EventWorkingShard = types.EventWorkingShard

	AcceptAskEachTime = types.AcceptAskEachTime
	AcceptAlways      = types.AcceptAlways
	AcceptNever       = types.AcceptNever

	DecisionDecline = types.DecisionDecline
	DecisionAccept  = types.DecisionAccept
)

// ParseAcceptPolicy re-exports types.ParseAcceptPolicy.
var ParseAcceptPolicy = types.ParseAcceptPolicy
