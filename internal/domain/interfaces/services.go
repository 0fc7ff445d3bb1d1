package interfaces

import (
	"context"

	domaintypes "tgstate/internal/domain/types"
)

// Prompter collects human input during login and secret-chat acceptance.
//
// A prompter returns ErrPromptCanceled (or an error wrapping it) when the
// user backs out.
type Prompter interface {
	RequestCode(ctx context.Context, phone string) (string, error)
	RequestRegistration(ctx context.Context, phone string) (domaintypes.Registration, error)
	ConfirmSecretChat(ctx context.Context, chat domaintypes.SecretChat) (domaintypes.Decision, error)
}

// LifecycleService reacts to engine events and owns persistence of the
// cursor and secret-chat stores.
type LifecycleService interface {
	HandleEvent(ctx context.Context, ev domaintypes.Event)
	PersistCursorIfDirty() (bool, error)
	PersistSecretChatsIfDirty() (bool, error)
}
