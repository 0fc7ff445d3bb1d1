package domain

import "errors"

var (
	// ErrPromptCanceled is returned by a Prompter when the user cancels.
	ErrPromptCanceled = errors.New("prompt canceled")

	// ErrInvalidCode is returned by SignIn or SignUp when the server rejects
	// the confirmation code. The caller may ask for another one.
	ErrInvalidCode = errors.New("invalid confirmation code")
)
