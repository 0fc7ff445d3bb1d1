// Package prompt implements domain.Prompter on a terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"tgstate/internal/domain"
)

// Terminal asks questions on out and reads answers from in. Prompts are
// serialized, so a secret-chat question never interleaves with a code
// prompt.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer

	// readSecret reads a line without echo. Nil when in is not a terminal.
	readSecret func() (string, error)
}

// New builds a Terminal. When in is an interactive terminal, confirmation
// codes are read without echo.
func New(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		t.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return string(b), err
		}
	}
	return t
}

func (t *Terminal) RequestCode(ctx context.Context, phone string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ask(ctx, fmt.Sprintf("Enter the confirmation code sent to %s: ", phone), true)
}

func (t *Terminal) RequestRegistration(ctx context.Context, phone string) (domain.Registration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "%s is not registered yet. Enter your name and the code you received.\n", phone)
	var reg domain.Registration
	var err error
	if reg.FirstName, err = t.ask(ctx, "First name: ", false); err != nil {
		return reg, err
	}
	if reg.LastName, err = t.ask(ctx, "Last name: ", false); err != nil {
		return reg, err
	}
	if reg.Code, err = t.ask(ctx, "Confirmation code: ", true); err != nil {
		return reg, err
	}
	return reg, nil
}

func (t *Terminal) ConfirmSecretChat(ctx context.Context, chat domain.SecretChat) (domain.Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "%s (chat %s) wants to start a secret chat.\n", displayName(chat), chat.ID)
	fmt.Fprintln(t.out, "Its messages will only be readable on this device. Decline to accept it elsewhere.")
	answer, err := t.ask(ctx, "Accept? [y/N]: ", false)
	if err != nil {
		return domain.DecisionDecline, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return domain.DecisionAccept, nil
	}
	return domain.DecisionDecline, nil
}

// Passphrase reads a backup passphrase, without echo on a terminal.
func (t *Terminal) Passphrase(ctx context.Context, label string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ask(ctx, label, true)
}

func displayName(chat domain.SecretChat) string {
	if chat.Name != "" {
		return chat.Name
	}
	return fmt.Sprintf("user %d", chat.AdminID)
}

// ask prints label and reads one trimmed line. End of input cancels.
func (t *Terminal) ask(ctx context.Context, label string, secret bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(t.out, label)

	if secret && t.readSecret != nil {
		s, err := t.readSecret()
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrPromptCanceled, err)
		}
		return strings.TrimSpace(s), nil
	}

	line, err := t.in.ReadString('\n')
	if errors.Is(err, io.EOF) && line == "" {
		return "", domain.ErrPromptCanceled
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var _ domain.Prompter = (*Terminal)(nil)
