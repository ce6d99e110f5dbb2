package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/jmcleod/gatekey/localauth"
	"github.com/jmcleod/gatekey/secret"
)

// terminalPresenter collects challenge input interactively. PINs are read
// with echo disabled; the biometric factor degrades to a confirmation
// prompt since a CLI has no sensor to call.
type terminalPresenter struct {
	stdin *os.File
}

func newTerminalPresenter() *terminalPresenter {
	return &terminalPresenter{stdin: os.Stdin}
}

func (p *terminalPresenter) Present(ctx context.Context, c localauth.Challenge) (localauth.Response, error) {
	if err := ctx.Err(); err != nil {
		return localauth.Response{Canceled: true}, nil
	}
	if c.Attempt > 1 && c.PrevErr != nil {
		fmt.Fprintf(os.Stderr, "Attempt %d: %v\n", c.Attempt, c.PrevErr)
	}

	if c.Factor == localauth.FactorBiometric {
		return p.confirm("Confirm device presence [Y/n]: ")
	}

	switch c.Reason {
	case localauth.ReasonSetPin, localauth.ReasonChangePin:
		s, err := p.readSecret("New PIN: ")
		if err != nil || s == nil {
			return localauth.Response{Canceled: true}, err
		}
		return localauth.Response{NewSecret: s}, nil
	default:
		s, err := p.readSecret("PIN: ")
		if err != nil || s == nil {
			return localauth.Response{Canceled: true}, err
		}
		return localauth.Response{Secret: s}, nil
	}
}

// readSecret reads a secret without echo. An empty entry cancels.
func (p *terminalPresenter) readSecret(prompt string) (*secret.Secret, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(p.stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return secret.New(raw), nil
}

func (p *terminalPresenter) confirm(prompt string) (localauth.Response, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(p.stdin).ReadString('\n')
	if err != nil {
		return localauth.Response{}, fmt.Errorf("reading confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "n" || answer == "no" {
		return localauth.Response{Canceled: true}, nil
	}
	return localauth.Response{}, nil
}
