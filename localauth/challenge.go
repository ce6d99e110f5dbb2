package localauth

import (
	"context"

	"github.com/jmcleod/gatekey/secret"
)

// Reason tags a challenge with the operation that triggered it.
type Reason string

const (
	ReasonSetPin    Reason = "SetPin"
	ReasonLogin     Reason = "Login"
	ReasonChangePin Reason = "ChangePin"
)

// Challenge is a request for secret input, delivered to the external
// presenter. Attempt carries the 1-based attempt number within the current
// operation's retry loop; PrevErr carries the previous attempt's failure so
// the UI can explain why it is asking again.
type Challenge struct {
	Reason  Reason
	Factor  FactorType
	Attempt int
	PrevErr error
}

// Response is the presenter's answer to a challenge. Exactly one of
// Canceled or the relevant secret fields is expected to be set. The engine
// takes ownership of the secrets and destroys them when the operation
// completes.
type Response struct {
	Canceled bool
	// Secret is the current secret, for Login-reason challenges and the
	// re-proof step of ChangePin.
	Secret *secret.Secret
	// NewSecret is the secret being established, for SetPin and ChangePin
	// reasons.
	NewSecret *secret.Secret
}

// Presenter renders challenges to the user. It is the only collaborator
// expected to block for human-scale time; implementations should honor
// context cancellation.
type Presenter interface {
	Present(ctx context.Context, c Challenge) (Response, error)
}

func (r Response) destroy() {
	if r.Secret != nil {
		r.Secret.Destroy()
	}
	if r.NewSecret != nil {
		r.NewSecret.Destroy()
	}
}
