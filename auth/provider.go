package auth

import "context"

// Provider is one protocol variant in the authentication chain. Providers
// never mutate a session directly: authentication and logout results come
// back as a Delta the manager applies atomically, and a provider never
// touches another provider's status.
type Provider interface {
	Type() ProviderType

	// InputRequired reports whether the provider still needs challenge
	// input before Authenticate can run.
	InputRequired(s *Session) bool

	// Authenticate performs the protocol exchange. Network-bound variants
	// must be kept off any UI-blocking path by the caller.
	Authenticate(ctx context.Context, req *Request, s *Session) (*Delta, error)

	// IsValid reports whether the session is still trustworthy. It never
	// fails open: malformed or ambiguous state reads as invalid. With
	// online set the provider may consult the network.
	IsValid(ctx context.Context, s *Session, online bool) bool

	// Logout performs the provider's share of a logout walk.
	Logout(ctx context.Context, s *Session, flags LogoutFlags) (*Delta, error)

	// Cancel aborts an in-flight Authenticate at the next checkpoint.
	Cancel()
}
