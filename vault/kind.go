// Package vault implements the encrypted credential store. Every logical
// record is addressed by a caller key plus a fixed suffix identifying the
// record kind, and sealed under a per-record key derived from the master
// key held by the gating keystore. A side registry of live entry ids makes
// bulk deletion possible over a backend with no enumerate-by-prefix
// primitive.
package vault

// Kind identifies the record kind behind an entry. The suffix keeps
// unrelated subsystems sharing one caller key from colliding.
type Kind string

const (
	// KindAuthContext holds a serialized authenticated session.
	KindAuthContext Kind = "_AuthContext"
	// KindConfigURI holds the configuration endpoint a session was built from.
	KindConfigURI Kind = "_ConfigURI"
	// KindRetryCount holds the offline-login failure counter.
	KindRetryCount Kind = "_retryCount"
	// KindCredential holds a generic stored credential record.
	KindCredential Kind = "_Credential"
)

// entryID forms the stored record id for a caller key and kind.
func entryID(key string, kind Kind) string {
	return key + string(kind)
}
