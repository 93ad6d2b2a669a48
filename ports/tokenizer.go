package ports

import "github.com/layer-3/farmgate/core"

// Tokenizer converts between verified identities and session tokens
type Tokenizer interface {
	IdentityToToken(identity *core.Identity) (*core.Session, error)
	TokenToSession(token string) (*core.Session, error)
}
