package core

import "time"

// Challenge is what a client receives when it asks to authenticate
type Challenge struct {
	Address   string    // Normalized Ethereum address of the user
	Nonce     string    // Random nonce embedded in the message
	Message   string    // Exact text the wallet must sign
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// NonceRecord is the persisted state of an outstanding challenge nonce
type NonceRecord struct {
	Nonce         string    `json:"nonce"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Used          bool      `json:"used"`
}

// Expired reports whether the nonce can no longer be consumed at t
func (r *NonceRecord) Expired(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// RateLimitRecord tracks attempts for one identifier within one window
type RateLimitRecord struct {
	Identifier   string    `json:"identifier"`
	Attempts     int       `json:"attempts"`
	FirstAttempt time.Time `json:"first_attempt"`
	LastAttempt  time.Time `json:"last_attempt"`
	Blocked      bool      `json:"blocked"`
	WindowMs     int64     `json:"window_ms"`
}

// Window returns the window length of the record
func (r *RateLimitRecord) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

// WindowEnd returns the first instant outside the current window
func (r *RateLimitRecord) WindowEnd() time.Time {
	return r.FirstAttempt.Add(r.Window())
}

// Elapsed reports whether the window has ended at t. Instants slightly
// before FirstAttempt, as seen by a host with a lagging clock, still count
// as inside the window.
func (r *RateLimitRecord) Elapsed(t time.Time) bool {
	return !t.Before(r.WindowEnd())
}

// Decision is the outcome of a rate limit check
type Decision int

const (
	Allowed Decision = iota
	Blocked
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Identity is the result of a successful verification
type Identity struct {
	WalletAddress string
	VerifiedAt    time.Time
}

// Session represents an authenticated user session
type Session struct {
	ID        string    // Unique session identifier
	Address   string    // Ethereum address of the user
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session token expires
	Token     string    // Signed bearer token
}
