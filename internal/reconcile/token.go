package reconcile

import (
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator produces holder tokens for lock acquisition. Implemented
// by UUIDv7Tokens (production) and FixedTokens (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Tokens generates time-sortable UUIDv7 holder tokens. Sortability
// makes interleaved lock logs from multiple consumers easy to read.
//
// Stateless and safe for concurrent use.
type UUIDv7Tokens struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Tokens) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedTokens returns predetermined tokens in order. Tests use it to make
// lock ownership assertions exact.
//
// Generate panics once the tokens run out; a test asking for more holders
// than it declared is misconfigured.
type FixedTokens struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokens creates a generator over the given sequence.
func NewFixedTokens(tokens ...string) *FixedTokens {
	return &FixedTokens{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedTokens: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
