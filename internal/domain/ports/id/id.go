// Package id abstracts identifier generation so tests can produce
// predictable ids instead of depending on process-global randomness.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator mints identifiers. Aggregates get UUIDs; ledger transactions get
// ULIDs so the movement log sorts by creation time.
type Generator interface {
	NewID() string
	NewTransactionID() string
}

// Random is the production generator.
type Random struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewRandom builds a generator backed by crypto/rand with monotonic ULID
// entropy.
func NewRandom() *Random {
	return &Random{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *Random) NewID() string { return uuid.NewString() }

func (g *Random) NewTransactionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// Sequential mints "prefix-1", "prefix-2", ... for deterministic tests.
type Sequential struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func NewSequential(prefix string) *Sequential { return &Sequential{prefix: prefix} }

func (g *Sequential) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

func (g *Sequential) NewTransactionID() string { return g.NewID() }
