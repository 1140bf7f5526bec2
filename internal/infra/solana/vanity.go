// internal/infra/solana/vanity.go
package solana

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/blocto/solana-go-sdk/types"
	"golang.org/x/sync/errgroup"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	ErrInvalidPrefix   = errors.New("vanity: prefix contains characters outside the base-58 alphabet")
	ErrVanityExhausted = errors.New("vanity: attempt budget exhausted")
)

// Candidates is a lazy sequence of keypairs drawn from a random source.
// Two sequences built over identically seeded readers yield the same keys.
type Candidates struct {
	src      io.Reader
	attempts uint64
}

func NewCandidates(src io.Reader) *Candidates {
	if src == nil {
		src = rand.Reader
	}
	return &Candidates{src: src}
}

func (c *Candidates) Next() (types.Account, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(c.src, seed); err != nil {
		return types.Account{}, fmt.Errorf("vanity: read seed: %w", err)
	}
	c.attempts++
	return types.AccountFromBytes(ed25519.NewKeyFromSeed(seed))
}

// Attempts is the number of keys drawn so far.
func (c *Candidates) Attempts() uint64 { return c.attempts }

// Matcher is the stop predicate of a search.
type Matcher func(types.Account) bool

// PrefixMatcher matches addresses starting with prefix.
func PrefixMatcher(prefix string, ignoreCase bool) (Matcher, error) {
	if prefix == "" {
		return func(types.Account) bool { return true }, nil
	}
	for _, r := range prefix {
		if !strings.ContainsRune(base58Alphabet, r) {
			if ignoreCase && (strings.ContainsRune(base58Alphabet, unicode.ToUpper(r)) || strings.ContainsRune(base58Alphabet, unicode.ToLower(r))) {
				continue
			}
			return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, r)
		}
	}
	if ignoreCase {
		want := strings.ToLower(prefix)
		return func(a types.Account) bool {
			return strings.HasPrefix(strings.ToLower(a.PublicKey.ToBase58()), want)
		}, nil
	}
	return func(a types.Account) bool {
		return strings.HasPrefix(a.PublicKey.ToBase58(), prefix)
	}, nil
}

type SearchOptions struct {
	Workers int
	// MaxAttempts bounds the total keys drawn across workers; 0 is unbounded.
	MaxAttempts uint64
	Match       Matcher
	// Source returns worker i's random source; nil uses crypto/rand.
	Source func(worker int) io.Reader
}

type SearchResult struct {
	Account  types.Account
	Attempts uint64
}

// Search runs independent candidate sequences in parallel until one matches,
// the attempt budget is spent, or ctx is done.
func Search(ctx context.Context, opts SearchOptions) (SearchResult, error) {
	if opts.Match == nil {
		return SearchResult{}, errors.New("vanity: match predicate is nil")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		attempts atomic.Uint64
		hit      atomic.Bool
		once     sync.Once
		found    types.Account
		errFound = errors.New("vanity: found")
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		var src io.Reader
		if opts.Source != nil {
			src = opts.Source(i)
		}
		seq := NewCandidates(src)
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				n := attempts.Add(1)
				if opts.MaxAttempts > 0 && n > opts.MaxAttempts {
					return ErrVanityExhausted
				}
				acc, err := seq.Next()
				if err != nil {
					return err
				}
				if opts.Match(acc) {
					once.Do(func() {
						found = acc
						hit.Store(true)
					})
					return errFound
				}
			}
		})
	}

	err := g.Wait()
	total := attempts.Load()
	if opts.MaxAttempts > 0 && total > opts.MaxAttempts {
		total = opts.MaxAttempts
	}
	if hit.Load() {
		return SearchResult{Account: found, Attempts: total}, nil
	}
	if err == nil {
		err = ErrVanityExhausted
	}
	return SearchResult{Attempts: total}, err
}
