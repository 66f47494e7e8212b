package id

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/msiSibs/urlShortener/internal/core"
)

// DefaultLength is used when a generator is built with a non-positive length.
const DefaultLength = 6

// Source yields signed 64-bit random draws. Implementations must be safe for
// concurrent use.
type Source interface {
	Int64() int64
}

// lockedSource serialises access to a seeded math/rand generator.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSource returns a deterministic Source for the given seed.
func NewSource(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *lockedSource) Int64() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.r.Uint64())
}

type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source { return cryptoSource{} }

func (cryptoSource) Int64() int64 {
	var b [8]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = crand.Read(b[:])
	return int64(binary.BigEndian.Uint64(b[:]))
}

// Generator implements core.CodeGenerator by encoding random draws.
type Generator struct {
	length int
	src    Source
}

// NewGenerator creates a code generator with a fixed target length (DefaultLength if <=0).
func NewGenerator(length int, src Source) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if src == nil {
		src = NewCryptoSource()
	}
	return &Generator{length: length, src: src}
}

// Length returns the target code length.
func (g *Generator) Length() int { return g.length }

// NewCode draws a random number, pads its encoding to the target length and
// keeps the leading characters when the encoding is longer.
func (g *Generator) NewCode(_ context.Context) (string, error) {
	code := EncodeWithMinLength(abs63(g.src.Int64()), g.length)
	if len(code) > g.length {
		code = code[:g.length]
	}
	return code, nil
}

// abs63 returns |n|. math.MinInt64 has no positive counterpart and folds to 0.
func abs63(n int64) uint64 {
	switch {
	case n == math.MinInt64:
		return 0
	case n < 0:
		return uint64(-n)
	default:
		return uint64(n)
	}
}

// Ensure *Generator satisfies the interface at compile-time.
var _ core.CodeGenerator = (*Generator)(nil)
