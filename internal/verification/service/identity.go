package service

import (
	"crypto/rand"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	assetIDSuffixLen = 5
	base36Alphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	// largest multiple of 36 below 256; bytes at or above it are redrawn
	base36Cutoff = 252
)

// IdentityGenerator produces asset ids: a base36 millisecond timestamp
// followed by a short random base36 suffix, upper-cased. Collisions are not
// ruled out; the property store's unique constraint rejects them.
type IdentityGenerator struct {
	now    func() time.Time
	random io.Reader
}

func NewIdentityGenerator() *IdentityGenerator {
	return &IdentityGenerator{now: time.Now, random: rand.Reader}
}

// AssignIdentity returns a new asset id.
func (g *IdentityGenerator) AssignIdentity() string {
	prefix := strconv.FormatInt(g.now().UnixMilli(), 36)
	return strings.ToUpper(prefix + g.suffix())
}

func (g *IdentityGenerator) suffix() string {
	out := make([]byte, 0, assetIDSuffixLen)
	buf := make([]byte, assetIDSuffixLen*2)
	for len(out) < assetIDSuffixLen {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			// crypto/rand does not fail on supported platforms; fall back to
			// the clock so an id is still produced.
			buf = []byte(strconv.FormatInt(g.now().UnixNano(), 36))
		}
		for _, b := range buf {
			if b >= base36Cutoff {
				continue
			}
			out = append(out, base36Alphabet[int(b)%len(base36Alphabet)])
			if len(out) == assetIDSuffixLen {
				break
			}
		}
	}
	return string(out)
}
