// Package token produces the opaque secrets and identifiers handed out by the relay.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// Size is the number of random bytes behind every token.
const Size = 32

// Generator issues join tokens. The session actor depends on it so tests
// can rotate through predictable values.
type Generator interface {
	Token() (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Token() (string, error) { return f() }

// Random is the production generator backed by crypto/rand.
var Random Generator = GeneratorFunc(New)

// New returns a base64url encoded random token.
func New() (string, error) {
	buf := make([]byte, Size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SessionID allocates a new session identifier. Session ids are never reused.
func SessionID() string {
	return uuid.NewString()
}

// Sequence returns a generator yielding the given values in order, then
// erroring. Intended for tests.
func Sequence(values ...string) Generator {
	i := 0
	return GeneratorFunc(func() (string, error) {
		if i >= len(values) {
			return "", fmt.Errorf("token: sequence exhausted after %d values", len(values))
		}
		v := values[i]
		i++
		return v, nil
	})
}
