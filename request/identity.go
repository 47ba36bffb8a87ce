package request

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// IdentitySeparator splits the readable URL from the digest in an identity.
const IdentitySeparator = " | "

// Generator derives request identities. The zero value is not usable; use
// NewGenerator.
type Generator struct {
	log      zerolog.Logger
	degraded atomic.Int64
}

// NewGenerator returns a Generator that reports degraded identities to log.
func NewGenerator(log zerolog.Logger) *Generator {
	return &Generator{log: log}
}

var defaultGenerator = NewGenerator(zerolog.Nop())

// GenerateID derives an identity with a generator that logs nowhere.
func GenerateID(method Method, resolvedURL string, params any) string {
	return defaultGenerator.Generate(method, resolvedURL, params)
}

// Generate returns "<url> | <sha256 hex>" where the digest covers the
// canonical list [method, url, encoded params]. The result is stable across
// processes.
//
// When params cannot be encoded the identity falls back to a non-cryptographic
// structural hash. That form is only good for the current process and must
// not be used as a persistent cache key; Degraded counts how often it happened.
func (g *Generator) Generate(method Method, resolvedURL string, params any) string {
	enc, err := Encode(params)
	if err == nil {
		list, lerr := json.Marshal([]string{string(method), resolvedURL, string(enc)})
		if lerr == nil {
			sum := sha256.Sum256(list)
			return resolvedURL + IdentitySeparator + hex.EncodeToString(sum[:])
		}
		err = lerr
	}

	g.degraded.Add(1)
	g.log.Warn().
		Err(err).
		Str("method", string(method)).
		Str("url", resolvedURL).
		Msg("parameters not serializable, using process-local identity")

	h := xxhash.New()
	_, _ = fmt.Fprintf(h, "%s\x1f%s\x1f%#v", method, resolvedURL, params)
	return fmt.Sprintf("%s%s%016x", resolvedURL, IdentitySeparator, h.Sum64())
}

// Degraded is the number of identities produced by the fallback path.
func (g *Generator) Degraded() int64 { return g.degraded.Load() }
