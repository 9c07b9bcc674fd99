// Package fingerprint derives the fixed-length content fingerprint of a
// certificate from its canonical bytes.
//
// Two strategies exist and they are different trust models, not variants of
// one algorithm. A deployment picks exactly one; the strategy name is stored
// with every commit so a verifier knows which guarantee it relies on.
package fingerprint

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/evidenceledger/certchain/internal/errl"
)

// Strategy names a fingerprinting algorithm.
type Strategy string

const (
	// StrategyKeccak256 is the Keccak-256 digest (the hash web3 calls sha3).
	StrategyKeccak256 Strategy = "keccak256"
	// StrategyWeakRolling is a 32-bit multiplicative rolling hash padded to 64
	// hex characters. It offers no integrity guarantee.
	StrategyWeakRolling Strategy = "weak-rolling32"
)

// Length is the number of hex characters in a fingerprint.
const Length = 64

var formatRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Fingerprint is a 64 character lower-case hexadecimal string.
type Fingerprint string

// Parse checks the syntax of a user supplied fingerprint and returns it in
// canonical lower-case form. Letter case is ignored and a single leading "0x"
// is tolerated, since ledger explorers display digests that way.
func Parse(s string) (Fingerprint, error) {
	candidate := strings.ToLower(strings.TrimSpace(s))
	candidate = strings.TrimPrefix(candidate, "0x")
	if !formatRegex.MatchString(candidate) {
		return "", errl.Newf(errl.KindInvalidFingerprintFormat,
			"fingerprint must be %d hexadecimal characters", Length)
	}
	return Fingerprint(candidate), nil
}

// Valid reports whether s would be accepted by Parse.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func (f Fingerprint) String() string { return string(f) }

// Hex returns the fingerprint with the 0x prefix used on the ledger.
func (f Fingerprint) Hex() string { return "0x" + string(f) }

// Bytes32 decodes the fingerprint into the bytes32 form the registry contract takes.
// It panics if f was not produced by Parse or an Engine.
func (f Fingerprint) Bytes32() [32]byte {
	var out [32]byte
	b, err := hex.DecodeString(string(f))
	if err != nil || len(b) != len(out) {
		panic(fmt.Sprintf("fingerprint: malformed value %q", string(f)))
	}
	copy(out[:], b)
	return out
}

// Engine computes fingerprints with the strategy selected for the deployment.
type Engine struct {
	strategy Strategy
}

// NewEngine creates an engine for the given strategy.
func NewEngine(strategy Strategy) (*Engine, error) {
	switch strategy {
	case StrategyKeccak256:
	case StrategyWeakRolling:
		slog.Warn("Weak fingerprint strategy selected, fingerprints carry no integrity guarantee",
			"strategy", strategy)
	default:
		return nil, errl.Errorf("unknown fingerprint strategy %q", strategy)
	}
	return &Engine{strategy: strategy}, nil
}

// Strategy returns the strategy of the engine.
func (e *Engine) Strategy() Strategy { return e.strategy }

// IntegrityGuaranteed reports whether collisions are negligible under the engine's strategy.
func (e *Engine) IntegrityGuaranteed() bool { return e.strategy == StrategyKeccak256 }

// Fingerprint computes the fingerprint of canonical bytes. It is total.
func (e *Engine) Fingerprint(canonical []byte) Fingerprint {
	if e.strategy == StrategyWeakRolling {
		return WeakRolling(canonical)
	}
	return Keccak256(canonical)
}

// Keccak256 returns the hex encoded Keccak-256 digest of b.
func Keccak256(b []byte) Fingerprint {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// WeakRolling folds b into a 32-bit h*31+c hash and pads its absolute value
// with zeros to 64 hex characters. Only 32 bits carry information.
func WeakRolling(b []byte) Fingerprint {
	var h int32
	for _, c := range b {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return Fingerprint(fmt.Sprintf("%064x", v))
}
