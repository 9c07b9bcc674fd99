package fingerprint

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidenceledger/certchain/internal/errl"
)

func TestKeccak256KnownVector(t *testing.T) {
	// Keccak-256 of the empty string, as returned by web3.utils.sha3("")
	// before its null-hash special case.
	assert.Equal(t,
		Fingerprint("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"),
		Keccak256(nil))
}

func TestParse(t *testing.T) {
	valid := strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		input   string
		want    Fingerprint
		wantErr bool
	}{
		{"lower case", valid, Fingerprint(valid), false},
		{"upper case", strings.ToUpper(valid), Fingerprint(valid), false},
		{"0x prefix", "0x" + valid, Fingerprint(valid), false},
		{"surrounding space", "  " + valid + "\n", Fingerprint(valid), false},
		{"not a hash", "not-a-hash", "", true},
		{"empty", "", "", true},
		{"too short", valid[:63], "", true},
		{"too long", valid + "a", "", true},
		{"non hex", strings.Repeat("g", 64), "", true},
		{"double prefix", "0x0x" + valid[4:], "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errl.KindInvalidFingerprintFormat, errl.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBytes32(t *testing.T) {
	fp := Keccak256([]byte("certificate"))
	b := fp.Bytes32()
	assert.Equal(t, fp.String(), hex.EncodeToString(b[:]))
	assert.Panics(t, func() { Fingerprint("zz").Bytes32() })
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(StrategyKeccak256)
	require.NoError(t, err)
	assert.True(t, e.IntegrityGuaranteed())

	w, err := NewEngine(StrategyWeakRolling)
	require.NoError(t, err)
	assert.False(t, w.IntegrityGuaranteed())

	_, err = NewEngine("md5")
	assert.Error(t, err)
}

func TestFingerprintFormatProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	strong, _ := NewEngine(StrategyKeccak256)
	weak, _ := NewEngine(StrategyWeakRolling)

	properties.Property("every fingerprint is 64 lower-case hex characters", prop.ForAll(
		func(s string) bool {
			for _, fp := range []Fingerprint{strong.Fingerprint([]byte(s)), weak.Fingerprint([]byte(s))} {
				if len(fp) != Length || !formatRegex.MatchString(string(fp)) {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("fingerprints parse back to themselves", prop.ForAll(
		func(s string) bool {
			fp := strong.Fingerprint([]byte(s))
			parsed, err := Parse(fp.Hex())
			return err == nil && parsed == fp
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestWeakRollingCollides(t *testing.T) {
	// "Aa" and "BB" share the same h*31+c value, and so does any pair of
	// inputs that only differ by swapping one for the other.
	a := WeakRolling([]byte(`{"recipient_name":"Aa"}`))
	b := WeakRolling([]byte(`{"recipient_name":"BB"}`))
	assert.Equal(t, a, b)

	assert.NotEqual(t,
		Keccak256([]byte(`{"recipient_name":"Aa"}`)),
		Keccak256([]byte(`{"recipient_name":"BB"}`)))

	// Only the low 32 bits are used.
	assert.True(t, strings.HasPrefix(string(a), strings.Repeat("0", 56)))
}
