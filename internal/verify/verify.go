// Package verify answers whether a fingerprint was committed to the registry.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/fingerprint"
	"github.com/evidenceledger/certchain/internal/models"
)

// Mode selects how a syntactically valid fingerprint is checked.
type Mode string

const (
	// ModeLedger asks the registry contract. It is the only authoritative mode.
	ModeLedger Mode = "ledger"
	// ModeFormatOnly accepts every well-formed fingerprint without asking
	// anyone. It proves format validity, not provenance.
	ModeFormatOnly Mode = "format-only"
)

// Assurance tells the caller what a positive result is based on.
type Assurance string

const (
	AssuranceLedger     Assurance = "ledger"
	AssuranceFormatOnly Assurance = "format-only"
)

// Reasons for a negative result.
const (
	ReasonNotFound  = "not_found"
	ReasonCancelled = "cancelled"
)

// Lookup is the read side of the ledger client.
type Lookup interface {
	Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*models.LedgerEntry, error)
}

// Result is the outcome of one verification. It is never persisted.
type Result struct {
	Fingerprint string     `json:"fingerprint,omitempty"`
	Verified    bool       `json:"verified"`
	Assurance   Assurance  `json:"assurance,omitempty"`
	Issuer      string     `json:"issuer,omitempty"`
	IssuedAt    *time.Time `json:"issued_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// Service verifies candidate fingerprints.
type Service struct {
	lookup Lookup
	mode   Mode
}

// New creates a verification service. lookup may be nil only in ModeFormatOnly.
func New(lookup Lookup, mode Mode) (*Service, error) {
	switch mode {
	case ModeLedger:
		if lookup == nil {
			return nil, errl.Errorf("ledger verification needs a ledger client")
		}
	case ModeFormatOnly:
		slog.Warn("Verification runs in format-only mode: results prove format validity, not issuance")
	default:
		return nil, errl.Errorf("unknown verification mode %q", mode)
	}
	return &Service{lookup: lookup, mode: mode}, nil
}

// Mode returns the configured verification mode.
func (s *Service) Mode() Mode { return s.mode }

// Verify checks candidate. The syntax check runs first and a malformed
// candidate never reaches the ledger.
func (s *Service) Verify(ctx context.Context, candidate string) Result {
	fp, err := fingerprint.Parse(candidate)
	if err != nil {
		return failure("", err)
	}

	if s.mode == ModeFormatOnly {
		return Result{
			Fingerprint: fp.String(),
			Verified:    true,
			Assurance:   AssuranceFormatOnly,
			Message:     "fingerprint is well formed; the ledger was not consulted",
		}
	}

	entry, err := s.lookup.Lookup(ctx, fp)
	if err != nil {
		slog.Warn("Verification could not reach a verdict", "fingerprint", fp, "error", err)
		return failure(fp.String(), err)
	}
	if entry == nil {
		return Result{
			Fingerprint: fp.String(),
			Assurance:   AssuranceLedger,
			Reason:      ReasonNotFound,
			Message:     "no certificate with this fingerprint was issued",
		}
	}

	issuedAt := entry.IssuedAt.UTC()
	return Result{
		Fingerprint: fp.String(),
		Verified:    true,
		Assurance:   AssuranceLedger,
		Issuer:      entry.Issuer,
		IssuedAt:    &issuedAt,
	}
}

func failure(fp string, err error) Result {
	r := Result{Fingerprint: fp, Message: errl.Message(err)}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.Reason = ReasonCancelled
	default:
		r.Reason = string(errl.KindOf(err))
	}
	return r
}
