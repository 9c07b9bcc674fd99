package ledger

import (
	"sync"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/fingerprint"
	"github.com/evidenceledger/certchain/internal/models"
)

// State of a submission: Idle -> Submitting -> Committed | Rejected | Abandoned.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
	// StateAbandoned means the caller stopped waiting. If a transaction id
	// is set, the ledger may still commit it.
	StateAbandoned State = "abandoned"
)

// Submission tracks one fingerprint through the commit protocol.
// It is safe to read while the commit is in flight.
type Submission struct {
	id          string
	fingerprint fingerprint.Fingerprint

	mu     sync.RWMutex
	state  State
	txID   string
	record *models.CommitRecord
	err    error
	done   chan struct{}
}

// Status is a point-in-time view of a Submission.
type Status struct {
	ID          string               `json:"submission_id"`
	Fingerprint string               `json:"fingerprint"`
	State       State                `json:"state"`
	TxID        string               `json:"tx_id,omitempty"`
	Record      *models.CommitRecord `json:"record,omitempty"`
	ErrorKind   errl.Kind            `json:"error_kind,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// NewSubmission creates an idle submission.
func NewSubmission(id string, fp fingerprint.Fingerprint) *Submission {
	return &Submission{
		id:          id,
		fingerprint: fp,
		state:       StateIdle,
		done:        make(chan struct{}),
	}
}

func (s *Submission) ID() string                           { return s.id }
func (s *Submission) Fingerprint() fingerprint.Fingerprint { return s.fingerprint }

// Done is closed once the submission is committed, rejected or abandoned.
func (s *Submission) Done() <-chan struct{} { return s.done }

// Status returns the current state of the submission.
func (s *Submission) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		ID:          s.id,
		Fingerprint: s.fingerprint.String(),
		State:       s.state,
		TxID:        s.txID,
		Record:      s.record,
	}
	switch {
	case s.state == StateAbandoned:
		st.Error = "abandoned before the ledger confirmed the transaction"
	case s.err != nil:
		st.ErrorKind = errl.KindOf(s.err)
		st.Error = errl.Message(s.err)
	}
	return st
}

// Result returns the record or the error of a finished submission.
func (s *Submission) Result() (*models.CommitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record, s.err
}

func (s *Submission) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return errl.Errorf("submission %s already %s", s.id, s.state)
	}
	s.state = StateSubmitting
	return nil
}

func (s *Submission) setPending(txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txID = txID
}

func (s *Submission) commit(rec *models.CommitRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateCommitted
	s.record = rec
	s.txID = rec.TxID
	close(s.done)
}

func (s *Submission) reject(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateRejected
	s.err = err
	close(s.done)
}

func (s *Submission) abandon(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAbandoned
	s.err = err
	close(s.done)
}
