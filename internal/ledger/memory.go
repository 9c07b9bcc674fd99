package ledger

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"time"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/fingerprint"
	"github.com/evidenceledger/certchain/internal/models"
)

// MemoryBackend is an in-process registry contract. It stands in for a
// ledger node in development and in tests. The first commit of a fingerprint
// is kept; later commits produce new transactions but leave the record as is.
type MemoryBackend struct {
	mu          sync.Mutex
	networkID   string
	contract    string
	accounts    []string
	records     map[[32]byte]models.LedgerEntry
	receipts    map[string]Receipt
	block       uint64
	unavailable bool
	now         func() time.Time

	// calls counts every backend call, for tests that assert no ledger access.
	calls int
}

// NewMemoryBackend creates an in-process registry deployed at contract on
// networkID. Only the given accounts may submit.
func NewMemoryBackend(networkID, contract string, accounts ...string) *MemoryBackend {
	return &MemoryBackend{
		networkID: networkID,
		contract:  contract,
		accounts:  accounts,
		records:   make(map[[32]byte]models.LedgerEntry),
		receipts:  make(map[string]Receipt),
		now:       time.Now,
	}
}

// WithClock overrides the block timestamp source.
func (m *MemoryBackend) WithClock(clock func() time.Time) *MemoryBackend {
	m.now = clock
	return m
}

// SetUnavailable makes every call fail as if the node did not respond.
func (m *MemoryBackend) SetUnavailable(unavailable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = unavailable
}

// Calls returns how many backend calls were made.
func (m *MemoryBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// enter accounts for a call and checks availability. Callers hold m.mu.
func (m *MemoryBackend) enter(ctx context.Context) error {
	m.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.unavailable {
		return errl.New(errl.KindNetworkUnavailable, "ledger endpoint did not respond")
	}
	return nil
}

func (m *MemoryBackend) NetworkID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx); err != nil {
		return "", err
	}
	return m.networkID, nil
}

func (m *MemoryBackend) Accounts(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	return append([]string(nil), m.accounts...), nil
}

func (m *MemoryBackend) SendAddCertificate(ctx context.Context, contract string, fp [32]byte, from string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx); err != nil {
		return "", err
	}
	if !strings.EqualFold(contract, m.contract) {
		return "", errl.Newf(errl.KindSubmissionRejected, "no registry contract at %s", contract)
	}
	if !m.authorized(from) {
		return "", errl.Newf(errl.KindSubmissionRejected, "account %s is not authorized to submit", from)
	}

	m.block++
	var seed []byte
	seed = append(seed, m.networkID...)
	seed = binary.BigEndian.AppendUint64(seed, m.block)
	seed = append(seed, fp[:]...)
	txID := fingerprint.Keccak256(seed).Hex()

	if _, exists := m.records[fp]; !exists {
		m.records[fp] = models.LedgerEntry{Issuer: from, IssuedAt: m.now().UTC().Truncate(time.Second)}
	}
	m.receipts[txID] = Receipt{TxID: txID, BlockNumber: m.block, Success: true}
	return txID, nil
}

func (m *MemoryBackend) WaitReceipt(ctx context.Context, txID string) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	r, ok := m.receipts[txID]
	if !ok {
		return nil, errl.Newf(errl.KindSubmissionRejected, "unknown transaction %s", txID)
	}
	return &r, nil
}

func (m *MemoryBackend) CallVerifyCertificate(ctx context.Context, contract string, fp [32]byte) (*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	if !strings.EqualFold(contract, m.contract) {
		return nil, errl.Newf(errl.KindContractNotDeployed, "no registry contract code at %s", contract)
	}
	entry, ok := m.records[fp]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *MemoryBackend) authorized(from string) bool {
	for _, a := range m.accounts {
		if strings.EqualFold(a, from) {
			return true
		}
	}
	return false
}

var _ Backend = (*MemoryBackend)(nil)
