// Package ledger commits certificate fingerprints to the registry contract
// and queries it back.
//
// The ledger itself is reached through a Backend handed in by the caller, so
// the commit protocol can be exercised without a live network. The client
// neither retries nor imposes timeouts: whatever latency the ledger shows is
// propagated, and callers bound it with their context.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/fingerprint"
	"github.com/evidenceledger/certchain/internal/models"
)

// Receipt is the final outcome of a ledger transaction.
type Receipt struct {
	TxID        string
	BlockNumber uint64
	Success     bool
}

// Backend is the transport-level handle to a ledger node and its registry
// contract. Implementations return errl kinds NetworkUnavailable and
// SubmissionRejected, or the context error when ctx ends first.
type Backend interface {
	// NetworkID identifies the network the backend is connected to.
	NetworkID(ctx context.Context) (string, error)
	// Accounts lists the accounts the node can submit from.
	Accounts(ctx context.Context) ([]string, error)
	// SendAddCertificate submits addCertificate(fp) and returns the transaction
	// id as soon as the node accepts it.
	SendAddCertificate(ctx context.Context, contract string, fp [32]byte, from string) (string, error)
	// WaitReceipt blocks until the transaction is final.
	WaitReceipt(ctx context.Context, txID string) (*Receipt, error)
	// CallVerifyCertificate queries verifyCertificate(fp). It returns nil, nil
	// when the registry holds no record for fp.
	CallVerifyCertificate(ctx context.Context, contract string, fp [32]byte) (*models.LedgerEntry, error)
}

// Client submits fingerprints to, and looks them up in, the registry contract
// of the network its backend is connected to.
type Client struct {
	backend     Backend
	deployments *Deployments
	now         func() time.Time

	mu        sync.Mutex
	network   string
	contract  string
	resolving *resolution
}

// resolution is a network id lookup in flight. done is closed when it ends.
type resolution struct {
	done     chan struct{}
	network  string
	contract string
	err      error
}

// NewClient creates a ledger client. The contract address is resolved from
// deployments on first use.
func NewClient(backend Backend, deployments *Deployments) *Client {
	return &Client{
		backend:     backend,
		deployments: deployments,
		now:         time.Now,
	}
}

// WithClock overrides the clock used to stamp commit records, for tests.
func (c *Client) WithClock(clock func() time.Time) *Client {
	c.now = clock
	return c
}

// Resolve returns the network id and the registry address for it.
// A successful resolution is kept for the lifetime of the client. Only one
// caller asks the backend at a time; the others wait for its answer or for
// their own ctx, whichever comes first.
func (c *Client) Resolve(ctx context.Context) (network, contract string, err error) {
	for {
		c.mu.Lock()
		if c.contract != "" {
			network, contract = c.network, c.contract
			c.mu.Unlock()
			return network, contract, nil
		}

		if r := c.resolving; r != nil {
			c.mu.Unlock()
			select {
			case <-ctx.Done():
				return "", "", ctx.Err()
			case <-r.done:
			}
			if r.err == nil {
				return r.network, r.contract, nil
			}
			// The resolving caller gave up; its cancellation is not ours.
			if errors.Is(r.err, context.Canceled) || errors.Is(r.err, context.DeadlineExceeded) {
				continue
			}
			return "", "", r.err
		}

		r := &resolution{done: make(chan struct{})}
		c.resolving = r
		c.mu.Unlock()

		r.network, r.contract, r.err = c.resolve(ctx)

		c.mu.Lock()
		if r.err == nil {
			c.network, c.contract = r.network, r.contract
		}
		c.resolving = nil
		c.mu.Unlock()
		close(r.done)

		return r.network, r.contract, r.err
	}
}

func (c *Client) resolve(ctx context.Context) (string, string, error) {
	network, err := c.backend.NetworkID(ctx)
	if err != nil {
		return "", "", err
	}

	contract, ok := c.deployments.Address(network)
	if !ok {
		return "", "", errl.Newf(errl.KindContractNotDeployed, "registry contract not deployed to network %s", network)
	}

	slog.Info("Registry contract resolved", "network_id", network, "contract", contract)
	return network, contract, nil
}

// Submit commits fp on behalf of submitter. An empty submitter means the
// first account of the node. onPending, if not nil, receives the transaction
// id as soon as the ledger accepts the submission, before it is final.
//
// Every call sends one transaction, also for a fingerprint that was
// committed before; the record returned is whatever the ledger reports.
func (c *Client) Submit(ctx context.Context, fp fingerprint.Fingerprint, submitter string, onPending func(txID string)) (*models.CommitRecord, error) {
	network, contract, err := c.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	from := submitter
	if from == "" {
		accounts, err := c.backend.Accounts(ctx)
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			return nil, errl.New(errl.KindSubmissionRejected, "ledger node exposes no account to submit from")
		}
		from = accounts[0]
	}
	if common.IsHexAddress(from) {
		// The registry reports issuers in checksummed form.
		from = common.HexToAddress(from).Hex()
	}

	txID, err := c.backend.SendAddCertificate(ctx, contract, fp.Bytes32(), from)
	if err != nil {
		return nil, err
	}

	slog.Info("Certificate submitted", "fingerprint", fp, "tx_id", txID, "from", from, "network_id", network)
	if onPending != nil {
		onPending(txID)
	}

	receipt, err := c.backend.WaitReceipt(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !receipt.Success {
		return nil, errl.Newf(errl.KindSubmissionRejected, "transaction %s was reverted by the registry", txID)
	}

	slog.Info("Certificate committed", "fingerprint", fp, "tx_id", txID, "block", receipt.BlockNumber)
	return &models.CommitRecord{
		Fingerprint: fp.String(),
		TxID:        txID,
		Submitter:   from,
		NetworkID:   network,
		Contract:    contract,
		BlockNumber: receipt.BlockNumber,
		CommittedAt: c.now().UTC(),
	}, nil
}

// Lookup asks the registry for fp. It returns nil, nil when fp was never committed.
func (c *Client) Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*models.LedgerEntry, error) {
	_, contract, err := c.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return c.backend.CallVerifyCertificate(ctx, contract, fp.Bytes32())
}

// Track runs Submit for sub, moving it through its states. finalize, if not
// nil, sees the record before the submission is marked committed. The ledger
// already holds the record at that point, so a finalize error is logged and
// does not reject the submission.
//
// When ctx ends before the ledger answered, the submission is abandoned, not
// rejected: a transaction already sent may still be committed.
func (c *Client) Track(ctx context.Context, sub *Submission, submitter string, finalize func(*models.CommitRecord) error) (*models.CommitRecord, error) {
	if err := sub.begin(); err != nil {
		return nil, err
	}
	rec, err := c.Submit(ctx, sub.Fingerprint(), submitter, sub.setPending)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			sub.abandon(err)
		} else {
			sub.reject(err)
		}
		return nil, err
	}
	if finalize != nil {
		if ferr := finalize(rec); ferr != nil {
			slog.Error("Failed to finalize committed certificate", "fingerprint", rec.Fingerprint, "tx_id", rec.TxID, "error", ferr)
		}
	}
	sub.commit(rec)
	return rec, nil
}
