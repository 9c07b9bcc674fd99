package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/models"
)

// DefaultPollInterval is how often WaitReceipt asks the node for a receipt.
const DefaultPollInterval = time.Second

// revertCode is the JSON-RPC error code nodes use for reverted calls.
const revertCode = 3

// EthereumBackend talks JSON-RPC to an EVM node with unlocked accounts
// (Ganache, Hardhat, Anvil or a node fronting a signer).
type EthereumBackend struct {
	rpc          *rpc.Client
	eth          *ethclient.Client
	abi          abi.ABI
	pollInterval time.Duration
}

// DialEthereum connects to the node at url. contractABI is the registry ABI,
// usually Deployments.ABI().
func DialEthereum(ctx context.Context, url string, contractABI string) (*EthereumBackend, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, errl.Errorf("invalid registry ABI: %w", err)
	}
	for _, method := range []string{"addCertificate", "verifyCertificate"} {
		if _, ok := parsed.Methods[method]; !ok {
			return nil, errl.Errorf("registry ABI lacks %s", method)
		}
	}

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errl.Wrap(errl.KindNetworkUnavailable, err, "failed to reach ledger endpoint")
	}

	slog.Info("Ledger endpoint configured", "url", url)
	return &EthereumBackend{
		rpc:          client,
		eth:          ethclient.NewClient(client),
		abi:          parsed,
		pollInterval: DefaultPollInterval,
	}, nil
}

// WithPollInterval sets the receipt polling interval.
func (b *EthereumBackend) WithPollInterval(d time.Duration) *EthereumBackend {
	if d > 0 {
		b.pollInterval = d
	}
	return b
}

// Close releases the underlying connection.
func (b *EthereumBackend) Close() {
	b.rpc.Close()
}

func (b *EthereumBackend) NetworkID(ctx context.Context) (string, error) {
	id, err := b.eth.NetworkID(ctx)
	if err != nil {
		return "", classify(ctx, err, errl.KindNetworkUnavailable, "failed to read network id")
	}
	return id.String(), nil
}

func (b *EthereumBackend) Accounts(ctx context.Context) ([]string, error) {
	var accounts []common.Address
	if err := b.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, classify(ctx, err, errl.KindNetworkUnavailable, "failed to list accounts")
	}
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.Hex()
	}
	return out, nil
}

func (b *EthereumBackend) SendAddCertificate(ctx context.Context, contract string, fp [32]byte, from string) (string, error) {
	if !common.IsHexAddress(from) {
		return "", errl.Newf(errl.KindSubmissionRejected, "submitter %q is not an account address", from)
	}
	if !common.IsHexAddress(contract) {
		return "", errl.Newf(errl.KindContractNotDeployed, "registry address %q is malformed", contract)
	}

	data, err := b.abi.Pack("addCertificate", fp)
	if err != nil {
		return "", errl.Errorf("failed to encode addCertificate: %w", err)
	}

	tx := map[string]any{
		"from": common.HexToAddress(from),
		"to":   common.HexToAddress(contract),
		"data": hexutil.Bytes(data),
	}

	var hash common.Hash
	if err := b.rpc.CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return "", classify(ctx, err, errl.KindSubmissionRejected, "ledger rejected the submission")
	}
	return hash.Hex(), nil
}

func (b *EthereumBackend) WaitReceipt(ctx context.Context, txID string) (*Receipt, error) {
	hash := common.HexToHash(txID)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := b.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			var block uint64
			if receipt.BlockNumber != nil {
				block = receipt.BlockNumber.Uint64()
			}
			return &Receipt{
				TxID:        txID,
				BlockNumber: block,
				Success:     receipt.Status == types.ReceiptStatusSuccessful,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, classify(ctx, err, errl.KindNetworkUnavailable, "failed to read transaction receipt")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *EthereumBackend) CallVerifyCertificate(ctx context.Context, contract string, fp [32]byte) (*models.LedgerEntry, error) {
	if !common.IsHexAddress(contract) {
		return nil, errl.Newf(errl.KindContractNotDeployed, "registry address %q is malformed", contract)
	}

	data, err := b.abi.Pack("verifyCertificate", fp)
	if err != nil {
		return nil, errl.Errorf("failed to encode verifyCertificate: %w", err)
	}

	to := common.HexToAddress(contract)
	out, err := b.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if isRevert(err) {
			return nil, nil
		}
		return nil, classify(ctx, err, errl.KindNetworkUnavailable, "ledger query failed")
	}
	if len(out) == 0 {
		return nil, errl.Newf(errl.KindContractNotDeployed, "no registry contract code at %s", contract)
	}

	values, err := b.abi.Unpack("verifyCertificate", out)
	if err != nil || len(values) != 2 {
		return nil, errl.Errorf("unexpected verifyCertificate result: %w", err)
	}
	issuer, ok1 := values[0].(common.Address)
	timestamp, ok2 := values[1].(*big.Int)
	if !ok1 || !ok2 {
		return nil, errl.Errorf("unexpected verifyCertificate result types %T, %T", values[0], values[1])
	}
	if issuer == (common.Address{}) {
		return nil, nil
	}

	return &models.LedgerEntry{
		Issuer:   issuer.Hex(),
		IssuedAt: time.Unix(timestamp.Int64(), 0).UTC(),
	}, nil
}

// classify maps a transport error to the engine's taxonomy. A JSON-RPC error
// response means the ledger answered and refused; anything else means it did
// not answer.
func classify(ctx context.Context, err error, answeredKind errl.Kind, msg string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return errl.Wrap(answeredKind, err, msg)
	}
	return errl.Wrap(errl.KindNetworkUnavailable, err, "ledger endpoint did not respond")
}

func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertCode {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}

var _ Backend = (*EthereumBackend)(nil)
