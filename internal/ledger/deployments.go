package ledger

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/evidenceledger/certchain/internal/errl"
)

// RegistryABI is the interface of the certificate registry contract.
const RegistryABI = `[
	{"type":"function","name":"addCertificate","stateMutability":"nonpayable",
	 "inputs":[{"internalType":"bytes32","name":"_hash","type":"bytes32"}],
	 "outputs":[]},
	{"type":"function","name":"verifyCertificate","stateMutability":"view",
	 "inputs":[{"internalType":"bytes32","name":"_hash","type":"bytes32"}],
	 "outputs":[{"internalType":"address","name":"issuer","type":"address"},
	            {"internalType":"uint256","name":"timestamp","type":"uint256"}]}
]`

// Deployments maps network ids to the address of the registry contract.
type Deployments struct {
	abi       string
	addresses map[string]string
	fallback  string
}

// NewDeployments creates a deployment table with the built-in registry ABI.
func NewDeployments(addresses map[string]string) *Deployments {
	d := &Deployments{abi: RegistryABI, addresses: make(map[string]string)}
	for network, addr := range addresses {
		d.Set(network, addr)
	}
	return d
}

// truffleArtifact is the part of a Truffle build artifact we read.
type truffleArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Networks     map[string]struct {
		Address         string `json:"address"`
		TransactionHash string `json:"transactionHash"`
	} `json:"networks"`
}

// LoadArtifact reads the deployment table from a Truffle build artifact
// (build/contracts/<Name>.json).
func LoadArtifact(path string) (*Deployments, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errl.Errorf("failed to read contract artifact: %w", err)
	}
	return ParseArtifact(raw)
}

// ParseArtifact parses a Truffle build artifact.
func ParseArtifact(raw []byte) (*Deployments, error) {
	var art truffleArtifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, errl.Errorf("invalid contract artifact: %w", err)
	}

	d := NewDeployments(nil)
	if len(art.ABI) > 0 && string(art.ABI) != "null" {
		d.abi = string(art.ABI)
	}
	for network, n := range art.Networks {
		if n.Address != "" {
			d.Set(network, n.Address)
		}
	}
	return d, nil
}

// Set registers (or replaces) the registry address for a network.
func (d *Deployments) Set(network, address string) {
	d.addresses[strings.TrimSpace(network)] = strings.TrimSpace(address)
}

// SetDefault registers an address used for networks without their own entry.
func (d *Deployments) SetDefault(address string) {
	d.fallback = strings.TrimSpace(address)
}

// Address returns the registry address for network.
func (d *Deployments) Address(network string) (string, bool) {
	if addr := d.addresses[network]; addr != "" {
		return addr, true
	}
	return d.fallback, d.fallback != ""
}

// ABI returns the JSON ABI of the registry contract.
func (d *Deployments) ABI() string { return d.abi }

// Networks returns the number of networks with a known deployment.
func (d *Deployments) Networks() int { return len(d.addresses) }
