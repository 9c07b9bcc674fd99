package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func devConfig(t *testing.T) Config {
	return Config{
		Development: true,
		Port:        "0",
		URL:         "http://localhost:3000",
		DBPath:      filepath.Join(t.TempDir(), "certchain.db"),
	}
}

func TestNewDevelopmentUsesMemoryLedger(t *testing.T) {
	s, err := New(context.Background(), devConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, s.backend)
	assert.Equal(t, "keccak256", string(s.issuer.Strategy()))
	s.issuer.Close()
}

func TestNewRejectsUnsafeProductionConfig(t *testing.T) {
	cfg := devConfig(t)
	cfg.Development = false

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "admin password")

	cfg.AdminPassword = "s3cret"
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "ledger URL")

	cfg.VerifyMode = "format-only"
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "format-only")
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	cfg := devConfig(t)
	cfg.Strategy = "md5"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewLoadsArtifact(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "CertificateContract.json")
	require.NoError(t, os.WriteFile(artifact, []byte(`{"networks":{"5777":{"address":"0x1234567890123456789012345678901234567890"}}}`), 0o644))

	cfg := devConfig(t)
	cfg.ContractArtifact = artifact
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	s.issuer.Close()

	cfg.ContractArtifact = filepath.Join(t.TempDir(), "missing.json")
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
