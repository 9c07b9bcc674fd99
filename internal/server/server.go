package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evidenceledger/certchain/internal/certchain"
	"github.com/evidenceledger/certchain/internal/database"
	"github.com/evidenceledger/certchain/internal/email"
	"github.com/evidenceledger/certchain/internal/fingerprint"
	"github.com/evidenceledger/certchain/internal/issuer"
	"github.com/evidenceledger/certchain/internal/jwt"
	"github.com/evidenceledger/certchain/internal/ledger"
	"github.com/evidenceledger/certchain/internal/middleware"
	"github.com/evidenceledger/certchain/internal/render"
	"github.com/evidenceledger/certchain/internal/verify"
)

// Development ledger: an in-process registry used when no ledger URL is configured
const (
	DevNetworkID = "1337"
	DevContract  = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	DevAccount   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// Config is the configuration for the server
type Config struct {
	Development   bool
	Port          string
	URL           string
	AdminPassword string

	// LedgerURL is the JSON-RPC endpoint of the ledger node. Empty selects
	// the in-process ledger, which is only allowed in development.
	LedgerURL string
	// ContractArtifact is a Truffle build artifact listing the registry
	// deployments per network.
	ContractArtifact string
	// ContractAddress is used for networks the artifact does not list.
	ContractAddress string

	Strategy    string
	VerifyMode  string
	BindRaster  bool
	DBPath      string
	TemplateDir string
}

// Server wires the issuance pipeline, the ledger and the HTTP server
type Server struct {
	cfg      Config
	db       *database.Database
	backend  ledger.Backend
	issuer   *issuer.Issuer
	certsrv  *certchain.Server
	closeRPC func()
}

// New creates a new server instance
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.AdminPassword == "" && !cfg.Development {
		return nil, fmt.Errorf("an admin password is required outside development")
	}

	mode := verify.Mode(cfg.VerifyMode)
	if mode == "" {
		mode = verify.ModeLedger
	}
	if mode == verify.ModeFormatOnly && !cfg.Development {
		return nil, fmt.Errorf("format-only verification is only allowed in development")
	}

	strategy := fingerprint.Strategy(cfg.Strategy)
	if strategy == "" {
		strategy = fingerprint.StrategyKeccak256
	}
	engine, err := fingerprint.NewEngine(strategy)
	if err != nil {
		return nil, err
	}

	renderer, err := render.New(render.Options{Layout: render.DefaultLayout(), BindRaster: cfg.BindRaster})
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, closeRPC: func() {}}

	deployments, err := s.connectLedger(ctx)
	if err != nil {
		return nil, err
	}
	client := ledger.NewClient(s.backend, deployments)

	s.db = database.New(cfg.DBPath)

	s.issuer = issuer.New(renderer, engine, client, issuer.Config{
		Store:     s.db,
		Notifier:  email.NewService(),
		VerifyURL: strings.TrimRight(cfg.URL, "/") + "/verify",
	})

	var lookup verify.Lookup
	if mode == verify.ModeLedger {
		lookup = client
	}
	verifier, err := verify.New(lookup, mode)
	if err != nil {
		return nil, err
	}

	receipts, err := jwt.NewService(cfg.URL)
	if err != nil {
		return nil, err
	}

	adminAuth, err := middleware.NewAdminAuth(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}

	s.certsrv, err = certchain.New(s.issuer, verifier, s.db, receipts, adminAuth, certchain.Config{
		Port:        cfg.Port,
		URL:         cfg.URL,
		TemplateDir: cfg.TemplateDir,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// connectLedger selects the ledger backend and the registry deployments
func (s *Server) connectLedger(ctx context.Context) (*ledger.Deployments, error) {
	var deployments *ledger.Deployments
	if s.cfg.ContractArtifact != "" {
		d, err := ledger.LoadArtifact(s.cfg.ContractArtifact)
		if err != nil {
			return nil, err
		}
		deployments = d
	} else {
		deployments = ledger.NewDeployments(nil)
	}
	if s.cfg.ContractAddress != "" {
		deployments.SetDefault(s.cfg.ContractAddress)
	}

	if s.cfg.LedgerURL == "" {
		if !s.cfg.Development {
			return nil, fmt.Errorf("a ledger URL is required outside development")
		}
		slog.Warn("No ledger URL configured, using the in-process development ledger",
			"network_id", DevNetworkID, "contract", DevContract, "account", DevAccount)
		s.backend = ledger.NewMemoryBackend(DevNetworkID, DevContract, DevAccount)
		deployments.Set(DevNetworkID, DevContract)
		return deployments, nil
	}

	eth, err := ledger.DialEthereum(ctx, s.cfg.LedgerURL, deployments.ABI())
	if err != nil {
		return nil, err
	}
	s.backend = eth
	s.closeRPC = eth.Close

	slog.Info("Registry deployments loaded", "networks", deployments.Networks())
	return deployments, nil
}

// Start initializes the database and serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	// Initialize database
	if err := s.db.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	defer func() {
		s.issuer.Close()
		s.closeRPC()
		if err := s.db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	slog.Info("Server started",
		"port", s.cfg.Port,
		"url", s.cfg.URL,
		"development", s.cfg.Development,
		"ledger_url", s.cfg.LedgerURL)

	if err := s.certsrv.Start(ctx); err != nil {
		return fmt.Errorf("certchain server failed: %w", err)
	}

	slog.Info("Shutting down server")
	return nil
}
