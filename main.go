package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/evidenceledger/certchain/internal/server"
)

var (
	adminPassword    string
	port             string
	serverURL        string
	ledgerURL        string
	contractArtifact string
	contractAddress  string
	strategy         string
	verifyMode       string
	bindRaster       bool
	dbPath           string
	templateDir      string
	development      bool
	logLevel         string
)

func main() {
	// The password for issuing certificates
	flag.StringVar(&adminPassword, "admin-password", "", "Admin password for issuing certificates")

	flag.StringVar(&port, "port", "", "Port for the HTTP server (default 3000)")
	flag.StringVar(&serverURL, "url", "", "Public URL of the server")

	// The ledger node and the registry contract
	flag.StringVar(&ledgerURL, "ledger-url", "", "JSON-RPC URL of the ledger node (empty: in-process ledger, development only)")
	flag.StringVar(&contractArtifact, "contract-artifact", "", "Truffle build artifact of the registry contract")
	flag.StringVar(&contractAddress, "contract-address", "", "Registry contract address for networks not in the artifact")

	flag.StringVar(&strategy, "strategy", "", "Fingerprint strategy: keccak256 or weak-rolling32")
	flag.StringVar(&verifyMode, "verify-mode", "", "Verification mode: ledger or format-only (development only)")
	flag.BoolVar(&bindRaster, "bind-raster", false, "Include the rendered PNG in the fingerprinted bytes")

	flag.StringVar(&dbPath, "db", "", "Path of the SQLite commit record cache")
	flag.StringVar(&templateDir, "template-dir", "", "Serve page templates from this directory instead of the embedded ones")
	flag.BoolVar(&development, "dev", false, "Development mode")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	flag.Parse()

	// Command line has priority over the environment
	adminPassword = flagOrEnv(adminPassword, "CERTCHAIN_ADMIN_PASSWORD", "")
	port = flagOrEnv(port, "CERTCHAIN_PORT", "3000")
	ledgerURL = flagOrEnv(ledgerURL, "CERTCHAIN_LEDGER_URL", "")
	contractArtifact = flagOrEnv(contractArtifact, "CERTCHAIN_CONTRACT_ARTIFACT", "")
	contractAddress = flagOrEnv(contractAddress, "CERTCHAIN_CONTRACT_ADDRESS", "")
	strategy = flagOrEnv(strategy, "CERTCHAIN_STRATEGY", "keccak256")
	verifyMode = flagOrEnv(verifyMode, "CERTCHAIN_VERIFY_MODE", "ledger")
	dbPath = flagOrEnv(dbPath, "CERTCHAIN_DB", "./data/certchain.db")
	templateDir = flagOrEnv(templateDir, "CERTCHAIN_TEMPLATE_DIR", "")
	logLevel = flagOrEnv(logLevel, "CERTCHAIN_LOG_LEVEL", "info")
	if !development {
		development, _ = strconv.ParseBool(os.Getenv("CERTCHAIN_DEVELOPMENT"))
	}
	if !bindRaster {
		bindRaster, _ = strconv.ParseBool(os.Getenv("CERTCHAIN_BIND_RASTER"))
	}
	serverURL = flagOrEnv(serverURL, "CERTCHAIN_URL", "http://localhost:"+port)

	// Initialize logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))
	slog.SetDefault(logger)

	if adminPassword == "" && !development {
		slog.Error("Admin password required. Set CERTCHAIN_ADMIN_PASSWORD environment variable")
		os.Exit(1)
	}

	// Create the configuration
	cfg := server.Config{
		Development:      development,
		Port:             port,
		URL:              serverURL,
		AdminPassword:    adminPassword,
		LedgerURL:        ledgerURL,
		ContractArtifact: contractArtifact,
		ContractAddress:  contractAddress,
		Strategy:         strategy,
		VerifyMode:       verifyMode,
		BindRaster:       bindRaster,
		DBPath:           dbPath,
		TemplateDir:      templateDir,
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received")
		cancel()
	}()

	// Create the main server. This connects to the ledger and builds the HTTP service.
	srv, err := server.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	// Start server
	if err := srv.Start(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func flagOrEnv(value, env, def string) string {
	if value != "" {
		return value
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
