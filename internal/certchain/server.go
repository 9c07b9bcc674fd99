package certchain

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/evidenceledger/certchain/internal/handlers"
	"github.com/evidenceledger/certchain/internal/html"
	"github.com/evidenceledger/certchain/internal/issuer"
	"github.com/evidenceledger/certchain/internal/jwt"
	"github.com/evidenceledger/certchain/internal/middleware"
	"github.com/evidenceledger/certchain/internal/verify"
)

// Config is the configuration of the HTTP server
type Config struct {
	Port string
	URL  string
	// TemplateDir, if set, serves the views from disk instead of the embedded copy
	TemplateDir string
	// VerifyRate and VerifyBurst limit verification requests per client IP
	VerifyRate  float64
	VerifyBurst int
}

// Server is the certificate issuance and verification HTTP server
type Server struct {
	cfg       Config
	app       *fiber.App
	issuer    *issuer.Issuer
	verifier  *verify.Service
	certs     *handlers.CertificateHandlers
	verify    *handlers.VerifyHandlers
	adminAuth *middleware.AdminAuth
	limiter   *middleware.RateLimiter
	html      *html.RendererFiber
}

//go:embed views/*
var viewsfs embed.FS

// New creates a new server
func New(iss *issuer.Issuer, verifier *verify.Service, store handlers.CommitStore, receipts *jwt.Service, adminAuth *middleware.AdminAuth, cfg Config) (*Server, error) {

	views, err := fs.Sub(viewsfs, "views")
	if err != nil {
		return nil, err
	}
	htmlrender, err := html.NewRendererFiber(views, cfg.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize template engine: %w", err)
	}

	if cfg.VerifyRate <= 0 {
		cfg.VerifyRate = 5
	}
	if cfg.VerifyBurst <= 0 {
		cfg.VerifyBurst = 20
	}

	app := fiber.New(fiber.Config{
		AppName:                 "CertChain",
		EnableTrustedProxyCheck: false,
		ErrorHandler:            handlers.ErrorHandler,
		BodyLimit:               1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	s := &Server{
		cfg:       cfg,
		app:       app,
		issuer:    iss,
		verifier:  verifier,
		certs:     handlers.NewCertificateHandlers(iss, store),
		verify:    handlers.NewVerifyHandlers(verifier, receipts),
		adminAuth: adminAuth,
		limiter:   middleware.NewRateLimiter(cfg.VerifyRate, cfg.VerifyBurst),
		html:      htmlrender,
	}

	s.setupRoutes()
	return s, nil
}

// App returns the fiber application, for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// setupRoutes sets up all the server routes
func (s *Server) setupRoutes() {
	// Health check
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":            "healthy",
			"strategy":          s.issuer.Strategy(),
			"verification_mode": s.verifier.Mode(),
		})
	})

	s.app.Get("/.well-known/jwks.json", s.verify.JWKS)

	// Pages
	s.app.Get("/", s.handleIssueForm)
	s.app.Post("/issue", s.adminAuth.AuthMiddleware(), s.handleIssue)
	s.app.Get("/verify", s.limiter.Middleware(), s.handleVerifyPage)
	s.app.Post("/verify", s.limiter.Middleware(), s.handleVerifyPage)

	api := s.app.Group("/api")

	api.Post("/certificates/preview", s.certs.Preview)
	api.Post("/certificates", s.adminAuth.AuthMiddleware(), s.certs.Issue)
	api.Get("/certificates", s.certs.List)
	api.Get("/certificates/:fingerprint", s.certs.Get)
	api.Get("/certificates/:fingerprint/png", s.certs.PNG)
	api.Get("/certificates/:fingerprint/pdf", s.certs.PDF)
	api.Get("/submissions/:id", s.certs.Submission)

	verifyAPI := api.Group("/verify", s.limiter.Middleware())
	verifyAPI.Get("/", s.verify.Verify)
	verifyAPI.Post("/", s.verify.Verify)
	verifyAPI.Get("/:fingerprint", s.verify.Verify)
}

// Start starts the server and stops it when ctx is cancelled
func (s *Server) Start(ctx context.Context) error {

	addr := net.JoinHostPort("0.0.0.0", s.cfg.Port)
	slog.Info("Starting CertChain server", "addr", addr, "url", s.cfg.URL)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(addr); err != nil {
			errChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.app.ShutdownWithTimeout(10 * time.Second)
	}
}
