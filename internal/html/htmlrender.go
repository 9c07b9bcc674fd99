package html

import (
	"bytes"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"

	"github.com/evidenceledger/certchain/internal/errl"
)

// RendererFiber renders the HTML pages of a fiber app.
type RendererFiber struct {
	engine *html.Engine
}

// NewRendererFiber creates a new HTML renderer.
// Templates are read from views, the embedded filesystem, unless extDir is
// set, in which case they are read from that directory and reloaded on every
// render so they can be edited while the server runs.
func NewRendererFiber(views fs.FS, extDir string) (*RendererFiber, error) {

	engine, err := newEngine(views, extDir)
	if err != nil {
		return nil, errl.Error(err)
	}

	return &RendererFiber{engine: engine}, nil
}

func newEngine(views fs.FS, extDir string) (*html.Engine, error) {
	var engine *html.Engine

	if extDir != "" {
		engine = html.NewFileSystem(http.Dir(extDir), ".hbs")
		engine.Reload(true)
	} else {
		engine = html.NewFileSystem(http.FS(views), ".hbs")
	}

	if err := engine.Load(); err != nil {
		return nil, errl.Error(err)
	}

	return engine, nil
}

// ResponseSecurityHeadersFiber sets the security headers for the response according to best practices
func ResponseSecurityHeadersFiber(c *fiber.Ctx) {

	c.Set("Content-Security-Policy", "frame-ancestors 'none';")
	c.Set("X-Frame-Options", "DENY")
	c.Set("X-Content-Type-Options", "nosniff")
	c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
	c.Set("Cross-Origin-Opener-Policy", "same-origin")
	c.Set("Cross-Origin-Resource-Policy", "same-site")
	c.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=(), interest-cohort=()")
	c.Set("X-Powered-By", "webserver")

}

// Render executes templateName with data and sends it with the given status.
func (h *RendererFiber) Render(c *fiber.Ctx, status int, templateName string, data map[string]any) error {

	out := &bytes.Buffer{}

	if err := h.engine.Render(out, templateName, data); err != nil {
		slog.Error("Error rendering template",
			slog.String("template", templateName),
			slog.String("error", err.Error()),
		)
		return fiber.NewError(fiber.StatusInternalServerError, "rendering response")
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	ResponseSecurityHeadersFiber(c)
	return c.Status(status).Send(out.Bytes())

}
