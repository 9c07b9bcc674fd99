package certchain

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/fingerprint"
	"github.com/evidenceledger/certchain/internal/handlers"
	"github.com/evidenceledger/certchain/internal/models"
	"github.com/evidenceledger/certchain/internal/verify"
)

var emphases = []models.FontEmphasis{
	models.EmphasisRegular,
	models.EmphasisBold,
	models.EmphasisItalic,
	models.EmphasisBoldItalic,
}

// handleIssueForm shows the issuance form
func (s *Server) handleIssueForm(c *fiber.Ctx) error {
	return s.html.Render(c, fiber.StatusOK, "issue", s.issueData(handlers.IssueRequest{}, nil))
}

// handleIssue issues the certificate described by the form and waits for the commit
func (s *Server) handleIssue(c *fiber.Ctx) error {
	req, err := handlers.ParseIssueRequest(c)
	if err != nil {
		return s.html.Render(c, handlers.StatusOf(err), "issue", s.issueData(req, err))
	}

	prepared, err := s.issuer.Prepare(req.Input())
	if err != nil {
		return s.html.Render(c, handlers.StatusOf(err), "issue", s.issueData(req, err))
	}

	sub, err := s.issuer.Commit(c.UserContext(), prepared, req.Options())
	if err != nil {
		slog.Warn("Certificate issuance failed", "fingerprint", prepared.Fingerprint, "error", err)
		return s.html.Render(c, handlers.StatusOf(err), "issue", s.issueData(req, err))
	}

	rec, _ := sub.Result()
	return s.html.Render(c, fiber.StatusCreated, "issued", fiber.Map{
		"title":  "Certificate issued",
		"record": rec,
	})
}

// handleVerifyPage shows the verification form and, when a fingerprint was
// given, the verification result
func (s *Server) handleVerifyPage(c *fiber.Ctx) error {
	candidate := c.Query("fingerprint")
	if c.Method() == fiber.MethodPost {
		candidate = c.FormValue("fingerprint")
	}
	candidate = strings.TrimSpace(utils.CopyString(candidate))

	data := fiber.Map{
		"title":      "Verify",
		"candidate":  candidate,
		"formatOnly": s.verifier.Mode() == verify.ModeFormatOnly,
	}

	status := fiber.StatusOK
	if candidate != "" {
		resp := s.verify.Check(c, candidate)
		data["result"] = &resp.Result
		data["receipt"] = resp.Receipt
		status = handlers.ResultStatus(resp.Result)
	}

	return s.html.Render(c, status, "verify", data)
}

func (s *Server) issueData(req handlers.IssueRequest, err error) fiber.Map {
	data := fiber.Map{
		"title":       "Issue",
		"input":       req.Input(),
		"notifyEmail": req.NotifyEmail,
		"emphases":    emphases,
		"strategy":    s.issuer.Strategy(),
		"weak":        s.issuer.Strategy() != fingerprint.StrategyKeccak256,
	}
	if err != nil {
		data["error"] = errl.Message(err)
		data["errorKind"] = errl.KindOf(err)
	}
	return data
}
