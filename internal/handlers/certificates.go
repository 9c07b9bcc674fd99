package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/export"
	"github.com/evidenceledger/certchain/internal/fingerprint"
	"github.com/evidenceledger/certchain/internal/issuer"
	"github.com/evidenceledger/certchain/internal/models"
)

// CommitStore is the read side of the commit record cache
type CommitStore interface {
	GetCommit(ctx context.Context, fingerprint string) (*models.CommitRecord, error)
	ListCommits(ctx context.Context, limit int) ([]models.CommitRecord, error)
}

// IssueRequest is the body of an issuance request, as JSON or form values
type IssueRequest struct {
	RecipientName   string `json:"recipient_name" form:"recipient_name"`
	Title           string `json:"title" form:"title"`
	Description     string `json:"description" form:"description"`
	IssueDate       string `json:"issue_date" form:"issue_date"`
	BackgroundColor string `json:"background_color" form:"background_color"`
	TextColor       string `json:"text_color" form:"text_color"`
	FontEmphasis    string `json:"font_emphasis" form:"font_emphasis"`
	NotifyEmail     string `json:"notify_email" form:"notify_email"`
	Submitter       string `json:"submitter" form:"submitter"`
}

// Input returns the document part of the request
func (r IssueRequest) Input() models.CertificateInput {
	return models.CertificateInput{
		RecipientName:   r.RecipientName,
		Title:           r.Title,
		Description:     r.Description,
		IssueDate:       r.IssueDate,
		BackgroundColor: r.BackgroundColor,
		TextColor:       r.TextColor,
		FontEmphasis:    r.FontEmphasis,
	}
}

// Options returns the commit options of the request
func (r IssueRequest) Options() issuer.Options {
	return issuer.Options{
		Submitter:   strings.TrimSpace(r.Submitter),
		NotifyEmail: strings.TrimSpace(r.NotifyEmail),
	}
}

// ParseIssueRequest reads an IssueRequest from the body. Strings are copied
// out of the fasthttp buffers, since they outlive the request.
func ParseIssueRequest(c *fiber.Ctx) (IssueRequest, error) {
	var req IssueRequest
	if err := c.BodyParser(&req); err != nil {
		return req, errl.Wrap(errl.KindValidation, err, "invalid request body")
	}
	req.RecipientName = utils.CopyString(req.RecipientName)
	req.Title = utils.CopyString(req.Title)
	req.Description = utils.CopyString(req.Description)
	req.IssueDate = utils.CopyString(req.IssueDate)
	req.BackgroundColor = utils.CopyString(req.BackgroundColor)
	req.TextColor = utils.CopyString(req.TextColor)
	req.FontEmphasis = utils.CopyString(req.FontEmphasis)
	req.NotifyEmail = utils.CopyString(req.NotifyEmail)
	req.Submitter = utils.CopyString(req.Submitter)
	return req, nil
}

// CertificateHandlers handles certificate issuance and retrieval
type CertificateHandlers struct {
	issuer *issuer.Issuer
	store  CommitStore
}

// NewCertificateHandlers creates new certificate handlers
func NewCertificateHandlers(iss *issuer.Issuer, store CommitStore) *CertificateHandlers {
	return &CertificateHandlers{
		issuer: iss,
		store:  store,
	}
}

// Preview renders the request as a PNG without fingerprinting it
func (h *CertificateHandlers) Preview(c *fiber.Ctx) error {
	req, err := ParseIssueRequest(c)
	if err != nil {
		return err
	}

	png, err := h.issuer.Preview(req.Input())
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(png)
}

// Issue prepares the certificate and commits it. By default the commit runs
// in the background and the response carries the submission to poll; with
// ?wait=true the response is sent when the commit is final.
func (h *CertificateHandlers) Issue(c *fiber.Ctx) error {
	req, err := ParseIssueRequest(c)
	if err != nil {
		return err
	}

	prepared, err := h.issuer.Prepare(req.Input())
	if err != nil {
		return err
	}

	if c.QueryBool("wait") {
		sub, err := h.issuer.Commit(c.UserContext(), prepared, req.Options())
		if err != nil {
			return err
		}
		rec, _ := sub.Result()
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"submission_id": sub.ID(),
			"record":        rec,
		})
	}

	sub := h.issuer.Start(prepared, req.Options())
	slog.Info("Certificate submission started", "submission_id", sub.ID(), "fingerprint", prepared.Fingerprint)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"submission_id": sub.ID(),
		"fingerprint":   prepared.Fingerprint,
		"strategy":      prepared.Strategy,
		"status_url":    "/api/submissions/" + sub.ID(),
	})
}

// Submission reports the progress of a submission
func (h *CertificateHandlers) Submission(c *fiber.Ctx) error {
	sub, ok := h.issuer.Submission(c.Params("id"))
	if !ok {
		return errl.New(errl.KindNotFound, "unknown or expired submission")
	}
	return c.JSON(sub.Status())
}

// List returns the most recent commit records
func (h *CertificateHandlers) List(c *fiber.Ctx) error {
	recs, err := h.store.ListCommits(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"certificates": recs})
}

// Get returns one commit record
func (h *CertificateHandlers) Get(c *fiber.Ctx) error {
	rec, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// PNG downloads the committed raster
func (h *CertificateHandlers) PNG(c *fiber.Ctx) error {
	rec, err := h.lookup(c)
	if err != nil {
		return err
	}

	data, err := export.PNG(rec)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+downloadName(rec, "png")+`"`)
	return c.Send(data)
}

// PDF downloads the committed raster as a one page PDF
func (h *CertificateHandlers) PDF(c *fiber.Ctx) error {
	rec, err := h.lookup(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+downloadName(rec, "pdf")+`"`)
	return export.PDF(rec, c.Response().BodyWriter())
}

func (h *CertificateHandlers) lookup(c *fiber.Ctx) (*models.CommitRecord, error) {
	fp, err := fingerprint.Parse(c.Params("fingerprint"))
	if err != nil {
		return nil, err
	}

	rec, err := h.store.GetCommit(c.UserContext(), fp.String())
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errl.Newf(errl.KindNotFound, "no certificate with fingerprint %s was issued here", fp)
	}
	return rec, nil
}

func downloadName(rec *models.CommitRecord, ext string) string {
	return "certificate-" + rec.Fingerprint[:12] + "." + ext
}
