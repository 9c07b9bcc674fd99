package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/jwt"
	"github.com/evidenceledger/certchain/internal/verify"
)

// VerifyHandlers answers verification requests
type VerifyHandlers struct {
	verifier *verify.Service
	receipts *jwt.Service
}

// NewVerifyHandlers creates new verification handlers. receipts may be nil,
// in which case no receipt is issued.
func NewVerifyHandlers(verifier *verify.Service, receipts *jwt.Service) *VerifyHandlers {
	return &VerifyHandlers{
		verifier: verifier,
		receipts: receipts,
	}
}

// VerifyResponse is the body of a verification answer
type VerifyResponse struct {
	Result  verify.Result `json:"result"`
	Receipt string        `json:"receipt,omitempty"`
}

// Verify checks the fingerprint given in the path, the query or the body
func (h *VerifyHandlers) Verify(c *fiber.Ctx) error {
	candidate := c.Params("fingerprint")
	if candidate == "" {
		candidate = c.Query("fingerprint")
	}
	if candidate == "" && c.Method() == fiber.MethodPost {
		var body struct {
			Fingerprint string `json:"fingerprint" form:"fingerprint"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errl.Wrap(errl.KindValidation, err, "invalid request body")
		}
		candidate = body.Fingerprint
	}

	resp := h.Check(c, candidate)
	return c.Status(ResultStatus(resp.Result)).JSON(resp)
}

// Check verifies candidate and signs a receipt when a verdict was reached.
func (h *VerifyHandlers) Check(c *fiber.Ctx, candidate string) VerifyResponse {
	res := h.verifier.Verify(c.UserContext(), candidate)
	resp := VerifyResponse{Result: res}

	if h.receipts != nil && (res.Verified || res.Reason == verify.ReasonNotFound) {
		receipt, err := h.receipts.GenerateReceipt(res)
		if err != nil {
			slog.Error("Failed to sign verification receipt", "fingerprint", res.Fingerprint, "error", err)
		} else {
			resp.Receipt = receipt
		}
	}

	return resp
}

// JWKS publishes the key receipts are signed with
func (h *VerifyHandlers) JWKS(c *fiber.Ctx) error {
	if h.receipts == nil {
		return errl.New(errl.KindNotFound, "receipts are not signed by this server")
	}
	return c.JSON(h.receipts.GetJWKS())
}

// ResultStatus is the HTTP status of a verification answer. A verdict, either
// way, is a successful answer; failing to reach one is not.
func ResultStatus(res verify.Result) int {
	switch res.Reason {
	case "", verify.ReasonNotFound:
		return fiber.StatusOK
	case verify.ReasonCancelled:
		return fiber.StatusServiceUnavailable
	default:
		return statusOfKind(errl.Kind(res.Reason))
	}
}
