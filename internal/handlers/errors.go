package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/evidenceledger/certchain/internal/errl"
)

// StatusOf maps an error to the HTTP status that reports it.
func StatusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return statusOfKind(errl.KindOf(err))
}

func statusOfKind(kind errl.Kind) int {
	switch kind {
	case errl.KindValidation, errl.KindInvalidFingerprintFormat:
		return fiber.StatusBadRequest
	case errl.KindNotFound:
		return fiber.StatusNotFound
	case errl.KindSubmissionRejected:
		return fiber.StatusUnprocessableEntity
	case errl.KindContractNotDeployed:
		return fiber.StatusServiceUnavailable
	case errl.KindNetworkUnavailable:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler is the fiber error handler of the API. Kinded errors keep their
// message and kind; anything else is reported as an internal error.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := StatusOf(err)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(status).JSON(fiber.Map{"error": fe.Message})
	}

	kind := errl.KindOf(err)
	msg := errl.Message(err)
	if kind == errl.KindInternal {
		slog.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		msg = "internal server error"
	} else {
		slog.Debug("Request rejected", "method", c.Method(), "path", c.Path(), "kind", kind, "error", err)
	}

	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"kind":  kind,
	})
}
