package handlers

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/verify"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errl.New(errl.KindValidation, "x"), fiber.StatusBadRequest},
		{errl.New(errl.KindInvalidFingerprintFormat, "x"), fiber.StatusBadRequest},
		{errl.New(errl.KindNotFound, "x"), fiber.StatusNotFound},
		{errl.New(errl.KindSubmissionRejected, "x"), fiber.StatusUnprocessableEntity},
		{errl.New(errl.KindContractNotDeployed, "x"), fiber.StatusServiceUnavailable},
		{errl.New(errl.KindNetworkUnavailable, "x"), fiber.StatusBadGateway},
		{errl.New(errl.KindRender, "x"), fiber.StatusInternalServerError},
		{errors.New("boom"), fiber.StatusInternalServerError},
		{fiber.NewError(fiber.StatusTeapot, "tea"), fiber.StatusTeapot},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "%v", tt.err)
	}
}

func TestResultStatus(t *testing.T) {
	assert.Equal(t, fiber.StatusOK, ResultStatus(verify.Result{Verified: true}))
	assert.Equal(t, fiber.StatusOK, ResultStatus(verify.Result{Reason: verify.ReasonNotFound}))
	assert.Equal(t, fiber.StatusBadRequest, ResultStatus(verify.Result{Reason: string(errl.KindInvalidFingerprintFormat)}))
	assert.Equal(t, fiber.StatusBadGateway, ResultStatus(verify.Result{Reason: string(errl.KindNetworkUnavailable)}))
	assert.Equal(t, fiber.StatusServiceUnavailable, ResultStatus(verify.Result{Reason: verify.ReasonCancelled}))
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/internal", func(c *fiber.Ctx) error { return errors.New("secret detail") })
	app.Get("/kinded", func(c *fiber.Ctx) error {
		return errl.New(errl.KindSubmissionRejected, "transaction reverted")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/internal", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body := make([]byte, 256)
	n, _ := resp.Body.Read(body)
	assert.NotContains(t, string(body[:n]), "secret detail")

	resp, err = app.Test(httptest.NewRequest("GET", "/kinded", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	n, _ = resp.Body.Read(body)
	assert.Contains(t, string(body[:n]), `"kind":"SubmissionRejected"`)
}
