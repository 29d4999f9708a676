package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jeancarlo3213/ferrefactura/internal/backend"
	"github.com/jeancarlo3213/ferrefactura/internal/billing"
	"github.com/jeancarlo3213/ferrefactura/internal/common"
	"github.com/jeancarlo3213/ferrefactura/internal/draft"
	"github.com/jeancarlo3213/ferrefactura/internal/draftstore"
	"github.com/jeancarlo3213/ferrefactura/internal/resilience"
)

// errorMapping binds a sentinel error to its HTTP representation.
type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{draft.ErrDuplicateLine, http.StatusConflict, "DUPLICATE_PRODUCT"},
	{draft.ErrZeroQuantity, http.StatusUnprocessableEntity, "ZERO_QUANTITY"},
	{draft.ErrOutOfStock, http.StatusUnprocessableEntity, "OUT_OF_STOCK"},
	{draft.ErrInsufficientStock, http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK"},
	{draft.ErrPreferBulk, http.StatusUnprocessableEntity, "PREFER_BULK"},
	{draft.ErrLineNotFound, http.StatusNotFound, "LINE_NOT_FOUND"},
	{billing.ErrNoProducts, http.StatusUnprocessableEntity, "NO_PRODUCTS"},
	{billing.ErrMissingCustomer, http.StatusUnprocessableEntity, "MISSING_CUSTOMER"},
	{billing.ErrMissingDate, http.StatusUnprocessableEntity, "MISSING_DATE"},
	{draftstore.ErrNotFound, http.StatusNotFound, "DRAFT_NOT_FOUND"},
	{resilience.ErrOpenCircuit, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE"},
}

// writeError maps service errors onto the canonical error body. Backend
// responses are never forwarded verbatim; only their status class survives.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			common.JSONError(w, m.status, m.code, m.target.Error(), nil)
			return
		}
	}
	var be *backend.Error
	if errors.As(err, &be) {
		logger.Error().Int("backend_status", be.StatusCode).Str("backend_body", be.Body).Msg("backend_error")
		switch be.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			common.JSONError(w, http.StatusUnauthorized, "BACKEND_AUTH", "backend rejected the session token", nil)
		case http.StatusNotFound:
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		default:
			common.JSONError(w, http.StatusBadGateway, "BACKEND_ERROR", "store backend request failed", nil)
		}
		return
	}
	logger.Error().Err(err).Msg("unhandled_error")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}
