package dto

import (
	"net/http"
	"strings"
)

// Transport error codes. Domain errors keep their own codes (INSUFFICIENT_STOCK,
// ITEM_NOT_FOUND, ...) on the wire; these cover failures that never reach
// the domain.
const (
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeRateLimited  = "ERR_RATE_LIMITED"
	ErrCodeUnavailable  = "ERR_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
	ErrCodeUnavailable:  http.StatusServiceUnavailable,

	// Ledger
	"INSUFFICIENT_STOCK":     http.StatusUnprocessableEntity,
	"ITEM_NOT_FOUND":         http.StatusNotFound,
	"ITEM_NOT_TRACKED":       http.StatusUnprocessableEntity,
	"RESERVATION_NOT_FOUND":  http.StatusNotFound,
	"ALREADY_RELEASED":       http.StatusConflict,
	"EXPIRED":                http.StatusUnprocessableEntity,
	"INSUFFICIENT_LEAD_TIME": http.StatusUnprocessableEntity,
	"LEDGER_UNDERFLOW":       http.StatusInternalServerError,
	"INVALID_ADJUSTMENT":     http.StatusUnprocessableEntity,
	"DUPLICATE_SKU":          http.StatusConflict,

	// Order lifecycle
	"INVALID_TRANSITION":     http.StatusConflict,
	"RESERVATION_LAPSED":     http.StatusConflict,
	"ORDER_LEDGER_NOT_FOUND": http.StatusNotFound,

	// Shared
	"NOT_FOUND":               http.StatusNotFound,
	"ALREADY_EXISTS":          http.StatusConflict,
	"CONCURRENCY_CONFLICT":    http.StatusConflict,
	"INVALID_STATE":           http.StatusConflict,
	"UNAUTHORIZED":            http.StatusForbidden,
	"SNAPSHOT_STORE_DISABLED": http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status for an error code. Unmapped
// INVALID_* and *_REQUIRED codes are input errors; anything else unknown
// is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") || strings.HasSuffix(code, "_REQUIRED") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
