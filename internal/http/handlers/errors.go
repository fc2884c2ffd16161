// Package handlers defines the error codes carried in ErrorResponse.code.
//
// Codes are lowercase snake_case. The generic ones mirror the HTTP status;
// the domain ones let the POS client branch without parsing messages.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "approval_required",
//	  "message": "Terminal approval is required for Mode of Payment 'Mada' (Amount: 150.00). ..."
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeUnprocessable    = "unprocessable"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeNotConfigured     = "not_configured"
	ErrCodeApprovalRequired  = "approval_required"
	ErrCodeAlreadyLogged     = "already_logged"
	ErrCodeIdempotencyReused = "idempotency_key_reused"
	ErrCodeDriverContract    = "driver_contract_violation"
)
