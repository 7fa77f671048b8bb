package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	ErrCodeInvalid          = errors.New("confirmation code invalid")
	ErrPendingActionMissing = errors.New("no pending action")
	ErrDelivery             = errors.New("confirmation delivery failed")
)

// Fields reported by ConflictError.
const (
	FieldEmail     = "email"
	FieldLogin     = "login"
	FieldGoogleSub = "google_sub"
	FieldTitle     = "title"
)

// ConflictError reports which unique field rejected a write.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already taken", e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// CodeReason tells why a confirmation code was rejected.
type CodeReason string

const (
	CodeAbsent   CodeReason = "absent"
	CodeExpired  CodeReason = "expired"
	CodeMismatch CodeReason = "mismatch"
)

// CodeInvalidError is returned by code validation. State is never mutated when it is returned.
type CodeInvalidError struct {
	Reason CodeReason
}

func (e *CodeInvalidError) Error() string {
	return "confirmation code " + string(e.Reason)
}

func (e *CodeInvalidError) Unwrap() error { return ErrCodeInvalid }
