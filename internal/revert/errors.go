// Package revert defines the structured failure taxonomy of exproxy.
//
// Every failure inside an external call aborts and rolls back the whole call.
// Failures are reported as *Error values carrying a Code so callers and
// auditors can tell the categories apart; wrapping preserves the code.
package revert

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes a failure.
type Code string

const (
	// CodeNotAuthorized indicates the caller lacks the required role.
	CodeNotAuthorized Code = "NOT_AUTHORIZED"

	// CodeUnknownSelector indicates a dispatch miss.
	CodeUnknownSelector Code = "UNKNOWN_SELECTOR"

	// CodeAlreadyMigrated indicates the bootstrap sequence already ran.
	CodeAlreadyMigrated Code = "ALREADY_MIGRATED"

	// CodeNotMigrated indicates an operation requires a completed bootstrap.
	CodeNotMigrated Code = "NOT_MIGRATED"

	// CodePartialMigrationNotAllowed indicates one step of an aggregate
	// migration failed, so the whole migration was rejected.
	CodePartialMigrationNotAllowed Code = "PARTIAL_MIGRATION_NOT_ALLOWED"

	// CodeNotController indicates a vault call from someone other than its controller.
	CodeNotController Code = "NOT_CONTROLLER"

	// CodeInsufficientOutput indicates a transform pipeline produced less than
	// the caller's minimum.
	CodeInsufficientOutput Code = "INSUFFICIENT_OUTPUT"

	// CodeStorageCollision indicates a write into another module's namespace.
	CodeStorageCollision Code = "STORAGE_COLLISION"

	// CodeNotInRollbackHistory indicates a rollback target that was never installed.
	CodeNotInRollbackHistory Code = "NOT_IN_ROLLBACK_HISTORY"

	// CodeMigrateCallFailed indicates a post-bootstrap migrate step failed.
	CodeMigrateCallFailed Code = "MIGRATE_CALL_FAILED"

	// CodeInvalidArgument indicates malformed or missing call arguments.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeInsufficientBalance indicates a transfer larger than the balance.
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"

	// CodeInsufficientAllowance indicates a transferFrom beyond the allowance.
	CodeInsufficientAllowance Code = "INSUFFICIENT_ALLOWANCE"

	// CodeNonPayable indicates value was attached to a non-payable function.
	CodeNonPayable Code = "NON_PAYABLE"

	// CodeNoCode indicates a function call to an account without code.
	CodeNoCode Code = "NO_CODE"

	// CodeCallDepthExceeded indicates nested calls went deeper than allowed.
	CodeCallDepthExceeded Code = "CALL_DEPTH_EXCEEDED"

	// CodeQuotaExceeded indicates one external call spawned too many frames.
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"

	// CodeArithmeticOverflow indicates an amount that does not fit in int64.
	CodeArithmeticOverflow Code = "ARITHMETIC_OVERFLOW"

	// CodeTransformerFailed indicates a transform step did not confirm success.
	CodeTransformerFailed Code = "TRANSFORMER_FAILED"

	// CodeInternal is the generic fatal failure for unexpected faults.
	CodeInternal Code = "INTERNAL"
)

// Sentinels for errors.Is matching. Matching is by Code only.
var (
	ErrNotAuthorized              = &Error{Code: CodeNotAuthorized}
	ErrUnknownSelector            = &Error{Code: CodeUnknownSelector}
	ErrAlreadyMigrated            = &Error{Code: CodeAlreadyMigrated}
	ErrNotMigrated                = &Error{Code: CodeNotMigrated}
	ErrPartialMigrationNotAllowed = &Error{Code: CodePartialMigrationNotAllowed}
	ErrNotController              = &Error{Code: CodeNotController}
	ErrInsufficientOutput         = &Error{Code: CodeInsufficientOutput}
	ErrStorageCollision           = &Error{Code: CodeStorageCollision}
	ErrNotInRollbackHistory       = &Error{Code: CodeNotInRollbackHistory}
	ErrMigrateCallFailed          = &Error{Code: CodeMigrateCallFailed}
	ErrInvalidArgument            = &Error{Code: CodeInvalidArgument}
	ErrInsufficientBalance        = &Error{Code: CodeInsufficientBalance}
	ErrInsufficientAllowance      = &Error{Code: CodeInsufficientAllowance}
	ErrNonPayable                 = &Error{Code: CodeNonPayable}
	ErrNoCode                     = &Error{Code: CodeNoCode}
	ErrCallDepthExceeded          = &Error{Code: CodeCallDepthExceeded}
	ErrQuotaExceeded              = &Error{Code: CodeQuotaExceeded}
	ErrArithmeticOverflow         = &Error{Code: CodeArithmeticOverflow}
	ErrTransformerFailed          = &Error{Code: CodeTransformerFailed}
	ErrInternal                   = &Error{Code: CodeInternal}
)

// Error is a structured revert reason.
type Error struct {
	// Code identifies the failure category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details carries structured context (addresses, selectors, amounts).
	Details map[string]string

	// Cause is the failure that triggered this one, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of code caused by err.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// With returns a copy of e with an extra detail.
func (e *Error) With(key, value string) *Error {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// CodeOf returns the code of the outermost *Error in err's chain.
// Errors without a revert code report CodeInternal; nil reports "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return CodeInternal
}

// Normalize guarantees a structured failure: revert errors pass through,
// anything else is wrapped as CodeInternal.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return Wrap(CodeInternal, err, "unexpected internal fault")
}
