// Package errs implements the error taxonomy of spec.md §7: Validation,
// Policy, Solver, Integrity, Transport and Security errors, each carrying a
// stable code, a human message, an optional offending field, and a
// correlation id suitable for log correlation.
//
// The teacher wraps stdlib errors with fmt.Errorf("...: %w", err); we keep
// that wrapping convention (Unwrap) but give every expected-failure path a
// typed, taxonomy-tagged value instead of an ad-hoc string, so callers can
// errors.As instead of string-matching.
package errs

import (
	"fmt"

	"github.com/google/uuid"
)

// Category is the top-level error taxonomy.
type Category string

const (
	Validation Category = "VALIDATION"
	Policy     Category = "POLICY"
	Solver     Category = "SOLVER"
	Integrity  Category = "INTEGRITY"
	Transport  Category = "TRANSPORT"
	Security   Category = "SECURITY"
)

// Stable error codes referenced by callers and tests.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnknownTenant       = "UNKNOWN_TENANT"
	CodePlanLocked          = "PLAN_LOCKED"
	CodeFreezeViolation     = "FREEZE_VIOLATION"
	CodeKillSwitchActive    = "KILL_SWITCH_ACTIVE"
	CodeIdempotencyMismatch = "IDEMPOTENCY_MISMATCH"
	CodeAlreadyPublished    = "ALREADY_PUBLISHED"
	CodeInfeasible          = "INFEASIBLE"
	CodeRepairInfeasible    = "REPAIR_INFEASIBLE"
	CodeBudgetOverrun       = "BUDGET_OVERRUN"
	CodeHashChainBroken     = "HASH_CHAIN_BROKEN"
	CodeAuditGateFailed     = "AUDIT_GATE_FAILED"
	CodeReproducibilityFail = "REPRODUCIBILITY_FAILURE"
	CodeProviderTimeout     = "PROVIDER_TIMEOUT"
	CodeMessageDead         = "MESSAGE_DEAD"
	CodeBadSignature        = "BAD_SIGNATURE"
	CodeReplayAttack        = "REPLAY_ATTACK"
	CodeBodyMismatch        = "BODY_MISMATCH"
)

// Error is the concrete type every expected-failure path returns.
type Error struct {
	Category      Category
	Code          string
	Message       string
	Field         *string
	CorrelationID string
	cause         error
}

func (e *Error) Error() string {
	if e.Field != nil {
		return fmt.Sprintf("%s[%s]: %s (field=%s, correlation_id=%s)", e.Category, e.Code, e.Message, *e.Field, e.CorrelationID)
	}
	return fmt.Sprintf("%s[%s]: %s (correlation_id=%s)", e.Category, e.Code, e.Message, e.CorrelationID)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a taxonomy error with a fresh correlation id.
func New(cat Category, code, message string) *Error {
	return &Error{Category: cat, Code: code, Message: message, CorrelationID: uuid.NewString()}
}

// Wrap constructs a taxonomy error wrapping an underlying cause.
func Wrap(cat Category, code string, cause error) *Error {
	return &Error{Category: cat, Code: code, Message: cause.Error(), CorrelationID: uuid.NewString(), cause: cause}
}

// WithField attaches the offending field name and returns e for chaining.
func (e *Error) WithField(field string) *Error {
	e.Field = &field
	return e
}

// Is supports errors.Is by matching on Category+Code, ignoring message and
// correlation id (each occurrence of a taxonomy error is a distinct event).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}
