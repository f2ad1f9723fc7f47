// Package errclass defines the stable, machine-readable error classes
// surfaced by the remedy engine.
package errclass

import "fmt"

// RemedyError is a stable, machine-readable error class.
type RemedyError struct {
	Code    string
	Message string
}

func (e *RemedyError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RemedyError) Is(target error) bool {
	t, ok := target.(*RemedyError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new RemedyError with the same Code but a specific message.
func (e *RemedyError) WithMessage(msg string) *RemedyError {
	return &RemedyError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new RemedyError with a formatted message.
func (e *RemedyError) WithMessagef(format string, args ...any) *RemedyError {
	return &RemedyError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// All stable error classes for v0.x.
var (
	ErrNameInvalid        = &RemedyError{Code: "E_NAME_INVALID"}
	ErrPathEscape         = &RemedyError{Code: "E_PATH_ESCAPE"}
	ErrNotARepository     = &RemedyError{Code: "E_NOT_A_REPOSITORY"}
	ErrLockConflict       = &RemedyError{Code: "E_LOCK_CONFLICT"}
	ErrLockNotHeld        = &RemedyError{Code: "E_LOCK_NOT_HELD"}
	ErrAdmissionBlocked   = &RemedyError{Code: "E_ADMISSION_BLOCKED"}
	ErrProtectedPath      = &RemedyError{Code: "E_PROTECTED_PATH"}
	ErrBudgetExceeded     = &RemedyError{Code: "E_BUDGET_EXCEEDED"}
	ErrExecutionFailed    = &RemedyError{Code: "E_EXECUTION_FAILED"}
	ErrRegressionDetected = &RemedyError{Code: "E_REGRESSION_DETECTED"}
	ErrSnapshotNotFound   = &RemedyError{Code: "E_SNAPSHOT_NOT_FOUND"}
	ErrSnapshotCorrupt    = &RemedyError{Code: "E_SNAPSHOT_CORRUPT"}
	ErrRestoreFailed      = &RemedyError{Code: "E_RESTORE_FAILED"}
	ErrAttestChainBroken  = &RemedyError{Code: "E_ATTEST_CHAIN_BROKEN"}
	ErrPatternInvalid     = &RemedyError{Code: "E_PATTERN_INVALID"}
	ErrFormatUnsupported  = &RemedyError{Code: "E_FORMAT_UNSUPPORTED"}
)
