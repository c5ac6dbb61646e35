package service

import (
	"errors"
	"fmt"

	"github.com/aegis-gate/aegisgate/internal/domain/approval"
)

// ErrApprovalNotFound is returned when the supplied approval id is
// unknown, already consumed, or expired.
var ErrApprovalNotFound = approval.ErrNotFound

// PolicyViolationError is returned when evaluation denies a call.
type PolicyViolationError struct {
	Reason  string
	Version int
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation: %s", e.Reason)
}

// ApprovalPendingError reports that the call was suspended pending human
// approval. Not a failure: the caller re-submits with the approval id once
// a human approves.
type ApprovalPendingError struct {
	ApprovalID string
	Reason     string
}

func (e *ApprovalPendingError) Error() string {
	return fmt.Sprintf("approval required: %s (approval_id=%s)", e.Reason, e.ApprovalID)
}

// ToolCallError reports that policy allowed the call but the tool failed.
type ToolCallError struct {
	Err error
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("tool error: %v", e.Err)
}

func (e *ToolCallError) Unwrap() error {
	return e.Err
}

// AsPolicyViolation extracts a PolicyViolationError from an error chain.
func AsPolicyViolation(err error) (*PolicyViolationError, bool) {
	var pv *PolicyViolationError
	ok := errors.As(err, &pv)
	return pv, ok
}

// AsApprovalPending extracts an ApprovalPendingError from an error chain.
func AsApprovalPending(err error) (*ApprovalPendingError, bool) {
	var ap *ApprovalPendingError
	ok := errors.As(err, &ap)
	return ap, ok
}

// AsToolCall extracts a ToolCallError from an error chain.
func AsToolCall(err error) (*ToolCallError, bool) {
	var tc *ToolCallError
	ok := errors.As(err, &tc)
	return tc, ok
}
