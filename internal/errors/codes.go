// Package errors provides structured domain error handling.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Order errors
	CodeOrderReasonEmpty             Code = "ORDER_REASON_EMPTY"
	CodeOrderPackageEmpty            Code = "ORDER_PACKAGE_EMPTY"
	CodeOrderInvalidStatusTransition Code = "ORDER_INVALID_STATUS_TRANSITION"
	CodeOrderTerminal                Code = "ORDER_TERMINAL"
	CodeOrderNotBlocked              Code = "ORDER_NOT_BLOCKED"

	// Service errors
	CodeServiceVendorUnassigned    Code = "SERVICE_VENDOR_UNASSIGNED"
	CodeServiceVendorImmutable     Code = "SERVICE_VENDOR_IMMUTABLE"
	CodeServiceNotPending          Code = "SERVICE_NOT_PENDING"
	CodeServiceTerminal            Code = "SERVICE_TERMINAL"
	CodeServiceRetryExhausted      Code = "SERVICE_RETRY_EXHAUSTED"
	CodeServiceNotFailed           Code = "SERVICE_NOT_FAILED"
	CodeServiceTypeEmpty           Code = "SERVICE_TYPE_EMPTY"
	CodeServiceCategoryEmpty       Code = "SERVICE_CATEGORY_EMPTY"
	CodeServiceReferenceEmpty      Code = "SERVICE_VENDOR_REFERENCE_EMPTY"
	CodeServiceResultStatusInvalid Code = "SERVICE_RESULT_STATUS_INVALID"

	// SLA clock errors
	CodeSlaClockNotRunning        Code = "SLA_CLOCK_NOT_RUNNING"
	CodeSlaClockNotPaused         Code = "SLA_CLOCK_NOT_PAUSED"
	CodeSlaClockTerminal          Code = "SLA_CLOCK_TERMINAL"
	CodeSlaClockDeadlineInvalid   Code = "SLA_CLOCK_DEADLINE_INVALID"
	CodeSlaClockThresholdInvalid  Code = "SLA_CLOCK_THRESHOLD_INVALID"
	CodeSlaClockPauseReasonEmpty  Code = "SLA_CLOCK_PAUSE_REASON_EMPTY"
	CodeSlaClockTargetDaysInvalid Code = "SLA_CLOCK_TARGET_DAYS_INVALID"

	// Record errors
	CodeRecordTypeUnknown Code = "RECORD_TYPE_UNKNOWN"
	CodeRecordInvalid     Code = "RECORD_INVALID"

	// Calendar errors
	CodeCalendarNegativeDays Code = "CALENDAR_NEGATIVE_DAYS"
	CodeCalendarBadPercent   Code = "CALENDAR_BAD_PERCENT"

	// Vendor errors
	CodeVendorUnknown         Code = "VENDOR_UNKNOWN"
	CodeVendorDispatchFailed  Code = "VENDOR_DISPATCH_FAILED"
	CodeVendorCallbackInvalid Code = "VENDOR_CALLBACK_INVALID"

	// Storage errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeVersionConflict Code = "VERSION_CONFLICT"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeOrderReasonEmpty,
		CodeOrderPackageEmpty,
		CodeServiceTypeEmpty,
		CodeServiceCategoryEmpty,
		CodeServiceReferenceEmpty,
		CodeServiceResultStatusInvalid,
		CodeSlaClockDeadlineInvalid,
		CodeSlaClockThresholdInvalid,
		CodeSlaClockPauseReasonEmpty,
		CodeSlaClockTargetDaysInvalid,
		CodeRecordTypeUnknown,
		CodeRecordInvalid,
		CodeCalendarNegativeDays,
		CodeCalendarBadPercent,
		CodeVendorCallbackInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeOrderInvalidStatusTransition,
		CodeOrderTerminal,
		CodeOrderNotBlocked,
		CodeServiceVendorUnassigned,
		CodeServiceVendorImmutable,
		CodeServiceNotPending,
		CodeServiceTerminal,
		CodeServiceRetryExhausted,
		CodeServiceNotFailed,
		CodeSlaClockNotRunning,
		CodeSlaClockNotPaused,
		CodeSlaClockTerminal:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// Aborted - optimistic concurrency lost the race, caller retries
	case CodeVersionConflict:
		return codes.Aborted

	case CodeVendorDispatchFailed:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
