package domain

import "errors"

var (
	ErrInvalidEnumValue = errors.New("invalid enum value")
	ErrDuplicateLevel   = errors.New("approval already exists for level")
	ErrAlreadyDecided   = errors.New("approval already decided")
	ErrNotAuthorized    = errors.New("reviewer not authorized for level")
	ErrNotFound         = errors.New("not found")

	ErrInvalidLevel      = errors.New("invalid approval level")
	ErrInvalidDecision   = errors.New("invalid decision")
	ErrReportClosed      = errors.New("report is not accepting decisions")
	ErrInvalidTransition = errors.New("invalid report status transition")
	ErrInvalidInput      = errors.New("invalid input")
)

// ErrorKind returns a stable name for a domain error, or "" when err does not
// wrap one. Used as the Temporal application error type and in API logs.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEnumValue):
		return "InvalidEnumValue"
	case errors.Is(err, ErrDuplicateLevel):
		return "DuplicateLevel"
	case errors.Is(err, ErrAlreadyDecided):
		return "AlreadyDecided"
	case errors.Is(err, ErrNotAuthorized):
		return "NotAuthorized"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidLevel):
		return "InvalidLevel"
	case errors.Is(err, ErrInvalidDecision):
		return "InvalidDecision"
	case errors.Is(err, ErrReportClosed):
		return "ReportClosed"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	default:
		return ""
	}
}
