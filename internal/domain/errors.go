package domain

type ErrorCode string

const (
	ErrorCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrorCodeConfigurationGap      ErrorCode = "CONFIGURATION_GAP"
	ErrorCodeTransitionUnreachable ErrorCode = "TRANSITION_UNREACHABLE"
	ErrorCodeAuthorizationDenied   ErrorCode = "AUTHORIZATION_DENIED"
	ErrorCodeRemoteUnavailable     ErrorCode = "REMOTE_UNAVAILABLE"
)

// DomainError is a caller-visible rejection with a stable code. Remote
// infrastructure failures are wrapped with fmt.Errorf instead.
type DomainError struct {
	Code    ErrorCode
	Message string
}

func (e *DomainError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}
