package errorkinds

import "errors"

// The different general error types.
var (
	ErrSessionNotExist     = errors.New("session does not exist")
	ErrIllegalSessionState = errors.New("illegal session state")
	ErrInvalidArgument     = errors.New("invalid argument")

	ErrInvalidAddress  = errors.New("invalid Bluetooth address")
	ErrAdapterNotFound = errors.New("adapter not found")
	ErrDeviceNotFound  = errors.New("device not found")

	ErrNotConnected = errors.New("no connection is established")
	ErrProfileProxy = errors.New("profile proxy is not available")

	ErrNotSupported = errors.New("this functionality is not supported")
)

// GenericError represents a standard error message.
type GenericError struct {
	// Errors stores all associated errors.
	Errors error `json:"errors,omitempty"`
}

// Error returns the formatted error as string.
func (e GenericError) Error() string {
	if e.Errors == nil {
		return ""
	}

	return e.Errors.Error()
}

// Unwrap unwraps all errors associated with this error.
func (e GenericError) Unwrap() error {
	return e.Errors
}

// MarshalText implements encoding.TextMarshaler, so that the error
// can be encoded within events.
func (e GenericError) MarshalText() ([]byte, error) {
	return []byte(e.Error()), nil
}
