package email

// EmailError represents an email-specific error with a code and message.
// A local type rather than domain.Error to avoid a circular import.
type EmailError struct {
	Code    string
	Message string
}

const codeInvalid = "invalid"

func (e *EmailError) Error() string {
	return e.Message
}

// ErrInvalidToAddress is returned when the to address is invalid.
var ErrInvalidToAddress = &EmailError{Code: codeInvalid, Message: "Invalid to email address"}
