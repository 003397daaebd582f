package stamp

import "fmt"

// Error codes for stamp lookup
const (
	ErrCodeNoStamp     = "NO_STAMP"
	ErrCodeMissingUUID = "MISSING_UUID"
)

// StampError represents stamp lookup errors
type StampError struct {
	Code    string
	Field   string
	Message string
}

func (e *StampError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ErrNoStamp returns error when the document has no TimbreFiscalDigital
func ErrNoStamp() *StampError {
	return &StampError{Code: ErrCodeNoStamp, Message: "no TimbreFiscalDigital found in document"}
}

// ErrMissingUUID returns error when the stamp carries no UUID
func ErrMissingUUID() *StampError {
	return &StampError{Code: ErrCodeMissingUUID, Field: "UUID", Message: "stamp has no UUID"}
}
