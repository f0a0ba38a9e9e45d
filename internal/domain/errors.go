package domain

// ValidationError reports caller input that failed validation. The HTTP
// layer translates it into a 400 with the allowed-status list attached.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
