package mailer

import "fmt"

// AuthError indicates the submission server rejected our credentials.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// RecipientError indicates the server refused a recipient address.
type RecipientError struct {
	Email   string
	Message string
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("recipient refused: %s: %s", e.Email, e.Message)
}

// TransportError represents a connection or protocol failure, with
// type information for retry decisions.
type TransportError struct {
	Temporary bool
	Message   string
}

func (e *TransportError) Error() string { return e.Message }
