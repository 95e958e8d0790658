package saml

import (
	"errors"
	"fmt"
)

// ErrorCode classifies authentication failures. The codes are stable
// strings; they are the only failure detail ever reflected to the browser.
type ErrorCode string

const (
	ErrCodeConfig            ErrorCode = "SAML_CONFIG_ERROR"
	ErrCodeResponseInvalid   ErrorCode = "SAML_RESPONSE_INVALID"
	ErrCodeSignatureInvalid  ErrorCode = "SAML_SIGNATURE_INVALID"
	ErrCodeAssertionExpired  ErrorCode = "SAML_ASSERTION_EXPIRED"
	ErrCodeAudienceMismatch  ErrorCode = "SAML_AUDIENCE_MISMATCH"
	ErrCodeMissingAttributes ErrorCode = "SAML_MISSING_ATTRIBUTES"
	ErrCodeIdPError          ErrorCode = "SAML_IDP_ERROR"
	// ErrCodeNetwork is reserved for dynamic metadata fetch support.
	ErrCodeNetwork ErrorCode = "SAML_NETWORK_ERROR"
)

func (c ErrorCode) String() string { return string(c) }

// AuthError is a structured authentication failure. Validation never lets a
// raw library error cross the package boundary; everything is recovered
// into one of these.
type AuthError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Cause }

func authErr(code ErrorCode, message string, cause error) *AuthError {
	return &AuthError{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the error code from err, falling back to
// SAML_RESPONSE_INVALID for anything untyped.
func CodeOf(err error) ErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeResponseInvalid
}
