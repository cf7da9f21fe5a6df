package providers

import (
	"errors"
	"fmt"

	"vitacheck/engine/pkg/fetch"
)

// MissingCredentialError reports that a provider requiring a credential was
// invoked without one configured. The provider is deterministically disabled
// for the whole process lifetime; the request itself does not fail.
type MissingCredentialError struct {
	// Provider is the name of the disabled provider.
	Provider string
}

// Error implements the error interface. The message never includes the
// credential variable's value, only which provider lacks one.
func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("provider %q disabled: missing credential", e.Provider)
}

// ErrorKind classifies a provider error for the debug trace. Kinds, not
// types: the orchestrator records these strings, never raw error text from
// an upstream body.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var timeout *fetch.TimeoutError
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var transport *fetch.TransportError
	if errors.As(err, &transport) {
		if transport.StatusCode > 0 {
			return fmt.Sprintf("http_%d", transport.StatusCode)
		}
		return "transport"
	}
	var parse *fetch.ParseError
	if errors.As(err, &parse) {
		return "parse"
	}
	var missing *MissingCredentialError
	if errors.As(err, &missing) {
		return "missing_credential"
	}
	return "internal"
}
