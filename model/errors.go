package model

import (
	"errors"
	"fmt"
)

// ErrNoResponse indicates a provider closed its response channel without
// emitting a final (non-partial) response.
var ErrNoResponse = errors.New("model returned no response")

// UnknownProviderError indicates a model spec referenced an unregistered API.
type UnknownProviderError struct {
	API string
}

// Error implements the error interface.
func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown model provider %q", e.API)
}
