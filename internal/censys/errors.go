package censys

/*
censeek — domain discovery toolkit for the Censys Search API
Copyright (C) 2025  Pepijn van der Stap <censeek@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"errors"
	"fmt"
)

// APIError is an error from the Censys Search API that includes a retryable
// flag. The flag lets the paged search loop decide whether a failed request
// should be retried with backoff or surfaced immediately.
type APIError struct {
	// StatusCode is the HTTP status that produced the error, 0 for
	// transport-level failures where no response was received.
	StatusCode int
	// Message is the textual description, taken from the API response body
	// when one was available.
	Message string
	// Retryable is true if the error indicates a condition that might be
	// resolved by retrying (rate limits, server errors, transport faults).
	Retryable bool
}

// Error implements the standard error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("censys api: %s (status %d)", e.Message, e.StatusCode)
}

// NewAPIError creates an APIError with an explicit retryable status.
func NewAPIError(statusCode int, message string, retryable bool) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}

// classifyStatus maps an HTTP status to an APIError with the right
// retryable flag. 429 and every 5xx are transient; auth failures, missing
// endpoints, and query errors are permanent.
func classifyStatus(statusCode int, message string) *APIError {
	retryable := statusCode == 429 || statusCode >= 500
	return NewAPIError(statusCode, message, retryable)
}

// IsRetryable reports whether err is an APIError marked retryable.
// A nil error is not retryable, and unknown error types default to
// non-retryable so a surprise failure stops the run instead of looping.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

// Sentinel errors for conditions callers test for explicitly.
var (
	// ErrMissingCredentials indicates no API ID/secret pair could be found
	// in the configuration or environment.
	ErrMissingCredentials = errors.New("censys api: missing credentials, set CENSYS_API_ID and CENSYS_API_SECRET")
)
