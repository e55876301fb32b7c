// ABOUTME: Error type for non-2xx HubSpot responses.
// ABOUTME: Carries the status code and the upstream body for tool error results.

package hubspot

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is returned when HubSpot answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("hubspot: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("hubspot: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// StatusCode extracts the upstream HTTP status from err, or 0 when err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
