package utils

import "strings"

// BearerToken extracts the credential from an Authorization header value.
// It returns "" when the header is not a bearer header.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
