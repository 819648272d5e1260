package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLValidationError represents a URL validation failure
type URLValidationError struct {
	Field   string
	Message string
	URL     string
}

func (e URLValidationError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// ValidateBaseURL checks that urlString is an absolute http(s) URL without
// path, query or fragment. requireHTTPS rejects plain http.
func ValidateBaseURL(urlString, fieldName string, requireHTTPS bool) error {
	if urlString == "" {
		return nil
	}

	parsed, err := url.Parse(urlString)
	if err != nil {
		return URLValidationError{Field: fieldName, Message: "invalid URL format", URL: urlString}
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch {
	case scheme == "":
		return URLValidationError{Field: fieldName, Message: "URL must include a scheme (http:// or https://)", URL: urlString}
	case scheme != "http" && scheme != "https":
		return URLValidationError{Field: fieldName, Message: "URL scheme must be http or https", URL: urlString}
	case requireHTTPS && scheme != "https":
		return URLValidationError{Field: fieldName, Message: "URL must use HTTPS when secure cookies are enabled", URL: urlString}
	case parsed.Host == "":
		return URLValidationError{Field: fieldName, Message: "URL must include a host", URL: urlString}
	case parsed.Path != "" && parsed.Path != "/":
		return URLValidationError{Field: fieldName, Message: "base URL must not contain a path", URL: urlString}
	case parsed.RawQuery != "":
		return URLValidationError{Field: fieldName, Message: "base URL must not contain query parameters", URL: urlString}
	case parsed.Fragment != "":
		return URLValidationError{Field: fieldName, Message: "base URL must not contain a fragment", URL: urlString}
	}
	return nil
}
