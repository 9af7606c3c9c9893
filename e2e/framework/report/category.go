package report

import "strings"

// Failure categories assigned by CategorizeError.
const (
	CategoryNotReady      = "StoreNotReady"
	CategoryNotIsomorphic = "NotIsomorphic"
	CategorySize          = "SizeMismatch"
	CategoryMissing       = "MissingStatement"
	CategoryContentType   = "ContentType"
	CategoryHTTPStatus    = "HTTPStatus"
	CategoryParse         = "ParseError"
	CategoryTimeout       = "Timeout"
	CategoryNetwork       = "Network"
	CategoryFixture       = "Fixture"
	CategoryUnknown       = "Unknown"
)

var categories = []struct {
	name     string
	patterns []string
}{
	{CategoryNotReady, []string{"not ready after"}},
	{CategoryNotIsomorphic, []string{"not isomorphic"}},
	{CategorySize, []string{"statements, expected"}},
	{CategoryMissing, []string{"is missing", "no statement matching"}},
	{CategoryContentType, []string{"content type"}},
	{CategoryHTTPStatus, []string{"returned status", "status="}},
	{CategoryNetwork, []string{"connection refused", "dial tcp", "no such host", "i/o timeout"}},
	{CategoryTimeout, []string{"deadline exceeded", "timeout"}},
	{CategoryFixture, []string{"fixture", "checksum"}},
	{CategoryParse, []string{"parse", "decode", "unexpected token"}},
}

// CategorizeError maps a failure message to a coarse category.
func CategorizeError(msg string) string {
	lower := strings.ToLower(msg)
	if lower == "" {
		return CategoryUnknown
	}
	for _, category := range categories {
		for _, pattern := range category.patterns {
			if strings.Contains(lower, pattern) {
				return category.name
			}
		}
	}
	return CategoryUnknown
}
