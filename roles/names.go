package roles

import (
	"regexp"
	"strings"
)

var (
	wordStartPattern  = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	lowerUpperPattern = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// CanonicalName returns the registry name for a role declared with identifier.
// A non-empty override is returned verbatim. Otherwise the identifier is
// converted from CamelCase to snake_case, so "RolRole1" becomes "rol_role1"
// and "HTTPAdmin" becomes "http_admin".
func CanonicalName(identifier, override string) string {
	if override != "" {
		return override
	}
	snake := wordStartPattern.ReplaceAllString(identifier, "${1}_${2}")
	snake = lowerUpperPattern.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
