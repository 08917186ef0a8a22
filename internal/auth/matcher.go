package auth

import (
	"path"
	"strings"
)

// RequestKey builds the "METHOD:/path/" key permissions are matched against.
// The path always ends with a slash so "/leads" and "/leads/" share a key.
func RequestKey(method, reqPath string) string {
	if reqPath == "" {
		reqPath = "/"
	}
	if !strings.HasPrefix(reqPath, "/") {
		reqPath = "/" + reqPath
	}
	if !strings.HasSuffix(reqPath, "/") {
		reqPath += "/"
	}
	return strings.ToUpper(method) + ":" + reqPath
}

// Authorize reports whether any permission pattern matches the request.
// Patterns are shell globs; "*" matches within a single path segment.
// A malformed pattern never matches.
func Authorize(method, reqPath string, permissions []string) bool {
	key := RequestKey(method, reqPath)
	for _, pattern := range permissions {
		if matched, err := path.Match(pattern, key); err == nil && matched {
			return true
		}
	}
	return false
}
