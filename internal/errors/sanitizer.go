// Package errors provides utilities for sanitizing errors and log text to
// prevent credential leakage.
package errors

import (
	"fmt"
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

type credentialPattern struct {
	re   *regexp.Regexp
	repl string
}

// Credential patterns to redact, applied in order.
var credentialPatterns = []credentialPattern{
	// user:password@ in URLs and DSNs
	{regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/\s:@]+:[^/\s@]+@`), "${1}" + redactedPlaceholder + "@"},
	// Anthropic-style API key: sk-ant-...
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{10,}`), redactedPlaceholder},
	// Generic OpenAI-style API key patterns
	{regexp.MustCompile(`sk-[a-zA-Z0-9_-]{32,}`), redactedPlaceholder},
	// Telegram bot token: 123456789:ABC-DEF... (token part is typically 35-36 chars)
	{regexp.MustCompile(`\d{8,12}:[a-zA-Z0-9_-]{30,}`), redactedPlaceholder},
	// AWS access key IDs
	{regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), redactedPlaceholder},
	// JSON Web Tokens
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]{8,}`), redactedPlaceholder},
	// Bearer tokens in headers
	{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.~+/=-]+`), redactedPlaceholder},
	// Authorization headers (matches "authorization: value" or "authorization value")
	{regexp.MustCompile(`(?i)authorization[:\s]+[^\s]+`), redactedPlaceholder},
	// API key in URLs
	{regexp.MustCompile(`(?i)api[_-]?key[=:][^\s&"']+`), redactedPlaceholder},
	// X-API-Key headers
	{regexp.MustCompile(`(?i)x-api-key[:\s]+[^\s]+`), redactedPlaceholder},
	// password=..., "secret": "...", token: ... (the key is kept)
	{regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token)(["']?\s*[=:]\s*["']?)[^\s&"',;]+`), "${1}${2}" + redactedPlaceholder},
}

// SanitizeError wraps an error, redacting any credentials that may appear in the error message.
// This prevents sensitive information from being logged or exposed in error responses.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	sanitized := SanitizeString(err.Error())
	if sanitized == err.Error() {
		// No changes needed, return original error to preserve error chain
		return err
	}

	return &sanitizedError{
		original:  err,
		sanitized: sanitized,
	}
}

// SanitizeString redacts credential patterns from a string.
func SanitizeString(s string) string {
	result := s
	for _, p := range credentialPatterns {
		result = p.re.ReplaceAllString(result, p.repl)
	}
	return result
}

// SanitizeLines returns a sanitized copy of lines, e.g. raw log examples
// about to leave the host.
func SanitizeLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = SanitizeString(line)
	}
	return out
}

// Wrapf wraps an error with a formatted message, sanitizing any credentials in the underlying error.
// This is a replacement for fmt.Errorf("...: %w", err) when the error may contain credentials.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)
	sanitizedErr := SanitizeError(err)

	return fmt.Errorf("%s: %w", msg, sanitizedErr)
}

// sanitizedError wraps an error with a sanitized message.
type sanitizedError struct {
	original  error
	sanitized string
}

func (e *sanitizedError) Error() string {
	return e.sanitized
}

func (e *sanitizedError) Unwrap() error {
	return e.original
}

// ContainsCredentials checks if a string appears to contain credentials.
func ContainsCredentials(s string) bool {
	for _, p := range credentialPatterns {
		if p.re.MatchString(s) {
			return true
		}
	}
	return false
}

// MaskCredential partially masks a credential string for safe logging.
// Example: "1234567890:ABC..." -> "1234567890:***..."
func MaskCredential(s string) string {
	if len(s) < 10 {
		return strings.Repeat("*", len(s))
	}

	if strings.HasPrefix(s, "sk-ant-") {
		return "sk-ant-***..."
	}

	// Telegram bot token format (number:token)
	if idx := strings.Index(s, ":"); idx > 0 && idx < 15 {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) == 2 && len(parts[0]) <= 12 {
			return parts[0] + ":***..."
		}
	}

	// Generic masking: show first 4 chars + "***..."
	return s[:4] + "***..."
}
