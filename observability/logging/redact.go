package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"secret":        {},
	"token":         {},
	"password":      {},
	"privatekey":    {},
	"private_key":   {},
	"seed":          {},
	"mnemonic":      {},
	"authorization": {},
}

// IsSensitive reports whether a log key must never be emitted in clear text.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := sensitiveKeys[normalized]
	return ok
}

// MaskValue returns the canonical redacted placeholder for non-empty values. Empty values
// are returned unchanged to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a slog.Attr that redacts the supplied value when the key is
// sensitive. The original key casing is preserved for readability.
func MaskField(key, value string) slog.Attr {
	if !IsSensitive(key) {
		return slog.String(key, value)
	}
	return slog.String(key, MaskValue(value))
}

// RedactAttr is the handler ReplaceAttr hook masking sensitive attributes.
func RedactAttr(_ []string, attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	return MaskField(attr.Key, attr.Value.String())
}
