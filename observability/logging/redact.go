package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// MaskSecret returns a slog.Attr whose value is replaced by the redaction
// placeholder. Empty values pass through so absent secrets do not log as
// redacted noise.
func MaskSecret(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
