// Package redact scrubs credentials from command text before it reaches
// the audit log. Patterns favor recall over precision: an over-redacted
// audit line is recoverable, a leaked key is not.
package redact

import (
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	// key=value and key: value credential assignments
	regexp.MustCompile(`(?i)(api[_-]?key|secret[_-]?key|access[_-]?token|auth[_-]?token|password|passwd|client[_-]?secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`),
	// provider-prefixed tokens
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`xox[baprs]-[0-9A-Za-z-]{10,}`),
	regexp.MustCompile(`sk_live_[0-9a-zA-Z]{24,}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	// bearer headers and URL userinfo
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{16,}`),
	regexp.MustCompile(`https?://[^/\s:]+:[^@\s]+@`),
	// private key blocks
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
}

// Redact replaces credential-shaped substrings with a placeholder.
func Redact(input string) string {
	out := input
	for _, p := range secretPatterns {
		out = p.ReplaceAllString(out, placeholder)
	}
	return out
}

// RedactArgs redacts each argument independently.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = Redact(a)
	}
	return out
}

var sensitiveEnvNames = []string{
	"TOKEN", "SECRET", "PASSWORD", "PASSWD", "API_KEY", "APIKEY",
	"ACCESS_KEY", "PRIVATE_KEY", "DATABASE_URL", "REDIS_URL",
}

// RedactEnv hides values of credential-named variables in an env map.
func RedactEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		upper := strings.ToUpper(k)
		hidden := false
		for _, name := range sensitiveEnvNames {
			if strings.Contains(upper, name) {
				hidden = true
				break
			}
		}
		if hidden {
			out[k] = placeholder
		} else {
			out[k] = v
		}
	}
	return out
}
