// Package unicode detects codepoint smuggling in command strings:
// zero-width characters, bidi overrides and raw control bytes that let a
// displayed command differ from the executed one.
package unicode

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Threat is one detected smuggling indicator.
type Threat struct {
	Category  string // "zero-width", "bidi-override", "control-char", "invalid-utf8", "tag-char"
	Codepoint string // "U+200B"
	Position  int    // byte offset
}

// Result is the outcome of a scan.
type Result struct {
	Clean     bool
	Threats   []Threat
	Sanitized string
}

// Scan inspects input for smuggling indicators and returns the input with
// the offending runes stripped.
func Scan(input string) Result {
	res := Result{Clean: true}
	var sanitized strings.Builder
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		if r == utf8.RuneError && size == 1 {
			res.Clean = false
			res.Threats = append(res.Threats, Threat{
				Category:  "invalid-utf8",
				Codepoint: fmt.Sprintf("0x%02X", input[i]),
				Position:  i,
			})
			i++
			continue
		}
		if cat := classify(r); cat != "" {
			res.Clean = false
			res.Threats = append(res.Threats, Threat{
				Category:  cat,
				Codepoint: fmt.Sprintf("U+%04X", r),
				Position:  i,
			})
			i += size
			continue
		}
		sanitized.WriteRune(r)
		i += size
	}
	res.Sanitized = sanitized.String()
	return res
}

func classify(r rune) string {
	switch r {
	case 0x200B, 0x200C, 0x200D, 0xFEFF, 0x2060:
		return "zero-width"
	case 0x202A, 0x202B, 0x202C, 0x202D, 0x202E, 0x2066, 0x2067, 0x2068, 0x2069:
		return "bidi-override"
	}
	if r >= 0xE0000 && r <= 0xE007F {
		return "tag-char"
	}
	if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
		return "control-char"
	}
	return ""
}

// Describe renders one threat for a policy reason string.
func (t Threat) Describe() string {
	return fmt.Sprintf("%s character %s at offset %d", t.Category, t.Codepoint, t.Position)
}
