package dispatch

import (
	"regexp"
	"strings"
)

// SplitPipeline divides a command string on | boundaries, honoring single
// and double quotes. || is a list operator and stays inside its segment;
// an escaped \| is preserved verbatim.
func SplitPipeline(command string) []string {
	var segments []string
	var cur strings.Builder
	inSingle, inDouble := false, false
	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case c == '\\' && i+1 < len(command) && !inSingle:
			cur.WriteByte(c)
			i++
			cur.WriteByte(command[i])
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			cur.WriteByte(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			cur.WriteByte(c)
		case c == '|' && !inSingle && !inDouble:
			if i+1 < len(command) && command[i+1] == '|' {
				cur.WriteString("||")
				i++
				continue
			}
			segments = append(segments, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" || len(segments) == 0 {
		segments = append(segments, s)
	}
	return segments
}

var stdinRedirectRe = regexp.MustCompile(`^(.+?)\s*<\s*(\S+)\s*$`)

// splitStdinRedirect rewrites "cmd < file" into (cmd, file). Returns the
// input untouched when no trailing input redirect is present, or when the
// < belongs to a heredoc/herestring.
func splitStdinRedirect(segment string) (string, string) {
	if strings.Contains(segment, "<<") {
		return segment, ""
	}
	m := stdinRedirectRe.FindStringSubmatch(segment)
	if m == nil {
		return segment, ""
	}
	// a < inside quotes is data, not a redirect
	if quoteBalanced(m[1]) {
		return m[1], m[2]
	}
	return segment, ""
}

func quoteBalanced(s string) bool {
	single, double := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			single++
		case '"':
			double++
		}
	}
	return single%2 == 0 && double%2 == 0
}
