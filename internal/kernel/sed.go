package kernel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

func init() {
	register("sed", CapText, cmdSed)
}

// sedAddr selects lines. Zero value matches every line.
type sedAddr struct {
	start, end int // 1-based; 0 = unset
	last       bool
	re         *regexp.Regexp
	set        bool
}

func (a sedAddr) matches(lineNo, total int, line string) bool {
	if !a.set {
		return true
	}
	if a.re != nil {
		return a.re.MatchString(line)
	}
	if a.last {
		return lineNo == total
	}
	if a.end > 0 {
		return lineNo >= a.start && lineNo <= a.end
	}
	return lineNo == a.start
}

type sedOpKind int

const (
	sedSub sedOpKind = iota
	sedPrint
	sedDelete
)

type sedOp struct {
	kind   sedOpKind
	addr   sedAddr
	re     *regexp.Regexp
	repl   string
	global bool
	print  bool // p flag on s///
}

func cmdSed(c *Context, args []string) Result {
	quiet, extended, inPlace := false, false, false
	suffix := ""
	var exprs []string
	var files []string
	expectExpr := false

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case expectExpr:
			exprs = append(exprs, a)
			expectExpr = false
		case a == "-n":
			quiet = true
		case a == "-E" || a == "-r":
			extended = true
		case a == "-e":
			expectExpr = true
		case strings.HasPrefix(a, "-i"):
			inPlace = true
			suffix = a[2:]
		case strings.HasPrefix(a, "-") && a != "-":
			return fail(1, "sed: unsupported option "+a)
		default:
			if len(exprs) == 0 {
				exprs = append(exprs, a)
			} else {
				files = append(files, a)
			}
		}
	}
	if expectExpr {
		return fail(1, "sed: option -e requires an argument")
	}

	var ops []sedOp
	for _, e := range exprs {
		parsed, err := parseSedExprs(e, extended)
		if err != nil {
			return fail(1, "sed: "+err.Error())
		}
		ops = append(ops, parsed...)
	}

	if inPlace {
		if c.FS == nil {
			return fail(1, "sed: -i requires a filesystem")
		}
		if len(files) == 0 {
			return fail(1, "sed: -i requires file operands")
		}
		for _, f := range files {
			data, err := c.FS.Read(f)
			if err != nil {
				return fail(1, "sed: "+err.Error())
			}
			if suffix != "" {
				if err := c.FS.Write(f+suffix, data); err != nil {
					return fail(1, "sed: "+err.Error())
				}
			}
			out := applySed(string(data), ops, quiet)
			if err := c.FS.Write(f, []byte(out)); err != nil {
				return fail(1, "sed: "+err.Error())
			}
		}
		return ok("")
	}

	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	return ok(applySed(input, ops, quiet))
}

// applySed runs the expression chain over every line. Delete short-circuits
// the remaining ops for that line. Input ending in a newline yields output
// ending in a newline.
func applySed(input string, ops []sedOp, quiet bool) string {
	hadNewline := strings.HasSuffix(input, "\n")
	lines := splitLines(input)
	total := len(lines)
	var out []string

	for i, line := range lines {
		lineNo := i + 1
		deleted := false
		var extraPrints []string
		for _, op := range ops {
			switch op.kind {
			case sedDelete:
				if op.addr.matches(lineNo, total, line) {
					deleted = true
				}
			case sedPrint:
				if op.addr.matches(lineNo, total, line) {
					extraPrints = append(extraPrints, line)
				}
			case sedSub:
				if !op.addr.matches(lineNo, total, line) {
					continue
				}
				if op.global {
					line = op.re.ReplaceAllString(line, op.repl)
				} else if idx := op.re.FindStringSubmatchIndex(line); idx != nil {
					expanded := op.re.ExpandString(nil, op.repl, line, idx)
					line = line[:idx[0]] + string(expanded) + line[idx[1]:]
				}
				if op.print {
					extraPrints = append(extraPrints, line)
				}
			}
			if deleted {
				break
			}
		}
		if deleted {
			continue
		}
		if quiet {
			out = append(out, extraPrints...)
		} else {
			out = append(out, line)
			out = append(out, extraPrints...)
		}
	}
	if len(out) == 0 {
		return ""
	}
	result := strings.Join(out, "\n")
	if hadNewline {
		result += "\n"
	}
	return result
}

// parseSedExprs splits a semicolon-chained sed script into ops.
func parseSedExprs(script string, extended bool) ([]sedOp, error) {
	var ops []sedOp
	for _, part := range splitSedScript(script) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		op, err := parseSedExpr(part, extended)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// splitSedScript splits on ; outside s/// bodies.
func splitSedScript(script string) []string {
	var parts []string
	depth := 0
	var delim byte
	start := 0
	for i := 0; i < len(script); i++ {
		c := script[i]
		if depth > 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == delim {
				depth--
			}
			continue
		}
		if c == 's' && i+1 < len(script) && (i == 0 || script[i-1] == ';') {
			// the next loop pass lands on the opening delimiter, the first
			// of the three that close out the s command
			delim = script[i+1]
			depth = 3
			continue
		}
		if c == ';' {
			parts = append(parts, script[start:i])
			start = i + 1
		}
	}
	parts = append(parts, script[start:])
	return parts
}

func parseSedExpr(expr string, extended bool) (sedOp, error) {
	// leading address: N | N,M | $ | /re/
	addr, rest, err := parseSedAddr(expr, extended)
	if err != nil {
		return sedOp{}, err
	}
	if rest == "" {
		return sedOp{}, fmt.Errorf("missing command in expression %q", expr)
	}
	switch rest[0] {
	case 'p':
		return sedOp{kind: sedPrint, addr: addr}, nil
	case 'd':
		return sedOp{kind: sedDelete, addr: addr}, nil
	case 's':
		if len(rest) < 2 {
			return sedOp{}, fmt.Errorf("unterminated s command")
		}
		delim := rest[1]
		fields, err := splitSedSub(rest[2:], delim)
		if err != nil {
			return sedOp{}, err
		}
		re, err := compileSedPattern(fields[0], extended, strings.Contains(fields[2], "i"))
		if err != nil {
			return sedOp{}, err
		}
		op := sedOp{kind: sedSub, addr: addr, re: re, repl: sedReplacement(fields[1])}
		for _, f := range fields[2] {
			switch f {
			case 'g':
				op.global = true
			case 'p':
				op.print = true
			case 'i':
				// handled in compile
			default:
				return sedOp{}, fmt.Errorf("unknown s flag %q", string(f))
			}
		}
		return op, nil
	default:
		return sedOp{}, fmt.Errorf("unsupported command %q", string(rest[0]))
	}
}

func parseSedAddr(expr string, extended bool) (sedAddr, string, error) {
	var addr sedAddr
	i := 0
	switch {
	case len(expr) > 0 && expr[0] == '$':
		addr.last, addr.set = true, true
		i = 1
	case len(expr) > 0 && expr[0] == '/':
		end := strings.IndexByte(expr[1:], '/')
		if end < 0 {
			return addr, "", fmt.Errorf("unterminated address %q", expr)
		}
		re, err := compileSedPattern(expr[1:1+end], extended, false)
		if err != nil {
			return addr, "", err
		}
		addr.re, addr.set = re, true
		i = end + 2
	case len(expr) > 0 && expr[0] >= '0' && expr[0] <= '9':
		j := 0
		for j < len(expr) && expr[j] >= '0' && expr[j] <= '9' {
			j++
		}
		addr.start, _ = strconv.Atoi(expr[:j])
		addr.set = true
		i = j
		if i < len(expr) && expr[i] == ',' {
			i++
			k := i
			for k < len(expr) && expr[k] >= '0' && expr[k] <= '9' {
				k++
			}
			if k == i {
				return addr, "", fmt.Errorf("bad address range in %q", expr)
			}
			addr.end, _ = strconv.Atoi(expr[i:k])
			i = k
		}
	}
	return addr, expr[i:], nil
}

// splitSedSub splits "re<d>repl<d>flags" on the unescaped delimiter.
func splitSedSub(s string, delim byte) ([3]string, error) {
	var fields [3]string
	field := 0
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == delim {
			sb.WriteByte(delim)
			i++
			continue
		}
		if c == delim {
			fields[field] = sb.String()
			sb.Reset()
			field++
			if field == 2 {
				fields[2] = s[i+1:]
				return fields, nil
			}
			continue
		}
		sb.WriteByte(c)
	}
	if field < 2 {
		return fields, fmt.Errorf("unterminated s command")
	}
	return fields, nil
}

// compileSedPattern translates BRE (or passes ERE through) to the host
// regexp flavor.
func compileSedPattern(pattern string, extended, ignoreCase bool) (*regexp.Regexp, error) {
	translated := pattern
	if !extended {
		translated = breToGo(pattern)
	}
	if ignoreCase {
		translated = "(?i)" + translated
	}
	return regexp.Compile(translated)
}

// breToGo converts POSIX basic regular expressions to Go syntax:
// \( \) \{ \} \+ \? \| are operators; the bare characters are literals.
func breToGo(p string) string {
	var sb strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '\\' && i+1 < len(p) {
			next := p[i+1]
			switch next {
			case '(', ')', '{', '}', '+', '?', '|':
				sb.WriteByte(next)
				i++
				continue
			default:
				sb.WriteByte('\\')
				sb.WriteByte(next)
				i++
				continue
			}
		}
		switch c {
		case '(', ')', '{', '}', '+', '?', '|':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// sedReplacement converts sed replacement syntax (&, \1..\9) to Go's
// Expand/ReplaceAll syntax (${0}, ${1}..).
func sedReplacement(repl string) string {
	var sb strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		switch {
		case c == '$':
			sb.WriteString("$$")
		case c == '&':
			sb.WriteString("${0}")
		case c == '\\' && i+1 < len(repl):
			next := repl[i+1]
			if next >= '1' && next <= '9' {
				sb.WriteString("${" + string(next) + "}")
			} else if next == '&' || next == '\\' {
				sb.WriteByte(next)
			} else if next == 'n' {
				sb.WriteByte('\n')
			} else if next == 't' {
				sb.WriteByte('\t')
			} else {
				sb.WriteByte(next)
			}
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
