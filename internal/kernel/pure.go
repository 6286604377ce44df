package kernel

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

func init() {
	register("echo", CapCompute, cmdEcho)
	register("printf", CapCompute, cmdPrintf)
	register("true", CapCompute, func(*Context, []string) Result { return ok("") })
	register("false", CapCompute, func(*Context, []string) Result { return Result{ExitCode: 1} })
	register("basename", CapCompute, cmdBasename)
	register("dirname", CapCompute, cmdDirname)
	register("sort", CapText, cmdSort)
	register("uniq", CapText, cmdUniq)
	register("wc", CapText, cmdWc)
	register("cut", CapText, cmdCut)
	register("tr", CapText, cmdTr)
	register("rev", CapText, cmdRev)
	register("nl", CapText, cmdNl)
	register("tac", CapText, cmdTac)
}

// inputText resolves command input: stdin when no file operands are given
// (or "-"), otherwise the concatenated contents of the operands via the
// filesystem capability.
func inputText(c *Context, files []string) (string, *Result) {
	if len(files) == 0 {
		return c.Stdin, nil
	}
	var sb strings.Builder
	for _, f := range files {
		if f == "-" {
			sb.WriteString(c.Stdin)
			continue
		}
		if c.FS == nil {
			r := fail(1, f+": no filesystem bound")
			return "", &r
		}
		data, err := c.FS.Read(f)
		if err != nil {
			r := fail(1, err.Error())
			return "", &r
		}
		sb.Write(data)
	}
	return sb.String(), nil
}

// splitLines splits keeping shell semantics: a trailing newline does not
// produce a final empty element.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func cmdEcho(c *Context, args []string) Result {
	noNewline := false
	interpret := false
	i := 0
loop:
	for i < len(args) {
		switch args[i] {
		case "-n":
			noNewline = true
		case "-e":
			interpret = true
		case "-en", "-ne":
			noNewline, interpret = true, true
		default:
			break loop
		}
		i++
	}
	out := strings.Join(args[i:], " ")
	if interpret {
		out = interpretEscapes(out)
	}
	if !noNewline {
		out += "\n"
	}
	return ok(out)
}

func interpretEscapes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		case '0':
			sb.WriteByte(0)
		case 'a':
			sb.WriteByte(7)
		case 'b':
			sb.WriteByte(8)
		case 'e':
			sb.WriteByte(27)
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func cmdPrintf(c *Context, args []string) Result {
	if len(args) == 0 {
		return fail(1, "printf: missing format operand")
	}
	format := interpretEscapes(args[0])
	operands := args[1:]
	var sb strings.Builder
	oi := 0
	next := func() string {
		if oi < len(operands) {
			v := operands[oi]
			oi++
			return v
		}
		return ""
	}
	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' {
			sb.WriteByte(ch)
			continue
		}
		// scan the verb
		j := i + 1
		for j < len(format) && strings.IndexByte("+-# 0123456789.", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			sb.WriteByte('%')
			break
		}
		spec := format[i : j+1]
		verb := format[j]
		i = j
		switch verb {
		case '%':
			sb.WriteByte('%')
		case 's':
			fmt.Fprintf(&sb, spec, next())
		case 'd', 'i':
			n, _ := strconv.ParseInt(strings.TrimSpace(next()), 0, 64)
			fmt.Fprintf(&sb, strings.Replace(spec, "i", "d", 1), n)
		case 'f', 'e', 'g':
			f, _ := strconv.ParseFloat(strings.TrimSpace(next()), 64)
			fmt.Fprintf(&sb, spec, f)
		case 'x', 'X', 'o':
			n, _ := strconv.ParseInt(strings.TrimSpace(next()), 0, 64)
			fmt.Fprintf(&sb, spec, n)
		case 'c':
			v := next()
			if v != "" {
				sb.WriteByte(v[0])
			}
		default:
			sb.WriteString(spec)
		}
	}
	return ok(sb.String())
}

func cmdBasename(c *Context, args []string) Result {
	if len(args) == 0 {
		return fail(1, "basename: missing operand")
	}
	out := path.Base(args[0])
	if len(args) > 1 {
		out = strings.TrimSuffix(out, args[1])
	}
	return ok(out + "\n")
}

func cmdDirname(c *Context, args []string) Result {
	if len(args) == 0 {
		return fail(1, "dirname: missing operand")
	}
	return ok(path.Dir(args[0]) + "\n")
}

func cmdSort(c *Context, args []string) Result {
	reverse, numeric, unique := false, false, false
	var files []string
	for _, a := range args {
		switch {
		case a == "-r":
			reverse = true
		case a == "-n":
			numeric = true
		case a == "-u":
			unique = true
		case a == "-rn" || a == "-nr":
			reverse, numeric = true, true
		case strings.HasPrefix(a, "-"):
			// unsupported flags are ignored
		default:
			files = append(files, a)
		}
	}
	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	lines := splitLines(input)
	if numeric {
		sort.SliceStable(lines, func(i, j int) bool {
			a, _ := strconv.ParseFloat(strings.TrimSpace(lines[i]), 64)
			b, _ := strconv.ParseFloat(strings.TrimSpace(lines[j]), 64)
			return a < b
		})
	} else {
		sort.Strings(lines)
	}
	if reverse {
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
	}
	if unique {
		lines = dedupeAdjacent(lines)
	}
	return ok(joinLines(lines))
}

func dedupeAdjacent(lines []string) []string {
	var out []string
	for i, l := range lines {
		if i == 0 || l != out[len(out)-1] {
			out = append(out, l)
		}
	}
	return out
}

func cmdUniq(c *Context, args []string) Result {
	count, dupOnly := false, false
	var files []string
	for _, a := range args {
		switch a {
		case "-c":
			count = true
		case "-d":
			dupOnly = true
		default:
			if !strings.HasPrefix(a, "-") {
				files = append(files, a)
			}
		}
	}
	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	lines := splitLines(input)
	var sb strings.Builder
	i := 0
	for i < len(lines) {
		j := i
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		n := j - i
		if !dupOnly || n > 1 {
			if count {
				fmt.Fprintf(&sb, "%7d %s\n", n, lines[i])
			} else {
				sb.WriteString(lines[i] + "\n")
			}
		}
		i = j
	}
	return ok(sb.String())
}

func cmdWc(c *Context, args []string) Result {
	var files []string
	countLines, countWords, countBytes := false, false, false
	for _, a := range args {
		switch a {
		case "-l":
			countLines = true
		case "-w":
			countWords = true
		case "-c":
			countBytes = true
		default:
			if !strings.HasPrefix(a, "-") {
				files = append(files, a)
			}
		}
	}
	if !countLines && !countWords && !countBytes {
		countLines, countWords, countBytes = true, true, true
	}
	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	nl := strings.Count(input, "\n")
	nw := len(strings.Fields(input))
	nb := len(input)
	var parts []string
	if countLines {
		parts = append(parts, strconv.Itoa(nl))
	}
	if countWords {
		parts = append(parts, strconv.Itoa(nw))
	}
	if countBytes {
		parts = append(parts, strconv.Itoa(nb))
	}
	return ok(strings.Join(parts, " ") + "\n")
}

func cmdCut(c *Context, args []string) Result {
	delim := "\t"
	var fieldSpec, charSpec string
	var files []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-d" && i+1 < len(args):
			i++
			delim = args[i]
		case strings.HasPrefix(a, "-d"):
			delim = a[2:]
		case a == "-f" && i+1 < len(args):
			i++
			fieldSpec = args[i]
		case strings.HasPrefix(a, "-f"):
			fieldSpec = a[2:]
		case a == "-c" && i+1 < len(args):
			i++
			charSpec = args[i]
		case strings.HasPrefix(a, "-c"):
			charSpec = a[2:]
		case !strings.HasPrefix(a, "-"):
			files = append(files, a)
		}
	}
	if fieldSpec == "" && charSpec == "" {
		return fail(1, "cut: you must specify a list of bytes, characters, or fields")
	}
	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	var sb strings.Builder
	for _, line := range splitLines(input) {
		if charSpec != "" {
			runes := []rune(line)
			var out []rune
			for _, idx := range parseRangeList(charSpec, len(runes)) {
				out = append(out, runes[idx-1])
			}
			sb.WriteString(string(out) + "\n")
			continue
		}
		fields := strings.Split(line, delim)
		if len(fields) == 1 {
			sb.WriteString(line + "\n")
			continue
		}
		var out []string
		for _, idx := range parseRangeList(fieldSpec, len(fields)) {
			out = append(out, fields[idx-1])
		}
		sb.WriteString(strings.Join(out, delim) + "\n")
	}
	return ok(sb.String())
}

// parseRangeList expands "1,3-5" into indexes bounded by max (1-based).
func parseRangeList(spec string, max int) []int {
	var out []int
	for _, part := range strings.Split(spec, ",") {
		lo, hi := 1, max
		if dash := strings.IndexByte(part, '-'); dash >= 0 {
			if part[:dash] != "" {
				lo, _ = strconv.Atoi(part[:dash])
			}
			if part[dash+1:] != "" {
				hi, _ = strconv.Atoi(part[dash+1:])
			}
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				continue
			}
			lo, hi = n, n
		}
		for i := lo; i <= hi && i <= max; i++ {
			if i >= 1 {
				out = append(out, i)
			}
		}
	}
	return out
}

func cmdTr(c *Context, args []string) Result {
	deleteMode := false
	var sets []string
	for _, a := range args {
		if a == "-d" {
			deleteMode = true
			continue
		}
		sets = append(sets, a)
	}
	if len(sets) == 0 || (!deleteMode && len(sets) < 2) {
		return fail(1, "tr: missing operand")
	}
	from := expandTrSet(sets[0])
	if deleteMode {
		del := map[rune]bool{}
		for _, r := range from {
			del[r] = true
		}
		var sb strings.Builder
		for _, r := range c.Stdin {
			if !del[r] {
				sb.WriteRune(r)
			}
		}
		return ok(sb.String())
	}
	to := expandTrSet(sets[1])
	mapping := map[rune]rune{}
	for i, r := range from {
		if i < len(to) {
			mapping[r] = to[i]
		} else if len(to) > 0 {
			mapping[r] = to[len(to)-1]
		}
	}
	var sb strings.Builder
	for _, r := range c.Stdin {
		if m, okm := mapping[r]; okm {
			sb.WriteRune(m)
		} else {
			sb.WriteRune(r)
		}
	}
	return ok(sb.String())
}

func expandTrSet(s string) []rune {
	switch s {
	case "[:lower:]":
		s = "abcdefghijklmnopqrstuvwxyz"
	case "[:upper:]":
		s = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	case "[:digit:]":
		s = "0123456789"
	case "[:space:]":
		s = " \t\n\r"
	}
	var out []rune
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && runes[i+1] == '-' && runes[i+2] >= runes[i] {
			for r := runes[i]; r <= runes[i+2]; r++ {
				out = append(out, r)
			}
			i += 2
			continue
		}
		out = append(out, runes[i])
	}
	return out
}

func cmdRev(c *Context, args []string) Result {
	input, errRes := inputText(c, args)
	if errRes != nil {
		return *errRes
	}
	var sb strings.Builder
	for _, line := range splitLines(input) {
		runes := []rune(line)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		sb.WriteString(string(runes) + "\n")
	}
	return ok(sb.String())
}

func cmdNl(c *Context, args []string) Result {
	input, errRes := inputText(c, args)
	if errRes != nil {
		return *errRes
	}
	var sb strings.Builder
	n := 0
	for _, line := range splitLines(input) {
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}
		n++
		fmt.Fprintf(&sb, "%6d\t%s\n", n, line)
	}
	return ok(sb.String())
}

func cmdTac(c *Context, args []string) Result {
	input, errRes := inputText(c, args)
	if errRes != nil {
		return *errRes
	}
	lines := splitLines(input)
	var sb strings.Builder
	for i := len(lines) - 1; i >= 0; i-- {
		sb.WriteString(lines[i] + "\n")
	}
	return ok(sb.String())
}
