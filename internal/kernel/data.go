package kernel

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/runshield/bashx/internal/kernel/jq"
	"github.com/runshield/bashx/internal/kernel/yq"
)

func init() {
	register("jq", "jq", cmdJq)
	register("yq", "yq", cmdYq)
}

func cmdJq(c *Context, args []string) Result {
	mode := ""
	vars := map[string]any{}
	var query string
	haveQuery := false
	var files []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-r" || a == "--raw-output":
			mode = "raw"
		case a == "-c" || a == "--compact-output":
			mode = "compact"
		case a == "-t" || a == "--tab":
			mode = "tab"
		case a == "--arg" && i+2 < len(args):
			vars[args[i+1]] = args[i+2]
			i += 2
		case a == "--argjson" && i+2 < len(args):
			var v any
			if err := json.Unmarshal([]byte(args[i+2]), &v); err != nil {
				return fail(2, "jq: invalid --argjson value for $"+args[i+1])
			}
			vars[args[i+1]] = v
			i += 2
		case a == "-n" || a == "--null-input":
			// supported implicitly: empty stdin decodes to null below
		case strings.HasPrefix(a, "-") && a != "-" && a != "." && !strings.HasPrefix(a, ".["):
			return fail(2, "jq: unsupported option "+a)
		case !haveQuery:
			query = a
			haveQuery = true
		default:
			files = append(files, a)
		}
	}
	if !haveQuery {
		query = "."
	}
	q, err := jq.Compile(query)
	if err != nil {
		return fail(3, err.Error())
	}
	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	var doc any
	trimmed := strings.TrimSpace(input)
	if trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return fail(4, "jq: invalid JSON input: "+err.Error())
		}
	}
	outputs, err := q.Run(doc, vars)
	if err != nil {
		return fail(5, "jq: "+err.Error())
	}
	var sb strings.Builder
	for _, v := range outputs {
		sb.WriteString(jq.Encode(v, mode) + "\n")
	}
	return ok(sb.String())
}

var yqAssignRe = regexp.MustCompile(`^\s*(\.[^=\s]+)\s*=\s*(.+)$`)
var yqDelRe = regexp.MustCompile(`^\s*del\((\.[^)]*)\)\s*$`)

func cmdYq(c *Context, args []string) Result {
	format := "yaml"
	inPlace := false
	var expr string
	haveExpr := false
	var files []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case (a == "-o" || a == "--output-format") && i+1 < len(args):
			i++
			format = args[i]
		case strings.HasPrefix(a, "-o=") :
			format = a[3:]
		case a == "-i" || a == "--in-place":
			inPlace = true
		case a == "-r":
			// raw scalar output: query results are printed as jq -r prints
			// them; whole-document output stays yaml
			format = "raw"
		case strings.HasPrefix(a, "-") && a != "-" && a != ".":
			return fail(1, "yq: unsupported option "+a)
		case !haveExpr:
			expr = a
			haveExpr = true
		default:
			files = append(files, a)
		}
	}
	if !haveExpr {
		expr = "."
	}
	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	doc, err := yq.Decode(input)
	if err != nil {
		return fail(1, err.Error())
	}

	// assignment and deletion expressions mutate the whole document
	if m := yqAssignRe.FindStringSubmatch(expr); m != nil && !strings.HasPrefix(m[2], "=") {
		updated, err := yq.Assign(doc, m[1], yq.ParseValue(m[2]))
		if err != nil {
			return fail(1, err.Error())
		}
		return yqEmit(c, updated, format, inPlace, files)
	}
	if m := yqDelRe.FindStringSubmatch(expr); m != nil {
		updated, err := yq.Delete(doc, m[1])
		if err != nil {
			return fail(1, err.Error())
		}
		return yqEmit(c, updated, format, inPlace, files)
	}

	outputs, err := yq.Query(doc, expr, nil)
	if err != nil {
		return fail(1, err.Error())
	}
	var sb strings.Builder
	for _, v := range outputs {
		if format == "raw" {
			sb.WriteString(jq.Encode(v, "raw") + "\n")
			continue
		}
		encoded, err := yq.Encode(v, format)
		if err != nil {
			return fail(1, err.Error())
		}
		sb.WriteString(encoded)
	}
	return ok(sb.String())
}

func yqEmit(c *Context, doc any, format string, inPlace bool, files []string) Result {
	if format == "raw" {
		format = "yaml"
	}
	encoded, err := yq.Encode(doc, format)
	if err != nil {
		return fail(1, err.Error())
	}
	if inPlace {
		if c.FS == nil || len(files) == 0 {
			return fail(1, "yq: -i requires a file operand")
		}
		if err := c.FS.Write(files[0], []byte(encoded)); err != nil {
			return fail(1, "yq: "+err.Error())
		}
		return ok("")
	}
	return ok(encoded)
}
