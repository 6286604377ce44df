package kernel

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

func init() {
	register("tee", CapText, cmdTee)
	register("xargs", CapText, cmdXargs)
	register("base64", "base64", cmdBase64)
	register("envsubst", "envsubst", cmdEnvsubst)
}

func cmdTee(c *Context, args []string) Result {
	appendMode := false
	var files []string
	for _, a := range args {
		if a == "-a" || a == "--append" {
			appendMode = true
			continue
		}
		files = append(files, a)
	}
	if len(files) > 0 && c.FS == nil {
		return fail(1, "tee: no filesystem bound")
	}
	for _, f := range files {
		var err error
		if appendMode {
			err = c.FS.Append(f, []byte(c.Stdin))
		} else {
			err = c.FS.Write(f, []byte(c.Stdin))
		}
		if err != nil {
			return fail(1, "tee: "+err.Error())
		}
	}
	return ok(c.Stdin)
}

func cmdXargs(c *Context, args []string) Result {
	if c.Execute == nil {
		return fail(1, "xargs: no executor bound")
	}
	delim := ""
	nullSep := false
	maxArgs := 0
	maxChars := 0
	placeholder := ""
	parallel := 1
	var cmdWords []string
	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-0":
			nullSep = true
		case a == "-d" && i+1 < len(args):
			i++
			delim = interpretEscapes(args[i])
		case strings.HasPrefix(a, "-d") && len(a) > 2:
			delim = interpretEscapes(a[2:])
		case a == "-n" && i+1 < len(args):
			i++
			maxArgs, _ = strconv.Atoi(args[i])
		case strings.HasPrefix(a, "-n") && len(a) > 2:
			maxArgs, _ = strconv.Atoi(a[2:])
		case a == "-s" && i+1 < len(args):
			i++
			maxChars, _ = strconv.Atoi(args[i])
		case a == "-I" && i+1 < len(args):
			i++
			placeholder = args[i]
		case a == "-P" && i+1 < len(args):
			i++
			parallel, _ = strconv.Atoi(args[i])
		case a == "-r" || a == "--no-run-if-empty":
			// default behavior here
		default:
			cmdWords = args[i:]
			i = len(args)
		}
	}
	if len(cmdWords) == 0 {
		cmdWords = []string{"echo"}
	}

	var items []string
	switch {
	case nullSep:
		items = strings.Split(strings.TrimSuffix(c.Stdin, "\x00"), "\x00")
	case delim != "":
		items = strings.Split(strings.TrimSuffix(c.Stdin, delim), delim)
	default:
		items = strings.Fields(c.Stdin)
	}
	var clean []string
	for _, it := range items {
		if it != "" {
			clean = append(clean, it)
		}
	}
	if len(clean) == 0 {
		return ok("")
	}

	// build command lines
	var cmdLines []string
	base := strings.Join(cmdWords, " ")
	switch {
	case placeholder != "":
		for _, it := range clean {
			cmdLines = append(cmdLines, strings.ReplaceAll(base, placeholder, it))
		}
	case maxArgs > 0:
		for start := 0; start < len(clean); start += maxArgs {
			end := start + maxArgs
			if end > len(clean) {
				end = len(clean)
			}
			cmdLines = append(cmdLines, base+" "+strings.Join(clean[start:end], " "))
		}
	case maxChars > 0:
		cur := base
		for _, it := range clean {
			if len(cur)+1+len(it) > maxChars && cur != base {
				cmdLines = append(cmdLines, cur)
				cur = base
			}
			cur += " " + it
		}
		cmdLines = append(cmdLines, cur)
	default:
		cmdLines = append(cmdLines, base+" "+strings.Join(clean, " "))
	}

	if parallel > 1 {
		return runXargsParallel(c, cmdLines, parallel)
	}

	var stdout, stderr strings.Builder
	exitCode := 0
	for _, line := range cmdLines {
		if err := c.context().Err(); err != nil {
			return fail(130, "xargs: cancelled")
		}
		res := c.Execute(c.context(), line, "")
		stdout.WriteString(res.Stdout)
		stderr.WriteString(res.Stderr)
		if res.ExitCode != 0 {
			exitCode = 123
		}
	}
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}
}

// runXargsParallel runs command lines concurrently, preserving output order.
func runXargsParallel(c *Context, cmdLines []string, parallel int) Result {
	results := make([]Result, len(cmdLines))
	g, ctx := errgroup.WithContext(c.context())
	g.SetLimit(parallel)
	for i, line := range cmdLines {
		g.Go(func() error {
			results[i] = c.Execute(ctx, line, "")
			return nil
		})
	}
	_ = g.Wait()
	var stdout, stderr strings.Builder
	exitCode := 0
	for _, res := range results {
		stdout.WriteString(res.Stdout)
		stderr.WriteString(res.Stderr)
		if res.ExitCode != 0 {
			exitCode = 123
		}
	}
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}
}

func cmdBase64(c *Context, args []string) Result {
	decode := false
	urlSafe := false
	wrap := 76
	var files []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-d" || a == "--decode":
			decode = true
		case a == "--url":
			urlSafe = true
		case a == "-w" && i+1 < len(args):
			i++
			wrap, _ = strconv.Atoi(args[i])
		case strings.HasPrefix(a, "-w"):
			wrap, _ = strconv.Atoi(a[2:])
		case strings.HasPrefix(a, "-") && a != "-":
			return fail(1, "base64: unsupported option "+a)
		default:
			files = append(files, a)
		}
	}
	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	enc := base64.StdEncoding
	if urlSafe {
		enc = base64.URLEncoding
	}
	if decode {
		compact := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == ' ' {
				return -1
			}
			return r
		}, input)
		data, err := enc.DecodeString(compact)
		if err != nil {
			// tolerate unpadded input
			data, err = enc.WithPadding(base64.NoPadding).DecodeString(compact)
			if err != nil {
				return fail(1, "base64: invalid input")
			}
		}
		return ok(string(data))
	}
	encoded := enc.EncodeToString([]byte(input))
	if wrap > 0 {
		var sb strings.Builder
		for len(encoded) > wrap {
			sb.WriteString(encoded[:wrap] + "\n")
			encoded = encoded[wrap:]
		}
		sb.WriteString(encoded + "\n")
		return ok(sb.String())
	}
	return ok(encoded + "\n")
}

// cmdEnvsubst substitutes $VAR and ${VAR} forms, including the
// ${VAR:-def} ${VAR:+alt} ${VAR:?msg} ${VAR:=def} parameter operators,
// from the provided environment map.
func cmdEnvsubst(c *Context, args []string) Result {
	input, errRes := inputText(c, nil)
	if errRes != nil {
		return *errRes
	}
	env := c.Env
	if env == nil {
		env = map[string]string{}
	}
	var sb strings.Builder
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if ch != '$' {
			sb.WriteByte(ch)
			continue
		}
		if i+1 < len(input) && input[i+1] == '{' {
			end := strings.IndexByte(input[i+2:], '}')
			if end < 0 {
				sb.WriteString(input[i:])
				break
			}
			body := input[i+2 : i+2+end]
			val, err := expandParam(body, env)
			if err != nil {
				return fail(1, "envsubst: "+err.Error())
			}
			sb.WriteString(val)
			i += 2 + end
			continue
		}
		j := i + 1
		if j < len(input) && (input[j] == '_' || input[j] >= 'a' && input[j] <= 'z' || input[j] >= 'A' && input[j] <= 'Z') {
			for j < len(input) && isNameChar(input[j]) {
				j++
			}
		}
		if j == i+1 {
			sb.WriteByte('$')
			continue
		}
		sb.WriteString(env[input[i+1:j]])
		i = j - 1
	}
	return ok(sb.String())
}

func isNameChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func expandParam(body string, env map[string]string) (string, error) {
	for _, op := range []string{":-", ":+", ":?", ":="} {
		if idx := strings.Index(body, op); idx > 0 {
			name, word := body[:idx], body[idx+2:]
			val := env[name]
			switch op {
			case ":-":
				if val == "" {
					return word, nil
				}
				return val, nil
			case ":+":
				if val != "" {
					return word, nil
				}
				return "", nil
			case ":?":
				if val == "" {
					msg := word
					if msg == "" {
						msg = name + ": parameter null or not set"
					}
					return "", fmt.Errorf("%s", msg)
				}
				return val, nil
			case ":=":
				if val == "" {
					env[name] = word
					return word, nil
				}
				return val, nil
			}
		}
	}
	return env[body], nil
}
