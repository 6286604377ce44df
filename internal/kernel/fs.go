package kernel

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/runshield/bashx/internal/vfs"
)

func init() {
	register("cat", CapFS, cmdCat)
	register("head", CapFS, cmdHead)
	register("tail", CapFS, cmdTail)
	register("grep", CapFS, cmdGrep)
	register("egrep", CapFS, cmdEgrep)
	register("fgrep", CapFS, cmdFgrep)
	register("test", CapFS, cmdTest)
	register("[", CapFS, cmdTestBracket)
	registerFS("ls", cmdLs)
	registerFS("stat", cmdStat)
	registerFS("readlink", cmdReadlink)
	registerFS("find", cmdFind)
	registerFS("mkdir", cmdMkdir)
	registerFS("rmdir", cmdRmdir)
	registerFS("rm", cmdRm)
	registerFS("unlink", cmdUnlink)
	registerFS("cp", cmdCp)
	registerFS("mv", cmdMv)
	registerFS("touch", cmdTouch)
	registerFS("truncate", cmdTruncate)
	registerFS("ln", cmdLn)
	registerFS("chmod", cmdChmod)
	registerFS("chown", cmdChown)
}

func cmdCat(c *Context, args []string) Result {
	numbered := false
	var files []string
	for _, a := range args {
		if a == "-n" {
			numbered = true
			continue
		}
		files = append(files, a)
	}
	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	if !numbered {
		return ok(input)
	}
	var sb strings.Builder
	for i, line := range splitLines(input) {
		fmt.Fprintf(&sb, "%6d\t%s\n", i+1, line)
	}
	return ok(sb.String())
}

// parseCountFlag handles -n N, -nN and the legacy -N forms.
func parseCountFlag(args []string) (int, []string, bool) {
	count := 10
	var files []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-n" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return 0, nil, false
			}
			count = n
		case strings.HasPrefix(a, "-n") && len(a) > 2:
			n, err := strconv.Atoi(a[2:])
			if err != nil {
				return 0, nil, false
			}
			count = n
		case len(a) > 1 && a[0] == '-' && a[1] >= '0' && a[1] <= '9':
			n, err := strconv.Atoi(a[1:])
			if err != nil {
				return 0, nil, false
			}
			count = n
		case strings.HasPrefix(a, "-") && a != "-":
			return 0, nil, false
		default:
			files = append(files, a)
		}
	}
	return count, files, true
}

func cmdHead(c *Context, args []string) Result {
	count, files, okF := parseCountFlag(args)
	if !okF {
		return fail(1, "head: invalid option")
	}
	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	lines := splitLines(input)
	if count < len(lines) {
		lines = lines[:count]
	}
	return ok(joinLines(lines))
}

func cmdTail(c *Context, args []string) Result {
	count, files, okF := parseCountFlag(args)
	if !okF {
		return fail(1, "tail: invalid option")
	}
	input, errRes := inputText(c, files)
	if errRes != nil {
		return *errRes
	}
	lines := splitLines(input)
	if count < len(lines) {
		lines = lines[len(lines)-count:]
	}
	return ok(joinLines(lines))
}

func cmdEgrep(c *Context, args []string) Result {
	return cmdGrep(c, append([]string{"-E"}, args...))
}

func cmdFgrep(c *Context, args []string) Result {
	return cmdGrep(c, append([]string{"-F"}, args...))
}

func cmdGrep(c *Context, args []string) Result {
	ignoreCase, invert, lineNum, countOnly, filesOnly, quiet, fixed, extended, onlyMatch, recursive := false, false, false, false, false, false, false, false, false, false
	pattern := ""
	havePattern := false
	var files []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-i":
			ignoreCase = true
		case a == "-v":
			invert = true
		case a == "-n":
			lineNum = true
		case a == "-c":
			countOnly = true
		case a == "-l":
			filesOnly = true
		case a == "-q":
			quiet = true
		case a == "-F":
			fixed = true
		case a == "-E":
			extended = true
		case a == "-o":
			onlyMatch = true
		case a == "-r" || a == "-R":
			recursive = true
		case a == "-e" && i+1 < len(args):
			i++
			pattern = args[i]
			havePattern = true
		case strings.HasPrefix(a, "-") && a != "-":
			return fail(2, "grep: unsupported option "+a)
		case !havePattern:
			pattern = a
			havePattern = true
		default:
			files = append(files, a)
		}
	}
	if !havePattern {
		return fail(2, "grep: missing pattern")
	}
	var re *regexp.Regexp
	var err error
	if fixed {
		re, err = regexp.Compile(regexp.QuoteMeta(pattern))
	} else if extended {
		re, err = regexp.Compile(pattern)
	} else {
		re, err = regexp.Compile(breToGo(pattern))
	}
	if err != nil {
		return fail(2, "grep: invalid pattern: "+err.Error())
	}
	if ignoreCase {
		re, _ = regexp.Compile("(?i)" + re.String())
	}

	if recursive {
		if c.FS == nil {
			return fail(2, "grep: no filesystem bound")
		}
		var expanded []string
		for _, f := range files {
			info, statErr := c.FS.Stat(f)
			if statErr != nil {
				return fail(2, "grep: "+statErr.Error())
			}
			if info.IsDirectory() {
				entries, _ := c.FS.List(f, vfs.ListOptions{Recursive: true})
				for _, e := range entries {
					if !e.Dir {
						expanded = append(expanded, e.Path)
					}
				}
			} else {
				expanded = append(expanded, f)
			}
		}
		files = expanded
	}

	showName := len(files) > 1
	var sb strings.Builder
	matchedAny := false
	scan := func(name, content string) {
		matches := 0
		for i, line := range splitLines(content) {
			m := re.MatchString(line)
			if m != invert {
				matches++
				matchedAny = true
				if quiet || countOnly || filesOnly {
					continue
				}
				var prefix string
				if showName {
					prefix = name + ":"
				}
				if lineNum {
					prefix += strconv.Itoa(i+1) + ":"
				}
				if onlyMatch {
					for _, om := range re.FindAllString(line, -1) {
						sb.WriteString(prefix + om + "\n")
					}
				} else {
					sb.WriteString(prefix + line + "\n")
				}
			}
		}
		if countOnly {
			if showName {
				sb.WriteString(name + ":")
			}
			sb.WriteString(strconv.Itoa(matches) + "\n")
		}
		if filesOnly && matches > 0 {
			sb.WriteString(name + "\n")
		}
	}

	if len(files) == 0 {
		scan("(standard input)", c.Stdin)
	} else {
		for _, f := range files {
			content, errRes := inputText(c, []string{f})
			if errRes != nil {
				return *errRes
			}
			scan(f, content)
		}
	}
	if quiet {
		if matchedAny {
			return ok("")
		}
		return Result{ExitCode: 1}
	}
	res := Result{Stdout: sb.String()}
	if !matchedAny {
		res.ExitCode = 1
	}
	return res
}

func cmdTestBracket(c *Context, args []string) Result {
	if len(args) == 0 || args[len(args)-1] != "]" {
		return fail(2, "[: missing ]")
	}
	return cmdTest(c, args[:len(args)-1])
}

func cmdTest(c *Context, args []string) Result {
	v, err := evalTest(c, args)
	if err != nil {
		return fail(2, "test: "+err.Error())
	}
	if v {
		return ok("")
	}
	return Result{ExitCode: 1}
}

func evalTest(c *Context, args []string) (bool, error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		return args[0] != "", nil
	case 2:
		op, operand := args[0], args[1]
		switch op {
		case "!":
			return operand == "", nil
		case "-z":
			return operand == "", nil
		case "-n":
			return operand != "", nil
		case "-e":
			return c.FS != nil && c.FS.Exists(operand), nil
		case "-f":
			if c.FS == nil {
				return false, nil
			}
			info, err := c.FS.Stat(operand)
			return err == nil && info.IsFile(), nil
		case "-d":
			if c.FS == nil {
				return false, nil
			}
			info, err := c.FS.Stat(operand)
			return err == nil && info.IsDirectory(), nil
		case "-s":
			if c.FS == nil {
				return false, nil
			}
			info, err := c.FS.Stat(operand)
			return err == nil && info.Size > 0, nil
		case "-L", "-h":
			if c.FS == nil {
				return false, nil
			}
			_, err := c.FS.Readlink(operand)
			return err == nil, nil
		case "-r", "-w", "-x":
			return c.FS != nil && c.FS.Exists(operand), nil
		}
		return false, fmt.Errorf("unknown operator %s", op)
	case 3:
		if args[0] == "!" {
			v, err := evalTest(c, args[1:])
			return !v, err
		}
		left, op, right := args[0], args[1], args[2]
		switch op {
		case "=", "==":
			return left == right, nil
		case "!=":
			return left != right, nil
		case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
			ln, err1 := strconv.ParseInt(left, 10, 64)
			rn, err2 := strconv.ParseInt(right, 10, 64)
			if err1 != nil || err2 != nil {
				return false, fmt.Errorf("integer expression expected")
			}
			switch op {
			case "-eq":
				return ln == rn, nil
			case "-ne":
				return ln != rn, nil
			case "-lt":
				return ln < rn, nil
			case "-le":
				return ln <= rn, nil
			case "-gt":
				return ln > rn, nil
			case "-ge":
				return ln >= rn, nil
			}
		}
		return false, fmt.Errorf("unknown operator %s", op)
	case 4:
		if args[0] == "!" {
			v, err := evalTest(c, args[1:])
			return !v, err
		}
	}
	return false, fmt.Errorf("too many arguments")
}

func cmdLs(c *Context, args []string) Result {
	long := false
	all := false
	var paths []string
	for _, a := range args {
		switch {
		case a == "-l":
			long = true
		case a == "-a" || a == "-la" || a == "-al":
			all = true
			long = long || strings.Contains(a, "l")
		case strings.HasPrefix(a, "-"):
			// other flags accepted and ignored
		default:
			paths = append(paths, a)
		}
	}
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	var sb strings.Builder
	for _, p := range paths {
		info, err := c.FS.Stat(p)
		if err != nil {
			return fail(1, "ls: "+err.Error())
		}
		if info.IsFile() {
			if long {
				writeLongEntry(&sb, info, p)
			} else {
				sb.WriteString(p + "\n")
			}
			continue
		}
		entries, err := c.FS.List(p, vfs.ListOptions{})
		if err != nil {
			return fail(1, "ls: "+err.Error())
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			if !all && strings.HasPrefix(e.Name, ".") {
				continue
			}
			if long {
				ei, statErr := c.FS.Stat(e.Path)
				if statErr != nil {
					continue
				}
				writeLongEntry(&sb, ei, e.Name)
			} else {
				sb.WriteString(e.Name + "\n")
			}
		}
	}
	return ok(sb.String())
}

func writeLongEntry(sb *strings.Builder, info vfs.FileInfo, name string) {
	fmt.Fprintf(sb, "%s %d %s\n", info.Mode.String(), info.Size, name)
}

func cmdStat(c *Context, args []string) Result {
	var files []string
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			files = append(files, a)
		}
	}
	if len(files) == 0 {
		return fail(1, "stat: missing operand")
	}
	var sb strings.Builder
	for _, f := range files {
		info, err := c.FS.Stat(f)
		if err != nil {
			return fail(1, "stat: "+err.Error())
		}
		kind := "regular file"
		if info.IsDirectory() {
			kind = "directory"
		} else if info.IsSymlink() {
			kind = "symbolic link"
		}
		fmt.Fprintf(&sb, "  File: %s\n  Size: %d\t%s\nAccess: (%04o)\nModify: %s\n",
			f, info.Size, kind, info.Mode.Perm(), info.ModTime.UTC().Format("2006-01-02 15:04:05.000000000 -0700"))
	}
	return ok(sb.String())
}

func cmdReadlink(c *Context, args []string) Result {
	var files []string
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			files = append(files, a)
		}
	}
	if len(files) == 0 {
		return fail(1, "readlink: missing operand")
	}
	target, err := c.FS.Readlink(files[0])
	if err != nil {
		return Result{ExitCode: 1}
	}
	return ok(target + "\n")
}

func cmdFind(c *Context, args []string) Result {
	root := "."
	namePattern := ""
	typeFilter := ""
	doDelete := false
	i := 0
	if i < len(args) && !strings.HasPrefix(args[i], "-") {
		root = args[i]
		i++
	}
	for ; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-name" && i+1 < len(args):
			i++
			namePattern = args[i]
		case a == "-type" && i+1 < len(args):
			i++
			typeFilter = args[i]
			if typeFilter != "f" && typeFilter != "d" {
				return fail(1, "find: unsupported -type "+typeFilter)
			}
		case a == "-delete":
			doDelete = true
		default:
			return fail(1, "find: unsupported predicate "+a)
		}
	}
	rootInfo, err := c.FS.Stat(root)
	if err != nil {
		return fail(1, "find: "+err.Error())
	}

	var matches []string
	consider := func(p string, isDir bool) {
		if typeFilter == "f" && isDir || typeFilter == "d" && !isDir {
			return
		}
		if namePattern != "" && !globMatch(namePattern, path.Base(p)) {
			return
		}
		matches = append(matches, p)
	}
	consider(root, rootInfo.IsDirectory())
	if rootInfo.IsDirectory() {
		entries, err := c.FS.List(root, vfs.ListOptions{Recursive: true})
		if err != nil {
			return fail(1, "find: "+err.Error())
		}
		for _, e := range entries {
			consider(e.Path, e.Dir)
		}
	}
	sort.Strings(matches)

	if doDelete {
		// deepest first so directories empty out before removal
		for i := len(matches) - 1; i >= 0; i-- {
			_ = c.FS.Remove(matches[i], vfs.RemoveOptions{Recursive: true, Force: true})
		}
		return ok("")
	}
	return ok(joinLines(matches))
}

// globMatch implements shell globbing for a single path segment:
// * any run, ? one char, [...] char class.
func globMatch(pattern, name string) bool {
	re, err := regexp.Compile("^" + globToRegexp(pattern) + "$")
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

func globToRegexp(pattern string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				sb.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			sb.WriteString(pattern[i : i+end+1])
			i += end
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return sb.String()
}

func cmdMkdir(c *Context, args []string) Result {
	recursive := false
	var dirs []string
	for _, a := range args {
		if a == "-p" {
			recursive = true
			continue
		}
		if strings.HasPrefix(a, "-") {
			return fail(1, "mkdir: unsupported option "+a)
		}
		dirs = append(dirs, a)
	}
	if len(dirs) == 0 {
		return fail(1, "mkdir: missing operand")
	}
	for _, d := range dirs {
		if err := c.FS.Mkdir(d, recursive); err != nil {
			return fail(1, "mkdir: "+err.Error())
		}
	}
	return ok("")
}

func cmdRmdir(c *Context, args []string) Result {
	var dirs []string
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			dirs = append(dirs, a)
		}
	}
	if len(dirs) == 0 {
		return fail(1, "rmdir: missing operand")
	}
	for _, d := range dirs {
		if err := c.FS.Rmdir(d); err != nil {
			return fail(1, "rmdir: "+err.Error())
		}
	}
	return ok("")
}

func cmdRm(c *Context, args []string) Result {
	recursive, force := false, false
	var targets []string
	for _, a := range args {
		switch {
		case a == "-r" || a == "-R" || a == "--recursive":
			recursive = true
		case a == "-f" || a == "--force":
			force = true
		case a == "-rf" || a == "-fr":
			recursive, force = true, true
		case strings.HasPrefix(a, "-"):
			return fail(1, "rm: unsupported option "+a)
		default:
			targets = append(targets, a)
		}
	}
	if len(targets) == 0 {
		if force {
			return ok("")
		}
		return fail(1, "rm: missing operand")
	}
	for _, t := range targets {
		if err := c.FS.Remove(t, vfs.RemoveOptions{Recursive: recursive, Force: force}); err != nil {
			return fail(1, "rm: "+err.Error())
		}
	}
	return ok("")
}

func cmdUnlink(c *Context, args []string) Result {
	if len(args) != 1 {
		return fail(1, "unlink: needs exactly one operand")
	}
	if err := c.FS.Remove(args[0], vfs.RemoveOptions{}); err != nil {
		return fail(1, "unlink: "+err.Error())
	}
	return ok("")
}

func cmdCp(c *Context, args []string) Result {
	recursive := false
	var operands []string
	for _, a := range args {
		switch {
		case a == "-r" || a == "-R" || a == "-a":
			recursive = true
		case strings.HasPrefix(a, "-"):
			return fail(1, "cp: unsupported option "+a)
		default:
			operands = append(operands, a)
		}
	}
	if len(operands) < 2 {
		return fail(1, "cp: missing operand")
	}
	dst := operands[len(operands)-1]
	srcs := operands[:len(operands)-1]
	dstInfo, dstErr := c.FS.Stat(dst)
	dstIsDir := dstErr == nil && dstInfo.IsDirectory()
	if len(srcs) > 1 && !dstIsDir {
		return fail(1, "cp: target is not a directory: "+dst)
	}
	for _, src := range srcs {
		info, err := c.FS.Stat(src)
		if err != nil {
			return fail(1, "cp: "+err.Error())
		}
		target := dst
		if dstIsDir {
			target = path.Join(dst, path.Base(src))
		}
		if info.IsDirectory() {
			if !recursive {
				return fail(1, "cp: -r not specified; omitting directory "+src)
			}
			if err := copyTree(c, src, target); err != nil {
				return fail(1, "cp: "+err.Error())
			}
			continue
		}
		if err := c.FS.CopyFile(src, target); err != nil {
			return fail(1, "cp: "+err.Error())
		}
	}
	return ok("")
}

func copyTree(c *Context, src, dst string) error {
	if err := c.FS.Mkdir(dst, true); err != nil {
		return err
	}
	entries, err := c.FS.List(src, vfs.ListOptions{Recursive: true})
	if err != nil {
		return err
	}
	for _, e := range entries {
		rel := strings.TrimPrefix(e.Path, strings.TrimSuffix(src, "/")+"/")
		target := path.Join(dst, rel)
		if e.Dir {
			if err := c.FS.Mkdir(target, true); err != nil {
				return err
			}
			continue
		}
		if err := c.FS.CopyFile(e.Path, target); err != nil {
			return err
		}
	}
	return nil
}

func cmdMv(c *Context, args []string) Result {
	var operands []string
	for _, a := range args {
		if a == "-f" {
			continue
		}
		if strings.HasPrefix(a, "-") {
			return fail(1, "mv: unsupported option "+a)
		}
		operands = append(operands, a)
	}
	if len(operands) < 2 {
		return fail(1, "mv: missing operand")
	}
	dst := operands[len(operands)-1]
	srcs := operands[:len(operands)-1]
	dstInfo, dstErr := c.FS.Stat(dst)
	dstIsDir := dstErr == nil && dstInfo.IsDirectory()
	if len(srcs) > 1 && !dstIsDir {
		return fail(1, "mv: target is not a directory: "+dst)
	}
	for _, src := range srcs {
		target := dst
		if dstIsDir {
			target = path.Join(dst, path.Base(src))
		}
		if err := c.FS.Rename(src, target); err != nil {
			return fail(1, "mv: "+err.Error())
		}
	}
	return ok("")
}

func cmdTouch(c *Context, args []string) Result {
	var files []string
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			files = append(files, a)
		}
	}
	if len(files) == 0 {
		return fail(1, "touch: missing operand")
	}
	now := c.now()
	for _, f := range files {
		if c.FS.Exists(f) {
			if err := c.FS.Utimes(f, now, now); err != nil {
				return fail(1, "touch: "+err.Error())
			}
			continue
		}
		if err := c.FS.Write(f, nil); err != nil {
			return fail(1, "touch: "+err.Error())
		}
	}
	return ok("")
}

func cmdTruncate(c *Context, args []string) Result {
	size := int64(-1)
	var files []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-s" && i+1 < len(args):
			i++
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return fail(1, "truncate: invalid size "+args[i])
			}
			size = n
		case strings.HasPrefix(a, "-s"):
			n, err := strconv.ParseInt(a[2:], 10, 64)
			if err != nil {
				return fail(1, "truncate: invalid size "+a[2:])
			}
			size = n
		case strings.HasPrefix(a, "-"):
			return fail(1, "truncate: unsupported option "+a)
		default:
			files = append(files, a)
		}
	}
	if size < 0 {
		return fail(1, "truncate: missing -s size")
	}
	if len(files) == 0 {
		return fail(1, "truncate: missing operand")
	}
	for _, f := range files {
		if err := c.FS.Truncate(f, size); err != nil {
			return fail(1, "truncate: "+err.Error())
		}
	}
	return ok("")
}

func cmdLn(c *Context, args []string) Result {
	symbolic := false
	var operands []string
	for _, a := range args {
		switch {
		case a == "-s":
			symbolic = true
		case a == "-sf" || a == "-fs":
			symbolic = true
		case a == "-f":
		case strings.HasPrefix(a, "-"):
			return fail(1, "ln: unsupported option "+a)
		default:
			operands = append(operands, a)
		}
	}
	if len(operands) != 2 {
		return fail(1, "ln: needs target and link name")
	}
	var err error
	if symbolic {
		err = c.FS.Symlink(operands[0], operands[1])
	} else {
		err = c.FS.Link(operands[0], operands[1])
	}
	if err != nil {
		return fail(1, "ln: "+err.Error())
	}
	return ok("")
}

func cmdChmod(c *Context, args []string) Result {
	var operands []string
	for _, a := range args {
		if a == "-R" {
			return fail(1, "chmod: -R is not supported")
		}
		operands = append(operands, a)
	}
	if len(operands) < 2 {
		return fail(1, "chmod: missing operand")
	}
	mode, err := strconv.ParseUint(operands[0], 8, 32)
	if err != nil {
		return fail(1, "chmod: symbolic modes are not supported, use octal")
	}
	for _, f := range operands[1:] {
		if err := c.FS.Chmod(f, os.FileMode(mode)); err != nil {
			return fail(1, "chmod: "+err.Error())
		}
	}
	return ok("")
}

func cmdChown(c *Context, args []string) Result {
	var operands []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			return fail(1, "chown: unsupported option "+a)
		}
		operands = append(operands, a)
	}
	if len(operands) < 2 {
		return fail(1, "chown: missing operand")
	}
	spec := operands[0]
	uidStr, gidStr := spec, ""
	if colon := strings.IndexAny(spec, ":."); colon >= 0 {
		uidStr, gidStr = spec[:colon], spec[colon+1:]
	}
	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return fail(1, "chown: invalid user: "+uidStr)
	}
	gid := -1
	if gidStr != "" {
		gid, err = strconv.Atoi(gidStr)
		if err != nil {
			return fail(1, "chown: invalid group: "+gidStr)
		}
	}
	for _, f := range operands[1:] {
		if err := c.FS.Chown(f, uid, gid); err != nil {
			return fail(1, "chown: "+err.Error())
		}
	}
	return ok("")
}
