// Package policy is the ordered pre-execution gate. Checks run in a fixed
// order — auth, admin, exec, allowlist, blocklist, path-allow, traversal,
// injection — and the first violation wins; later rules are never
// consulted, so a request denied for a missing scope is reported as a
// scope problem even when it also contains an injection attempt.
package policy

import (
	"path"
	"strings"
	"sync"

	"github.com/runshield/bashx/internal/analyzer"
	"github.com/runshield/bashx/internal/ast"
	"github.com/runshield/bashx/internal/auth"
	"github.com/runshield/bashx/internal/unicode"
)

// Block reasons are part of the result surface; clients match on them.
const (
	ReasonAuthRequired  = "authentication required"
	ReasonAdminRequired = "admin scope required for dangerous commands"
	ReasonExecDenied    = "exec permission denied"
	ReasonNotAllowed    = "command not in allowed list"
	ReasonBlockedList   = "command is blocked"
	ReasonPathDenied    = "path not in allowed list"
	ReasonTraversal     = "security: path traversal blocked"
	ReasonInjection     = "security: command injection blocked"
	securityPrefix      = "security: "
)

// Verdict is the gate's decision for one command.
type Verdict struct {
	Blocked bool
	Reason  string
	// Step names the rule that fired: auth, admin, exec, allowlist,
	// blocklist, path-allow, traversal, injection, unicode.
	Step string
}

func allowed() Verdict { return Verdict{} }

func blocked(step, reason string) Verdict {
	return Verdict{Blocked: true, Step: step, Reason: reason}
}

// Gate evaluates the ordered policy. Extra danger patterns come from
// loaded rule packs and may be swapped while requests are in flight.
type Gate struct {
	Analyzer *analyzer.Analyzer

	mu    sync.RWMutex
	extra []analyzer.DangerPattern
}

// NewGate builds a gate around an analyzer.
func NewGate(a *analyzer.Analyzer) *Gate {
	return &Gate{Analyzer: a}
}

// SetExtra replaces the pack-loaded danger patterns. Safe to call while
// Check runs on other goroutines (the serve hot-reload path does).
func (g *Gate) SetExtra(patterns []analyzer.DangerPattern) {
	g.mu.Lock()
	g.extra = patterns
	g.mu.Unlock()
}

// Extra returns the current pack-loaded danger patterns.
func (g *Gate) Extra() []analyzer.DangerPattern {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.extra
}

// Check applies the ordered rules to a parsed command.
func (g *Gate) Check(actx *auth.Context, command string, prog *ast.Program) Verdict {
	// 1. authentication
	if actx == nil || !actx.Authenticated {
		return blocked("auth", ReasonAuthRequired)
	}

	// 2. dangerous commands need admin
	danger := g.Analyzer.IsDangerous(prog, g.Extra()...)
	if danger.Dangerous && !actx.Permissions.Admin {
		return blocked("admin", ReasonAdminRequired)
	}

	// 3. plain exec permission
	if !danger.Dangerous && !actx.Permissions.Exec {
		return blocked("exec", ReasonExecDenied)
	}

	words := commandWords(prog)
	name := ""
	if len(words) > 0 {
		name = words[0]
	}

	// 4. allowlist
	if len(actx.Permissions.AllowedCommands) > 0 {
		if !matchesAny(actx.Permissions.AllowedCommands, command) &&
			!matchesAny(actx.Permissions.AllowedCommands, name) {
			return blocked("allowlist", ReasonNotAllowed)
		}
	}

	// 5. blocklist
	if len(actx.Permissions.BlockedCommands) > 0 {
		if matchesAny(actx.Permissions.BlockedCommands, command) ||
			matchesAny(actx.Permissions.BlockedCommands, name) {
			return blocked("blocklist", ReasonBlockedList)
		}
	}

	// 6. path allowlist
	if len(actx.Permissions.AllowedPaths) > 0 {
		for _, p := range ExtractPaths(prog) {
			if !pathAllowed(actx.Permissions.AllowedPaths, p) {
				return blocked("path-allow", ReasonPathDenied+": "+p)
			}
		}
	}

	// 7. traversal
	for _, w := range rawWords(prog) {
		if strings.Contains(w, "..") && traversalViolation(w) {
			return blocked("traversal", ReasonTraversal+": "+w)
		}
	}

	// 8. injection
	for _, w := range rawWords(prog) {
		if strings.Contains(w, "$(") || strings.ContainsRune(w, '`') {
			return blocked("injection", ReasonInjection)
		}
	}

	// unicode smuggling rides behind the injection rule with the same
	// security prefix
	if scan := unicode.Scan(command); !scan.Clean {
		return blocked("unicode", securityPrefix+scan.Threats[0].Describe())
	}

	return allowed()
}

// commandWords lists the command names in execution order.
func commandWords(prog *ast.Program) []string {
	var names []string
	ast.WalkProgram(prog, func(n ast.Node) bool {
		if cmd, okC := n.(*ast.Command); okC && cmd.Name != nil {
			names = append(names, cmd.Name.Value)
		}
		return true
	})
	return names
}

// rawWords lists every argument and command word in source form.
func rawWords(prog *ast.Program) []string {
	var words []string
	ast.WalkProgram(prog, func(n ast.Node) bool {
		switch v := n.(type) {
		case *ast.Command:
			if v.Name != nil {
				words = append(words, v.Name.Text)
			}
			for _, a := range v.Args {
				words = append(words, a.Text)
			}
			for _, r := range v.Redirects {
				words = append(words, r.Target.Text)
			}
			for _, a := range v.Assignments {
				if a.Value != nil {
					words = append(words, a.Value.Text)
				}
			}
		case *ast.CompoundCommand:
			words = append(words, v.Raw)
		case *ast.FunctionDef:
			words = append(words, v.Raw)
		case *ast.ErrorNode:
			words = append(words, v.Raw)
		}
		return true
	})
	return words
}

// ExtractPaths pulls path-shaped operands out of the tree for the
// path-allow rule.
func ExtractPaths(prog *ast.Program) []string {
	var paths []string
	ast.WalkProgram(prog, func(n ast.Node) bool {
		cmd, okC := n.(*ast.Command)
		if !okC {
			return true
		}
		for _, a := range cmd.Args {
			if looksLikePath(a.Value) {
				paths = append(paths, a.Value)
			}
		}
		for _, r := range cmd.Redirects {
			if r.Target.Value != "" {
				paths = append(paths, r.Target.Value)
			}
		}
		return true
	})
	return paths
}

func looksLikePath(s string) bool {
	if s == "" || strings.HasPrefix(s, "-") {
		return false
	}
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") ||
		strings.HasPrefix(s, "../") || strings.HasPrefix(s, "~") ||
		strings.Contains(s, "/")
}

// pathAllowed reports whether p sits under any allowed root.
func pathAllowed(roots []string, p string) bool {
	cleaned := path.Clean(p)
	for _, root := range roots {
		root = path.Clean(root)
		if cleaned == root || strings.HasPrefix(cleaned, root+"/") {
			return true
		}
	}
	return false
}

// traversalViolation reports whether a ..-containing argument escapes its
// root after normalization. Absolute paths whose dotdots resolve inside /
// are fine; relative paths that climb out are not.
func traversalViolation(arg string) bool {
	cleaned := path.Clean(arg)
	if strings.HasPrefix(cleaned, "..") {
		return true
	}
	if strings.HasPrefix(arg, "/") {
		// an absolute path that still carries .. after cleaning is
		// malformed enough to refuse
		return strings.Contains(cleaned, "..")
	}
	return false
}

// MatchGlob implements the policy glob dialect: * matches any run,
// ? matches one character, the pattern is anchored at both ends and every
// other character is literal.
func MatchGlob(pattern, s string) bool {
	return globMatch(pattern, s, 0, 0)
}

func globMatch(pattern, s string, pi, si int) bool {
	for pi < len(pattern) {
		switch pattern[pi] {
		case '*':
			// collapse runs of *
			for pi < len(pattern) && pattern[pi] == '*' {
				pi++
			}
			if pi == len(pattern) {
				return true
			}
			for k := si; k <= len(s); k++ {
				if globMatch(pattern, s, pi, k) {
					return true
				}
			}
			return false
		case '?':
			if si >= len(s) {
				return false
			}
			pi++
			si++
		default:
			if si >= len(s) || s[si] != pattern[pi] {
				return false
			}
			pi++
			si++
		}
	}
	return si == len(s)
}

func matchesAny(patterns []string, s string) bool {
	if s == "" {
		return false
	}
	for _, p := range patterns {
		if MatchGlob(p, s) {
			return true
		}
	}
	return false
}
