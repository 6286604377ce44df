// Package analyzer derives intent and a safety classification from a parsed
// command. Both are pure functions of the AST: analyzing the same tree twice
// yields identical results, and nothing here touches the filesystem.
package analyzer

import (
	"fmt"
	"path"
	"strings"

	"github.com/runshield/bashx/internal/ast"
	"github.com/runshield/bashx/internal/lexer"
)

// Intent summarizes what a command would do, derived by walking the AST.
type Intent struct {
	Commands   []string `json:"commands"`
	Reads      []string `json:"reads"`
	Writes     []string `json:"writes"`
	Deletes    []string `json:"deletes"`
	Network    bool     `json:"network"`
	Elevated   bool     `json:"elevated"`
	InlineCode bool     `json:"inlineCode"`
}

// ClassType is the dominant operation type of a command.
type ClassType string

const (
	TypeRead    ClassType = "read"
	TypeWrite   ClassType = "write"
	TypeDelete  ClassType = "delete"
	TypeExecute ClassType = "execute"
	TypeNetwork ClassType = "network"
	TypeSystem  ClassType = "system"
	TypeMixed   ClassType = "mixed"
)

// Impact grades how bad the worst-case outcome is.
type Impact int

const (
	ImpactNone Impact = iota
	ImpactLow
	ImpactMedium
	ImpactHigh
	ImpactCritical
)

func (i Impact) String() string {
	switch i {
	case ImpactNone:
		return "none"
	case ImpactLow:
		return "low"
	case ImpactMedium:
		return "medium"
	case ImpactHigh:
		return "high"
	default:
		return "critical"
	}
}

// Classification is the safety verdict for a command.
type Classification struct {
	Type       ClassType `json:"type"`
	Impact     Impact    `json:"impact"`
	Reversible bool      `json:"reversible"`
	Reason     string    `json:"reason"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// Analysis bundles the two derived views.
type Analysis struct {
	Intent         Intent
	Classification Classification
}

// Analyzer walks programs. Home anchors the rm-targeting-home check; it is
// injected so analysis stays deterministic under test.
type Analyzer struct {
	Home string
}

// New returns an analyzer anchored at home ("" disables the home check).
func New(home string) *Analyzer {
	return &Analyzer{Home: home}
}

var readCommands = map[string]bool{
	"cat": true, "head": true, "tail": true, "less": true, "more": true,
	"grep": true, "awk": true, "sed": true, "diff": true, "jq": true,
	"yq": true, "wc": true, "sort": true, "uniq": true, "cut": true,
}

var networkCommands = map[string]bool{
	"curl": true, "wget": true, "nc": true, "ssh": true, "scp": true,
	"rsync": true, "ping": true, "dig": true, "nslookup": true, "host": true,
}

var elevationCommands = map[string]bool{
	"sudo": true, "su": true, "doas": true,
}

var systemCommands = map[string]bool{
	"mkfs": true, "fdisk": true, "shutdown": true, "reboot": true, "init": true,
}

var deleteCommands = map[string]bool{
	"rm": true, "rmdir": true, "unlink": true, "trash": true,
}

var inlineInterpreters = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true,
	"python": true, "python3": true, "node": true, "ruby": true, "perl": true,
}

var systemWritePrefixes = []string{"/etc", "/usr", "/var", "/boot"}

// Analyze walks the program and produces intent plus classification.
func (a *Analyzer) Analyze(prog *ast.Program) Analysis {
	if prog == nil {
		// Unexpected shape: stub the intent, classify conservatively.
		return Analysis{Classification: Classification{
			Type:       TypeExecute,
			Impact:     ImpactHigh,
			Reversible: false,
			Reason:     "analysis failed, treating as high impact",
		}}
	}
	intent := a.collect(prog)
	return Analysis{Intent: intent, Classification: a.classify(prog, intent)}
}

// collect gathers the raw intent facts from every command in the tree.
func (a *Analyzer) collect(prog *ast.Program) Intent {
	intent := Intent{}
	seen := map[string]bool{}

	ast.WalkProgram(prog, func(n ast.Node) bool {
		cmd, ok := n.(*ast.Command)
		if !ok {
			return true
		}
		if cmd.Name == nil {
			return true
		}
		name := cmd.Name.Value
		args := cmd.Args

		// sudo and friends are transparent: record the elevation and
		// analyze the wrapped command.
		for elevationCommands[name] {
			intent.Elevated = true
			name, args = unwrapElevated(args)
			if name == "" {
				return true
			}
		}

		if !seen[name] {
			seen[name] = true
			intent.Commands = append(intent.Commands, name)
		}

		positional := positionalArgs(args)

		if readCommands[name] {
			for _, p := range positional {
				if looksLikePath(p) {
					intent.Reads = append(intent.Reads, p)
				}
			}
		}

		switch name {
		case "cp", "mv":
			if len(positional) >= 2 {
				intent.Writes = append(intent.Writes, positional[len(positional)-1])
			}
		case "tee", "touch", "mkdir":
			intent.Writes = append(intent.Writes, positional...)
		}

		if deleteCommands[name] {
			intent.Deletes = append(intent.Deletes, positional...)
		}
		if name == "find" && hasWord(args, "-delete") {
			if len(positional) > 0 {
				intent.Deletes = append(intent.Deletes, positional[0])
			}
		}

		if networkCommands[name] {
			intent.Network = true
		}

		if inlineInterpreters[name] && hasFlag(args, "-c") {
			intent.InlineCode = true
		}
		for _, w := range append(append([]ast.Word{}, args...), *cmd.Name) {
			if w.HasExpansion(lexer.ExpCommand) {
				intent.InlineCode = true
			}
		}

		for _, r := range cmd.Redirects {
			switch r.Op {
			case "<":
				intent.Reads = append(intent.Reads, r.Target.Value)
			case ">", ">>", "&>", "&>>":
				intent.Writes = append(intent.Writes, r.Target.Value)
			}
		}
		return true
	})

	for _, w := range intent.Writes {
		if underAny(w, systemWritePrefixes) {
			intent.Elevated = true
		}
	}
	return intent
}

// classify applies the ordered rule list; the first matching rule wins, then
// elevation escalates the result.
func (a *Analyzer) classify(prog *ast.Program, intent Intent) Classification {
	c := a.baseClassification(prog, intent)
	if intent.Elevated {
		// One step up, and never below high: elevation alone is enough to
		// require admin review.
		c.Impact++
		if c.Impact > ImpactCritical {
			c.Impact = ImpactCritical
		}
		if c.Impact < ImpactHigh {
			c.Impact = ImpactHigh
		}
		c.Reversible = false
		c.Reason += " (elevated)"
	}
	return c
}

func (a *Analyzer) baseClassification(prog *ast.Program, intent Intent) Classification {
	// 1. recursive rm of / or an ancestor of home
	if target := a.rmRootTarget(prog); target != "" {
		return Classification{
			Type: TypeDelete, Impact: ImpactCritical, Reversible: false,
			Reason:     fmt.Sprintf("recursive delete of %s", target),
			Suggestion: "narrow the target path",
		}
	}
	// 2. any delete
	if len(intent.Deletes) > 0 {
		return Classification{
			Type: TypeDelete, Impact: ImpactHigh, Reversible: false,
			Reason: fmt.Sprintf("deletes %s", strings.Join(intent.Deletes, ", ")),
		}
	}
	// 3. destructive system commands
	if sys := a.systemCommand(prog, intent); sys != "" {
		return Classification{
			Type: TypeSystem, Impact: ImpactCritical, Reversible: false,
			Reason: sys + " modifies system state",
		}
	}
	// 5. mixed read+write
	if len(intent.Writes) > 0 && len(intent.Reads) > 0 {
		return Classification{
			Type: TypeMixed, Impact: ImpactMedium, Reversible: false,
			Reason: "reads and writes files",
		}
	}
	// 6. write only
	if len(intent.Writes) > 0 {
		return Classification{
			Type: TypeWrite, Impact: ImpactMedium, Reversible: false,
			Reason: fmt.Sprintf("writes %s", strings.Join(intent.Writes, ", ")),
		}
	}
	// 7. network
	if intent.Network {
		return Classification{
			Type: TypeNetwork, Impact: ImpactLow, Reversible: true,
			Reason: "performs network access",
		}
	}
	// 8. read only
	if len(intent.Reads) > 0 {
		return Classification{
			Type: TypeRead, Impact: ImpactNone, Reversible: true,
			Reason: "read-only",
		}
	}
	// 9. plain execution
	return Classification{
		Type: TypeExecute, Impact: ImpactLow, Reversible: true,
		Reason: "executes without observed file effects",
	}
}

// rmRootTarget returns the offending target of an rm -r against / or an
// ancestor of the analyzer's home directory, or "".
func (a *Analyzer) rmRootTarget(prog *ast.Program) string {
	var found string
	ast.WalkProgram(prog, func(n ast.Node) bool {
		cmd, ok := n.(*ast.Command)
		if !ok || cmd.Name == nil {
			return true
		}
		name := cmd.Name.Value
		args := cmd.Args
		for elevationCommands[name] {
			name, args = unwrapElevated(args)
		}
		if name != "rm" {
			return true
		}
		recursive := false
		for _, w := range args {
			if isShortFlag(w.Value) && (strings.ContainsAny(w.Value, "rR")) {
				recursive = true
			}
			if w.Value == "--recursive" {
				recursive = true
			}
		}
		if !recursive {
			return true
		}
		for _, p := range positionalArgs(args) {
			if a.isRootOrHomeAncestor(p) {
				found = p
				return false
			}
		}
		return true
	})
	return found
}

func (a *Analyzer) isRootOrHomeAncestor(target string) bool {
	cleaned := path.Clean(target)
	if cleaned == "/" || target == "/*" {
		return true
	}
	if a.Home == "" {
		return false
	}
	home := path.Clean(a.Home)
	// ancestor: home is strictly under the target
	return cleaned != home && strings.HasPrefix(home+"/", cleaned+"/")
}

func (a *Analyzer) systemCommand(prog *ast.Program, intent Intent) string {
	for _, c := range intent.Commands {
		if systemCommands[c] || strings.HasPrefix(c, "mkfs.") {
			return c
		}
	}
	// dd writing to a device
	var found string
	ast.WalkProgram(prog, func(n ast.Node) bool {
		cmd, ok := n.(*ast.Command)
		if !ok || cmd.Name == nil {
			return true
		}
		name := cmd.Name.Value
		args := cmd.Args
		for elevationCommands[name] {
			name, args = unwrapElevated(args)
		}
		if name != "dd" {
			return true
		}
		for _, w := range args {
			if strings.HasPrefix(w.Value, "of=/dev/") {
				found = "dd " + w.Value
				return false
			}
		}
		return true
	})
	return found
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func unwrapElevated(args []ast.Word) (string, []ast.Word) {
	i := 0
	for i < len(args) && strings.HasPrefix(args[i].Value, "-") {
		i++
	}
	if i >= len(args) {
		return "", nil
	}
	return args[i].Value, args[i+1:]
}

func positionalArgs(args []ast.Word) []string {
	var out []string
	for _, w := range args {
		if strings.HasPrefix(w.Value, "-") && w.Quote == lexer.QuoteNone && len(w.Value) > 1 {
			continue
		}
		out = append(out, w.Value)
	}
	return out
}

func isShortFlag(s string) bool {
	return len(s) > 1 && s[0] == '-' && s[1] != '-'
}

func hasFlag(args []ast.Word, flag string) bool {
	for _, w := range args {
		if w.Value == flag {
			return true
		}
	}
	return false
}

func hasWord(args []ast.Word, word string) bool {
	for _, w := range args {
		if w.Value == word {
			return true
		}
	}
	return false
}

func looksLikePath(s string) bool {
	if s == "" || s == "-" {
		return false
	}
	if strings.ContainsAny(s, "/") {
		return true
	}
	if strings.HasPrefix(s, ".") || strings.HasPrefix(s, "~") {
		return true
	}
	// bare file names: keep only the dotted ones so regex patterns given to
	// grep and awk programs do not get counted as reads
	dot := strings.IndexByte(s, '.')
	return dot > 0 && dot < len(s)-1 && !strings.ContainsAny(s, "()[]{}$\\ ")
}

func underAny(p string, prefixes []string) bool {
	cleaned := path.Clean(p)
	for _, pre := range prefixes {
		if cleaned == pre || strings.HasPrefix(cleaned, pre+"/") {
			return true
		}
	}
	return false
}
