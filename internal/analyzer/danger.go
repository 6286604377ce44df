package analyzer

import (
	"regexp"

	"github.com/runshield/bashx/internal/ast"
)

// DangerPattern is one entry in the built-in danger list. A command that
// matches any pattern needs admin scope regardless of its classification.
type DangerPattern struct {
	ID      string
	Pattern *regexp.Regexp
	Reason  string
}

var builtinDanger = []DangerPattern{
	{"rm-recursive", regexp.MustCompile(`(^|\s|;|&&|\|\|)rm\s+(-[a-zA-Z]*r|-[a-zA-Z]*R|--recursive)`), "recursive file removal"},
	{"sudo", regexp.MustCompile(`(^|\s|;|&&|\|\|)(sudo|doas)\s`), "privilege elevation"},
	{"su", regexp.MustCompile(`(^|\s|;|&&|\|\|)su(\s|$)`), "user switch"},
	{"chmod", regexp.MustCompile(`(^|\s|;|&&|\|\|)chmod\s`), "permission change"},
	{"chown", regexp.MustCompile(`(^|\s|;|&&|\|\|)chown\s`), "ownership change"},
	{"mkfs", regexp.MustCompile(`(^|\s|;|&&|\|\|)mkfs(\.[a-z0-9]+)?\s`), "filesystem creation"},
	{"dd", regexp.MustCompile(`(^|\s|;|&&|\|\|)dd\s+[^|;]*of=/dev/`), "raw device write"},
	{"kill", regexp.MustCompile(`(^|\s|;|&&|\|\|)kill(all)?\s`), "process termination"},
	{"fdisk", regexp.MustCompile(`(^|\s|;|&&|\|\|)fdisk\s`), "partition table edit"},
	{"mount", regexp.MustCompile(`(^|\s|;|&&|\|\|)u?mount\s`), "filesystem mount"},
	{"systemctl", regexp.MustCompile(`(^|\s|;|&&|\|\|)systemctl\s+(start|stop|restart|disable|enable|mask)`), "service control"},
	{"iptables", regexp.MustCompile(`(^|\s|;|&&|\|\|)(iptables|nft|ufw)\s`), "firewall change"},
	{"useradd", regexp.MustCompile(`(^|\s|;|&&|\|\|)(useradd|userdel|usermod|groupadd)\s`), "account change"},
	{"passwd", regexp.MustCompile(`(^|\s|;|&&|\|\|)passwd(\s|$)`), "credential change"},
	{"shutdown", regexp.MustCompile(`(^|\s|;|&&|\|\|)(shutdown|reboot|halt|poweroff)(\s|$)`), "host power control"},
}

// Danger is the verdict of IsDangerous.
type Danger struct {
	Dangerous bool
	Reason    string
}

// IsDangerous reports whether the program requires admin-equivalent scope:
// either its classified impact is high or above, or it matches a danger
// pattern. Extra patterns (from policy packs) run after the built-ins.
func (a *Analyzer) IsDangerous(prog *ast.Program, extra ...DangerPattern) Danger {
	analysis := a.Analyze(prog)
	if analysis.Classification.Impact >= ImpactHigh {
		return Danger{Dangerous: true, Reason: analysis.Classification.Reason}
	}
	src := ast.Serialize(prog)
	for _, p := range builtinDanger {
		if p.Pattern.MatchString(src) {
			return Danger{Dangerous: true, Reason: p.Reason}
		}
	}
	for _, p := range extra {
		if p.Pattern != nil && p.Pattern.MatchString(src) {
			return Danger{Dangerous: true, Reason: p.Reason}
		}
	}
	return Danger{}
}
