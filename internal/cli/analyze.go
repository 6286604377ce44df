package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runshield/bashx/internal/ast"
	"github.com/runshield/bashx/internal/tier"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [command...]",
	Short: "Parse and classify a command without running it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	sess, err := buildSession()
	if err != nil {
		return err
	}
	defer sess.close()

	command := strings.Join(args, " ")
	prog := ast.Parse(command)
	analysis := sess.analyzer.Analyze(prog)
	danger := sess.analyzer.IsDangerous(prog, sess.gate.Extra()...)

	name := ""
	if segs := firstCommandName(prog); segs != "" {
		name = segs
	}
	cls := tier.Classify(name, tierBindings(sess))

	out := map[string]any{
		"input":          command,
		"valid":          prog.Valid(),
		"intent":         analysis.Intent,
		"classification": analysis.Classification,
		"dangerous":      danger.Dangerous,
		"tier": map[string]any{
			"tier":       cls.Tier,
			"handler":    cls.Handler,
			"capability": cls.Capability,
			"reason":     cls.Reason,
		},
	}
	if danger.Reason != "" {
		out["dangerReason"] = danger.Reason
	}
	if !prog.Valid() {
		out["errors"] = prog.Errors
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func firstCommandName(prog *ast.Program) string {
	var name string
	ast.WalkProgram(prog, func(n ast.Node) bool {
		if c, okC := n.(*ast.Command); okC && c.Name != nil && name == "" {
			name = c.Name.Value
			return false
		}
		return true
	})
	return name
}

func tierBindings(sess *session) tier.Bindings {
	return tier.Bindings{
		FSBound:      sess.dispatcher.FS != nil,
		SandboxBound: sess.dispatcher.Sandbox != nil,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bashx version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("bashx " + Version)
	},
}

// Version is stamped by the build.
var Version = "dev"

func init() {
	rootCmd.AddCommand(versionCmd)
}
