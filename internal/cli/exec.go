package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/runshield/bashx/internal/ast"
)

var (
	readStdin bool
	assumeYes bool
)

var execCmd = &cobra.Command{
	Use:   "exec [command...]",
	Short: "Run a command through the dispatcher",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExec,
}

func init() {
	execCmd.Flags().BoolVar(&readStdin, "stdin", false, "pass standard input to the command")
	execCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the interactive confirmation for dangerous commands")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	sess, err := buildSession()
	if err != nil {
		return err
	}
	defer sess.close()

	command := strings.Join(args, " ")

	// dangerous commands run with --admin get one interactive gate when a
	// human is attached
	if adminMode && !assumeYes {
		danger := sess.analyzer.IsDangerous(ast.Parse(command), sess.gate.Extra()...)
		if danger.Dangerous && term.IsTerminal(int(os.Stdin.Fd())) {
			if !confirm(fmt.Sprintf("dangerous command (%s), run anyway?", danger.Reason)) {
				fmt.Fprintln(os.Stderr, "aborted")
				return nil
			}
		}
	}

	stdin := ""
	if readStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		stdin = string(data)
	}

	res := sess.dispatcher.Exec(cmd.Context(), command, sess.authCtx, stdin)
	if res.Blocked {
		fmt.Fprintf(os.Stderr, "[bashx] blocked: %s\n", res.BlockReason)
		return nil
	}
	fmt.Print(res.Stdout)
	if res.Stderr != "" {
		fmt.Fprint(os.Stderr, res.Stderr)
	}
	if res.ExitCode != 0 {
		os.Exit(res.ExitCode)
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "[bashx] %s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
