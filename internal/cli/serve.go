package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runshield/bashx/internal/audit"
	"github.com/runshield/bashx/internal/config"
	"github.com/runshield/bashx/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP tool surface over stdio",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	sess, err := buildSession()
	if err != nil {
		return err
	}
	defer sess.close()

	// hot-reload the policy pack while serving
	stop, err := config.WatchPolicy(sess.cfg.PolicyPath, func(data []byte) {
		pack, err := policyParse(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[bashx] warning: policy reload rejected: %v\n", err)
			return
		}
		sess.gate.SetExtra(pack.DangerPatterns())
		fmt.Fprintln(os.Stderr, "[bashx] policy pack reloaded")
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[bashx] warning: policy watching disabled: %v\n", err)
	} else {
		defer stop()
	}

	server := &mcp.Server{
		Dispatcher: sess.dispatcher,
		Auth:       sess.authCtx,
		HTTP:       sess.dispatcher.HTTP,
		History:    &audit.Memory{},
	}
	return server.Serve(cmd.Context(), os.Stdin, os.Stdout)
}
