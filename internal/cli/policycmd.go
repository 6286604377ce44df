package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runshield/bashx/internal/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and validate the policy pack",
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the loaded policy rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := buildSession()
		if err != nil {
			return err
		}
		defer sess.close()
		pack, err := policy.LoadPack(sess.cfg.PolicyPath)
		if err != nil {
			return err
		}
		fmt.Printf("policy pack %s (version %s)\n", sess.cfg.PolicyPath, pack.Version)
		for _, r := range pack.Rules {
			fmt.Printf("  %-24s %-40s %s\n", r.ID, r.Pattern, r.Reason)
		}
		if len(pack.Rules) == 0 {
			fmt.Println("  (no custom rules; built-in danger patterns apply)")
		}
		return nil
	},
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a policy pack file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := policyPath
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			sess, err := buildSession()
			if err != nil {
				return err
			}
			defer sess.close()
			path = sess.cfg.PolicyPath
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		pack, err := policyParse(data)
		if err != nil {
			return err
		}
		fmt.Printf("ok: %d rules\n", len(pack.Rules))
		return nil
	},
}

// policyParse is a seam shared with the serve reload path.
func policyParse(data []byte) (*policy.Pack, error) {
	return policy.ParsePack(data)
}

func init() {
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyValidateCmd)
	rootCmd.AddCommand(policyCmd)
}
