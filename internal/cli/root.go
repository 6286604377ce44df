package cli

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/runshield/bashx/internal/analyzer"
	"github.com/runshield/bashx/internal/audit"
	"github.com/runshield/bashx/internal/auth"
	"github.com/runshield/bashx/internal/config"
	"github.com/runshield/bashx/internal/dispatch"
	"github.com/runshield/bashx/internal/policy"
	"github.com/runshield/bashx/internal/sandbox"
	"github.com/runshield/bashx/internal/vfs"
)

var (
	policyPath string
	auditPath  string
	adminMode  bool
	noSandbox  bool
	workDir    string
)

var rootCmd = &cobra.Command{
	Use:   "bashx",
	Short: "Safety-gated bash execution dispatcher",
	Long: `bashx parses bash commands, classifies them for safety and intent,
and routes them through a tiered execution hierarchy, from in-process
reimplementations of POSIX commands up to a full sandbox.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "path to policy pack (default ~/.bashx/policy.yaml)")
	rootCmd.PersistentFlags().StringVar(&auditPath, "audit", "", "path to audit log (default ~/.bashx/audit.jsonl)")
	rootCmd.PersistentFlags().BoolVar(&adminMode, "admin", false, "grant the admin scope to this invocation")
	rootCmd.PersistentFlags().BoolVar(&noSandbox, "no-sandbox", false, "disable the local sandbox tier")
	rootCmd.PersistentFlags().StringVar(&workDir, "workdir", "", "root directory for filesystem commands (default cwd)")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session bundles everything a command needs.
type session struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	gate       *policy.Gate
	analyzer   *analyzer.Analyzer
	authCtx    *auth.Context
	logger     *audit.Logger
}

func (s *session) close() {
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

// buildSession wires the dispatcher for a local CLI invocation: filesystem
// rooted at the workdir, the host shell as the sandbox tier, and a local
// principal whose scopes come from the flags.
func buildSession() (*session, error) {
	cfg, err := config.Load(policyPath, auditPath)
	if err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	an := analyzer.New(home)

	pack, err := policy.LoadPack(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	gate := policy.NewGate(an)
	gate.SetExtra(pack.DangerPatterns())

	logger, err := audit.NewLogger(cfg.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	dir := workDir
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	d := dispatch.New(an, gate, logger)
	d.FS = vfs.NewOSFS(dir)
	d.HTTP = http.DefaultClient
	d.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	d.ContinueOnError = cfg.Dispatch.ContinueOnError
	if !noSandbox {
		d.Sandbox = sandbox.NewLocal(dir)
	}
	if cfg.Dispatch.RatePerSecond > 0 {
		lim := rate.Limit(cfg.Dispatch.RatePerSecond)
		d.RateLimit = &lim
		d.RateBurst = cfg.Dispatch.RateBurst
	}

	actx := &auth.Context{
		Authenticated: true,
		UserID:        localUser(),
		Scopes:        []string{auth.ScopeExec},
		Permissions:   auth.Permissions{Exec: true},
	}
	if adminMode {
		actx.Scopes = append(actx.Scopes, auth.ScopeAdmin)
		actx.Permissions.Admin = true
	}

	return &session{
		cfg:        cfg,
		dispatcher: d,
		gate:       gate,
		analyzer:   an,
		authCtx:    actx,
		logger:     logger,
	}, nil
}

func localUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
