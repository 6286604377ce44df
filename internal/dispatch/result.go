package dispatch

import (
	"github.com/runshield/bashx/internal/analyzer"
	"github.com/runshield/bashx/internal/tier"
)

// BashResult is the canonical outcome of one exec call. Exactly one is
// produced per call; policy blocks carry exit code 0 with Blocked set, and
// sandbox exit codes pass through unchanged.
type BashResult struct {
	Input       string                   `json:"input"`
	Command     string                   `json:"command"`
	Valid       bool                     `json:"valid"`
	Generated   bool                     `json:"generated"`
	Stdout      string                   `json:"stdout"`
	Stderr      string                   `json:"stderr"`
	ExitCode    int                      `json:"exitCode"`
	Intent      analyzer.Intent          `json:"intent"`
	Class       analyzer.Classification  `json:"classification"`
	Tier        tier.Classification      `json:"tier"`
	Blocked     bool                     `json:"blocked,omitempty"`
	BlockReason string                   `json:"blockReason,omitempty"`
}
