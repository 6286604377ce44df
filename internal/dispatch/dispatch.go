// Package dispatch wires the whole request path: policy gate, audit,
// pipeline splitting, tier classification, circuit-breaker-guarded
// execution and cross-tier fallback.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/runshield/bashx/internal/analyzer"
	"github.com/runshield/bashx/internal/ast"
	"github.com/runshield/bashx/internal/audit"
	"github.com/runshield/bashx/internal/auth"
	"github.com/runshield/bashx/internal/breaker"
	"github.com/runshield/bashx/internal/kernel"
	"github.com/runshield/bashx/internal/lexer"
	"github.com/runshield/bashx/internal/loader"
	"github.com/runshield/bashx/internal/policy"
	"github.com/runshield/bashx/internal/rpc"
	"github.com/runshield/bashx/internal/sandbox"
	"github.com/runshield/bashx/internal/tier"
	"github.com/runshield/bashx/internal/vfs"
)

// ErrNoTier is returned when a command needs the sandbox and none is bound.
var ErrNoTier = errors.New("no tier available")

// exitCancelled is 128+SIGINT, returned for cancelled requests.
const exitCancelled = 130

// Dispatcher routes commands through the four tiers. All collaborator
// fields are borrowed; nil means the capability is absent.
type Dispatcher struct {
	FS      vfs.FS
	HTTP    kernel.HTTPDoer
	RPC     []*rpc.Service
	Loaders []*loader.Binding
	Sandbox sandbox.Binding

	Gate     *policy.Gate
	Analyzer *analyzer.Analyzer
	Audit    audit.Sink

	// Breakers guard downstreams, keyed "rpc:<service>", "loader:<name>"
	// and "sandbox". Populated lazily when nil.
	Breakers map[string]*breaker.Breaker

	// Env is the base environment visible to native commands.
	Env map[string]string

	// ContinueOnError selects POSIX pipeline semantics instead of the
	// default short-circuit on the first non-zero exit.
	ContinueOnError bool

	// RateLimit, when set, throttles per-user exec calls.
	RateLimit *rate.Limit
	RateBurst int

	Rand *rand.Rand
	Now  func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a dispatcher with the analyzer-backed gate.
func New(a *analyzer.Analyzer, gate *policy.Gate, sink audit.Sink) *Dispatcher {
	return &Dispatcher{
		Analyzer: a,
		Gate:     gate,
		Audit:    sink,
		Breakers: map[string]*breaker.Breaker{},
	}
}

func (d *Dispatcher) bindings() tier.Bindings {
	b := tier.Bindings{
		FSBound:      d.FS != nil,
		SandboxBound: d.Sandbox != nil,
	}
	if len(d.RPC) > 0 {
		b.RPCCommands = map[string]string{}
		for _, svc := range d.RPC {
			for _, c := range svc.Commands() {
				b.RPCCommands[c] = svc.Name()
			}
		}
	}
	if len(d.Loaders) > 0 {
		b.LoaderModules = map[string]string{}
		for _, l := range d.Loaders {
			for _, m := range l.Modules {
				b.LoaderModules[m] = l.Name
			}
		}
	}
	return b
}

func (d *Dispatcher) breakerFor(name string) *breaker.Breaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Breakers == nil {
		d.Breakers = map[string]*breaker.Breaker{}
	}
	b, okB := d.Breakers[name]
	if !okB {
		b = breaker.New(breaker.Config{Name: name})
		d.Breakers[name] = b
	}
	return b
}

// allowRate applies the optional per-user limiter.
func (d *Dispatcher) allowRate(userID string) bool {
	if d.RateLimit == nil {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.limiters == nil {
		d.limiters = map[string]*rate.Limiter{}
	}
	lim, okL := d.limiters[userID]
	if !okL {
		burst := d.RateBurst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(*d.RateLimit, burst)
		d.limiters[userID] = lim
	}
	return lim.Allow()
}

// Exec runs one command through policy, audit and the tier pipeline.
// Exactly one audit record is emitted per call.
func (d *Dispatcher) Exec(ctx context.Context, command string, actx *auth.Context, stdin string) *BashResult {
	prog := ast.Parse(command)
	analysis := d.Analyzer.Analyze(prog)
	res := &BashResult{
		Input:   command,
		Command: command,
		Valid:   prog.Valid(),
		Intent:  analysis.Intent,
		Class:   analysis.Classification,
	}

	verdict := d.Gate.Check(actx, command, prog)
	userID := ""
	if actx != nil {
		userID = actx.UserID
	}
	if verdict.Blocked {
		d.record(userID, command, true, verdict.Reason)
		res.Blocked = true
		res.BlockReason = verdict.Reason
		res.ExitCode = 0
		return res
	}
	d.record(userID, command, false, "executed")

	if !d.allowRate(userID) {
		res.Stderr = "rate limit exceeded\n"
		res.ExitCode = 1
		return res
	}

	out := d.runPipeline(ctx, command, stdin, cloneEnv(d.Env))
	res.Stdout = out.result.Stdout
	res.Stderr = out.result.Stderr
	res.ExitCode = out.result.ExitCode
	res.Tier = out.tier
	return res
}

func (d *Dispatcher) record(userID, command string, blockedRec bool, reason string) {
	if d.Audit == nil {
		return
	}
	d.Audit.Record(audit.NewRecord(userID, command, blockedRec, reason))
}

func cloneEnv(base map[string]string) map[string]string {
	env := make(map[string]string, len(base))
	for k, v := range base {
		env[k] = v
	}
	return env
}

type pipelineOutcome struct {
	result kernel.Result
	tier   tier.Classification
}

// runPipeline executes segments left to right, threading stdout to stdin.
// The default semantics short-circuit on the first non-zero exit.
func (d *Dispatcher) runPipeline(ctx context.Context, command, stdin string, env map[string]string) pipelineOutcome {
	segments := SplitPipeline(command)
	cur := stdin
	var last pipelineOutcome
	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			return pipelineOutcome{result: kernel.Result{Stderr: "cancelled\n", ExitCode: exitCancelled}}
		}
		segStdin := cur
		seg := segment

		// `cmd < file` rewrites to cmd with the file contents as stdin
		if inner, file := splitStdinRedirect(segment); file != "" && d.FS != nil {
			data, err := d.FS.Read(file)
			if err != nil {
				return pipelineOutcome{result: kernel.Result{
					Stderr:   fmt.Sprintf("%s: %v\n", file, err),
					ExitCode: 1,
				}}
			}
			seg = inner
			segStdin = string(data)
		}

		out := d.execSegment(ctx, seg, segStdin, env)
		last = out
		if out.result.ExitCode != 0 && !d.ContinueOnError {
			return out
		}
		cur = out.result.Stdout
	}
	return last
}

// execSegment classifies one pipeline segment and executes it at the
// selected tier, falling back to the sandbox when a tier throws or its
// breaker is open. Non-zero exits never trigger fallback.
func (d *Dispatcher) execSegment(ctx context.Context, segment, stdin string, env map[string]string) pipelineOutcome {
	name, args, prefixEnv := splitSegment(segment)
	merged := env
	if len(prefixEnv) > 0 {
		merged = make(map[string]string, len(env)+len(prefixEnv))
		for k, v := range env {
			merged[k] = v
		}
		for k, v := range prefixEnv {
			merged[k] = v
		}
	}

	cls := tier.Classify(name, d.bindings())
	res, err := d.execAt(ctx, cls, name, args, segment, stdin, merged)
	if err == nil {
		return pipelineOutcome{result: res, tier: cls}
	}

	// cross-tier fallback: thrown errors (including CircuitOpen) retry at
	// Tier 4 when a sandbox is bound
	if cls.Tier != tier.TierSandbox && d.Sandbox != nil {
		fmt.Fprintf(os.Stderr, "[bashx] warning: tier %d failed for %q (%v), falling back to sandbox\n", cls.Tier, name, err)
		sandboxCls := tier.Classification{
			Tier: tier.TierSandbox, Handler: tier.HandlerSandbox,
			Capability: "sandbox", Reason: "fallback from " + string(cls.Handler),
		}
		res, err = d.execAt(ctx, sandboxCls, name, args, segment, stdin, merged)
		if err == nil {
			return pipelineOutcome{result: res, tier: sandboxCls}
		}
		return pipelineOutcome{result: kernel.Result{Stderr: err.Error() + "\n", ExitCode: 1}, tier: sandboxCls}
	}
	return pipelineOutcome{result: kernel.Result{Stderr: err.Error() + "\n", ExitCode: 1}, tier: cls}
}

// execAt runs a segment at one tier under that tier's breaker.
func (d *Dispatcher) execAt(ctx context.Context, cls tier.Classification, name string, args []string, segment, stdin string, env map[string]string) (kernel.Result, error) {
	switch cls.Handler {
	case tier.HandlerNative:
		return d.execNative(ctx, name, args, segment, stdin, env)
	case tier.HandlerRPC:
		return d.execRPC(ctx, cls.Capability, segment, stdin, env)
	case tier.HandlerLoader:
		return d.execLoader(ctx, cls.Capability, name, args, stdin)
	default:
		return d.execSandbox(ctx, segment, stdin, env)
	}
}

func (d *Dispatcher) execNative(ctx context.Context, name string, args []string, segment, stdin string, env map[string]string) (kernel.Result, error) {
	kctx := &kernel.Context{
		Ctx:   ctx,
		Stdin: stdin,
		Env:   env,
		FS:    d.FS,
		HTTP:  d.HTTP,
		Rand:  d.Rand,
		Now:   d.Now,
		Execute: func(subCtx context.Context, command, subStdin string) kernel.Result {
			out := d.runPipeline(subCtx, command, subStdin, env)
			return out.result
		},
	}
	args, redirect := extractOutputRedirect(args)
	res := kernel.Run(kctx, name, args)
	if redirect.file != "" {
		if d.FS == nil {
			return kernel.Result{Stderr: redirect.file + ": no filesystem bound\n", ExitCode: 1}, nil
		}
		var err error
		if redirect.appendTo {
			err = d.FS.Append(redirect.file, []byte(res.Stdout))
		} else {
			err = d.FS.Write(redirect.file, []byte(res.Stdout))
		}
		if err != nil {
			return kernel.Result{Stderr: err.Error() + "\n", ExitCode: 1}, nil
		}
		res.Stdout = ""
	}
	return res, nil
}

func (d *Dispatcher) execRPC(ctx context.Context, serviceName, segment, stdin string, env map[string]string) (kernel.Result, error) {
	var svc *rpc.Service
	for _, s := range d.RPC {
		if s.Name() == serviceName {
			svc = s
			break
		}
	}
	if svc == nil {
		return kernel.Result{}, fmt.Errorf("rpc service %s not bound", serviceName)
	}
	b := d.breakerFor("rpc:" + serviceName)
	if err := b.Allow(); err != nil {
		return kernel.Result{}, err
	}
	res, err := svc.Exec(ctx, segment, stdin, env)
	b.Record(err)
	return res, err
}

func (d *Dispatcher) execLoader(ctx context.Context, loaderName, module string, args []string, stdin string) (kernel.Result, error) {
	var binding *loader.Binding
	for _, l := range d.Loaders {
		if l.Name == loaderName {
			binding = l
			break
		}
	}
	if binding == nil {
		return kernel.Result{}, fmt.Errorf("loader %s not bound", loaderName)
	}
	b := d.breakerFor("loader:" + loaderName)
	if err := b.Allow(); err != nil {
		return kernel.Result{}, err
	}
	res, err := binding.Invoke(ctx, module, args, stdin)
	b.Record(err)
	return res, err
}

func (d *Dispatcher) execSandbox(ctx context.Context, segment, stdin string, env map[string]string) (kernel.Result, error) {
	if d.Sandbox == nil {
		return kernel.Result{}, fmt.Errorf("%w: sandbox required for %q", ErrNoTier, segment)
	}
	b := d.breakerFor("sandbox")
	if err := b.Allow(); err != nil {
		return kernel.Result{}, err
	}
	res, err := d.Sandbox.Execute(ctx, segment, sandbox.Options{Stdin: stdin, Env: env})
	b.Record(err)
	return res, err
}

// splitSegment lexes one pipeline segment into its command name, argv and
// leading environment assignments.
func splitSegment(segment string) (string, []string, map[string]string) {
	toks := lexer.Scan(segment)
	var name string
	var args []string
	env := map[string]string{}
	prefix := true
	for _, t := range toks {
		switch t.Kind {
		case lexer.TokWord:
			if prefix && name == "" && lexer.IsAssignment(t.Text) {
				if k, v, okA := strings.Cut(t.Value, "="); okA {
					env[k] = v
				}
				continue
			}
			prefix = false
			if name == "" {
				name = t.Value
			} else {
				args = append(args, t.Value)
			}
		case lexer.TokRedirect:
			// kept in args for extractOutputRedirect
			args = append(args, t.Text)
		case lexer.TokEOF, lexer.TokNewline:
			// done
		default:
			// list operators inside a segment (&&, ||, ;) mean compound
			// semantics; the segment still routes as its first command and
			// the sandbox tier sees the raw string
			args = append(args, t.Text)
		}
	}
	return name, args, env
}

type outputRedirect struct {
	file     string
	appendTo bool
}

// extractOutputRedirect strips a trailing > or >> redirect from argv so
// native commands can honor it against the filesystem capability.
func extractOutputRedirect(args []string) ([]string, outputRedirect) {
	for i := 0; i < len(args); i++ {
		if args[i] == ">" || args[i] == ">>" {
			if i+1 < len(args) {
				return args[:i], outputRedirect{file: args[i+1], appendTo: args[i] == ">>"}
			}
			return args[:i], outputRedirect{}
		}
	}
	return args, outputRedirect{}
}
