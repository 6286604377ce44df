// Package tier maps a command name plus the set of bound capabilities to
// one of the four execution tiers. Classification is pure: it never calls
// into any binding, it only inspects what is present.
package tier

import (
	"fmt"

	"github.com/runshield/bashx/internal/kernel"
)

// Tier is one of the four execution environments, cheapest first.
type Tier int

const (
	TierNative  Tier = 1 // in-process kernel
	TierRPC     Tier = 2 // remote service endpoint
	TierLoader  Tier = 3 // dynamically loaded module
	TierSandbox Tier = 4 // full Linux sandbox
)

// Handler names the mechanism behind a tier.
type Handler string

const (
	HandlerNative  Handler = "native"
	HandlerRPC     Handler = "rpc"
	HandlerLoader  Handler = "loader"
	HandlerSandbox Handler = "sandbox"
)

// Classification is the routing decision for one command.
type Classification struct {
	Tier       Tier
	Handler    Handler
	Capability string
	Reason     string
}

// Bindings describes what is attached to the dispatcher. RPCCommands maps a
// command name to the service that advertises it; LoaderModules maps a
// module name to its loader.
type Bindings struct {
	FSBound       bool
	RPCCommands   map[string]string
	LoaderModules map[string]string
	SandboxBound  bool
}

// Classify decides the tier for a command name.
func Classify(name string, b Bindings) Classification {
	if name != "" && kernel.Has(name) {
		capability := kernel.Capability(name)
		if !kernel.NeedsFS(name) || b.FSBound {
			return Classification{
				Tier:       TierNative,
				Handler:    HandlerNative,
				Capability: capability,
				Reason:     fmt.Sprintf("%s is implemented natively (%s)", name, capability),
			}
		}
		// native fs command without a bound filesystem falls through
	}
	if svc, okSvc := b.RPCCommands[name]; okSvc {
		return Classification{
			Tier:       TierRPC,
			Handler:    HandlerRPC,
			Capability: svc,
			Reason:     fmt.Sprintf("%s is served by rpc service %s", name, svc),
		}
	}
	if loader, okLd := b.LoaderModules[name]; okLd {
		return Classification{
			Tier:       TierLoader,
			Handler:    HandlerLoader,
			Capability: loader,
			Reason:     fmt.Sprintf("%s loads via %s", name, loader),
		}
	}
	reason := "requires full sandbox"
	if name == "" {
		reason = "empty command requires a sandbox shell"
	}
	return Classification{
		Tier:       TierSandbox,
		Handler:    HandlerSandbox,
		Capability: "sandbox",
		Reason:     reason,
	}
}
