// Package loader is the Tier 3 binding: dynamically loaded modules invoked
// through whichever entry point they export.
package loader

import (
	"context"
	"fmt"

	"github.com/runshield/bashx/internal/kernel"
)

// Module is one loaded unit. The loader resolves run, main or default —
// in that order — to an entry function.
type Module interface {
	// Entry returns the callable for the module, or an error when none of
	// the known entry points exist.
	Entry() (func(ctx context.Context, args []string, stdin string) (kernel.Result, error), error)
}

// Binding names a loader and the modules it can produce.
type Binding struct {
	Name    string
	Modules []string
	// Load materializes a module by name.
	Load func(ctx context.Context, module string) (Module, error)
}

// Has reports whether the binding advertises a module.
func (b *Binding) Has(module string) bool {
	for _, m := range b.Modules {
		if m == module {
			return true
		}
	}
	return false
}

// Invoke loads and runs a module.
func (b *Binding) Invoke(ctx context.Context, module string, args []string, stdin string) (kernel.Result, error) {
	if b.Load == nil {
		return kernel.Result{}, fmt.Errorf("loader %s: no load function bound", b.Name)
	}
	mod, err := b.Load(ctx, module)
	if err != nil {
		return kernel.Result{}, fmt.Errorf("loader %s: load %s: %w", b.Name, module, err)
	}
	entry, err := mod.Entry()
	if err != nil {
		return kernel.Result{}, fmt.Errorf("loader %s: %s: %w", b.Name, module, err)
	}
	return entry(ctx, args, stdin)
}

// FuncModule adapts a bare function into a Module; hosts that resolve
// run/main/default themselves hand the chosen one in.
type FuncModule func(ctx context.Context, args []string, stdin string) (kernel.Result, error)

func (f FuncModule) Entry() (func(ctx context.Context, args []string, stdin string) (kernel.Result, error), error) {
	if f == nil {
		return nil, fmt.Errorf("module exports no run, main or default entry")
	}
	return f, nil
}
