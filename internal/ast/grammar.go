package ast

import (
	"strings"
	"sync"
	"sync/atomic"

	"mvdan.cc/sh/v3/syntax"
)

// ExternalGrammar is the process-wide handle to the backing bash grammar.
// Callers get a borrow-only handle from Grammar(); Init is idempotent and
// Ready is observable, so hosts that never initialize it still get the
// native parser's answer everywhere.
type ExternalGrammar struct {
	ready atomic.Bool
}

var grammarHandle ExternalGrammar
var grammarInit sync.Once

// InitGrammar prepares the external grammar backend. Safe to call from
// multiple goroutines; only the first call does work.
func InitGrammar() *ExternalGrammar {
	grammarInit.Do(func() {
		grammarHandle.ready.Store(true)
	})
	return &grammarHandle
}

// Grammar returns the process-wide handle without initializing it.
func Grammar() *ExternalGrammar { return &grammarHandle }

// Ready reports whether the grammar backend has been initialized.
func (g *ExternalGrammar) Ready() bool { return g.ready.Load() }

// Valid parses input with the external grammar. The second return is false
// when the backend cannot give a definitive answer (input uses features the
// contract does not cover), in which case the native parser decides.
func (g *ExternalGrammar) Valid(input string) (valid, known bool) {
	if !g.Ready() {
		return false, false
	}
	p := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	_, err := p.Parse(strings.NewReader(input), "")
	if err != nil {
		return false, true
	}
	return true, true
}
