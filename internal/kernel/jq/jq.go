// Package jq implements a small jq-style query engine. A query is compiled
// once into a stage pipeline and then interpreted against the decoded JSON
// data tree; every stage maps one input value to a stream of output values,
// which is how the iterator .[] propagates element-wise through the rest of
// the pipeline.
package jq

import (
	"fmt"
	"strings"
)

// Query is a compiled pipeline.
type Query struct {
	src    string
	stages []node
}

// Compile parses a query. The result is reusable and safe for concurrent use.
func Compile(src string) (*Query, error) {
	parts, err := splitPipeline(src)
	if err != nil {
		return nil, err
	}
	q := &Query{src: src}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p := newParser(part)
		n, err := p.parseExpr()
		if err != nil {
			return nil, fmt.Errorf("jq: %w", err)
		}
		if !p.atEnd() {
			return nil, fmt.Errorf("jq: trailing input in %q", part)
		}
		q.stages = append(q.stages, n)
	}
	if len(q.stages) == 0 {
		q.stages = []node{identityNode{}}
	}
	return q, nil
}

// Run evaluates the query against one input value. vars holds --arg /
// --argjson bindings.
func (q *Query) Run(input any, vars map[string]any) ([]any, error) {
	values := []any{input}
	env := &env{vars: vars}
	for _, st := range q.stages {
		var next []any
		for _, v := range values {
			out, err := st.eval(v, env)
			if err != nil {
				return nil, err
			}
			next = append(next, out...)
		}
		values = next
	}
	return values, nil
}

type env struct {
	vars map[string]any
}

// splitPipeline splits on top-level | (not || / not inside brackets or
// strings).
func splitPipeline(src string) ([]string, error) {
	var parts []string
	depth := 0
	inStr := false
	start := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inStr {
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("jq: unbalanced brackets in %q", src)
			}
		case '|':
			if depth == 0 {
				if i+1 < len(src) && src[i+1] == '|' {
					i++ // "||" is not a pipe; it stays inside the stage
					continue
				}
				// "|=" update assignment is not a pipe
				if i+1 < len(src) && src[i+1] == '=' {
					i++
					continue
				}
				parts = append(parts, src[start:i])
				start = i + 1
			}
		}
	}
	if inStr || depth != 0 {
		return nil, fmt.Errorf("jq: unbalanced query %q", src)
	}
	parts = append(parts, src[start:])
	return parts, nil
}
