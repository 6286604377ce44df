package ast

import (
	"strings"

	"github.com/runshield/bashx/internal/lexer"
)

// Parse lexes and parses input. It always returns a Program; syntax
// problems are recovered into ErrorNodes and recorded in Program.Errors,
// never aborting the parse.
func Parse(input string) *Program {
	p := &parser{input: input, toks: lexer.Scan(input)}
	prog := &Program{}
	for !p.atEOF() {
		p.skipSeparators()
		if p.atEOF() {
			break
		}
		node := p.parseList()
		if node != nil {
			prog.Body = append(prog.Body, node)
		}
	}
	prog.Errors = append(prog.Errors, p.errors...)
	return prog
}

// IsValidSyntax reports whether input parses cleanly. When the external
// grammar is initialized it is consulted first; the native parser is the
// fallback so the answer is always available.
func IsValidSyntax(input string) bool {
	if g := Grammar(); g.Ready() {
		ok, known := g.Valid(input)
		if known {
			return ok
		}
	}
	return Parse(input).Valid()
}

type parser struct {
	input  string
	toks   []lexer.Token
	pos    int
	errors []ParseError
}

func (p *parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool       { return p.toks[p.pos].Kind == lexer.TokEOF }
func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if !p.atEOF() {
		p.pos++
	}
	return t
}

func (p *parser) errorf(pos int, msg string) {
	p.errors = append(p.errors, ParseError{Pos: pos, Message: msg})
}

func (p *parser) skipSeparators() {
	for {
		switch p.cur().Kind {
		case lexer.TokSemi, lexer.TokNewline:
			p.pos++
		default:
			return
		}
	}
}

// recover skips tokens until the next list delimiter so parsing continues.
func (p *parser) recover() string {
	start := p.cur().Span.Start
	end := start
	for !p.atEOF() {
		k := p.cur().Kind
		if k == lexer.TokSemi || k == lexer.TokNewline || k == lexer.TokAmp {
			break
		}
		end = p.cur().Span.End
		p.pos++
	}
	return strings.TrimSpace(p.input[start:end])
}

// parseList handles pipeline (op pipeline)* with left association.
func (p *parser) parseList() Node {
	left := p.parsePipeline()
	for {
		switch p.cur().Kind {
		case lexer.TokAndAnd:
			p.advance()
			p.skipNewlines()
			right := p.parsePipeline()
			left = &List{Left: left, Op: OpAnd, Right: right}
		case lexer.TokOrOr:
			p.advance()
			p.skipNewlines()
			right := p.parsePipeline()
			left = &List{Left: left, Op: OpOr, Right: right}
		case lexer.TokAmp:
			p.advance()
			if p.listContinues() {
				right := p.parsePipeline()
				left = &List{Left: left, Op: OpBackground, Right: right}
			} else {
				left = &List{Left: left, Op: OpBackground}
			}
		case lexer.TokSemi:
			p.advance()
			if p.listContinues() {
				right := p.parsePipeline()
				left = &List{Left: left, Op: OpSeq, Right: right}
				continue
			}
			return left
		default:
			return left
		}
	}
}

func (p *parser) skipNewlines() {
	for p.cur().Kind == lexer.TokNewline {
		p.pos++
	}
}

// listContinues reports whether another pipeline follows on this line.
func (p *parser) listContinues() bool {
	switch p.cur().Kind {
	case lexer.TokEOF, lexer.TokNewline, lexer.TokRParen:
		return false
	}
	return true
}

// parsePipeline handles '!'? simple ('|' simple)*.
func (p *parser) parsePipeline() Node {
	negated := false
	if p.cur().Kind == lexer.TokBang {
		p.advance()
		negated = true
	}
	first := p.parseSimple()
	if first == nil {
		p.errorf(p.cur().Span.Start, "expected command")
		return &ErrorNode{Raw: p.recover(), Reason: "expected command"}
	}
	if p.cur().Kind != lexer.TokPipe && !negated {
		return first
	}
	pipe := &Pipeline{Stages: []Node{first}, Negated: negated}
	for p.cur().Kind == lexer.TokPipe {
		p.advance()
		p.skipNewlines()
		stage := p.parseSimple()
		if stage == nil {
			p.errorf(p.cur().Span.Start, "missing command after |")
			stage = &ErrorNode{Raw: p.recover(), Reason: "missing command after |"}
		}
		pipe.Stages = append(pipe.Stages, stage)
	}
	if len(pipe.Stages) == 1 && !pipe.Negated {
		return pipe.Stages[0]
	}
	return pipe
}

var compoundOpeners = map[string]CompoundKind{
	"if": CompoundIf, "while": CompoundWhile, "for": CompoundFor, "case": CompoundCase,
}

var compoundClosers = map[CompoundKind]string{
	CompoundIf: "fi", CompoundWhile: "done", CompoundFor: "done", CompoundCase: "esac",
}

// parseSimple handles compound | subshell | function_def | command.
func (p *parser) parseSimple() Node {
	switch p.cur().Kind {
	case lexer.TokLParen:
		return p.parseSubshell()
	case lexer.TokLBrace:
		return p.parseBraceGroup()
	case lexer.TokRParen:
		p.errorf(p.cur().Span.Start, "unexpected )")
		p.advance()
		return &ErrorNode{Raw: ")", Reason: "unexpected )"}
	case lexer.TokWord:
		w := p.cur()
		if kind, ok := compoundOpeners[w.Value]; ok && w.Quote == lexer.QuoteNone {
			return p.parseCompound(kind)
		}
		if w.Value == "function" && w.Quote == lexer.QuoteNone {
			return p.parseFunctionDef(true)
		}
		// name () introduces a function definition
		if p.peekKind(1) == lexer.TokLParen && p.peekKind(2) == lexer.TokRParen {
			return p.parseFunctionDef(false)
		}
		return p.parseCommand()
	default:
		return nil
	}
}

func (p *parser) peekKind(off int) lexer.TokenKind {
	if p.pos+off >= len(p.toks) {
		return lexer.TokEOF
	}
	return p.toks[p.pos+off].Kind
}

func (p *parser) parseSubshell() Node {
	open := p.advance() // (
	sub := &Subshell{}
	for {
		p.skipSeparators()
		if p.atEOF() {
			p.errorf(open.Span.Start, "unterminated subshell")
			break
		}
		if p.cur().Kind == lexer.TokRParen {
			p.advance()
			break
		}
		node := p.parseList()
		if node != nil {
			sub.Body = append(sub.Body, node)
		}
	}
	return sub
}

// parseBraceGroup captures { ... } verbatim; the dispatcher sends compound
// commands to the sandbox unchanged.
func (p *parser) parseBraceGroup() Node {
	start := p.cur().Span.Start
	depth := 0
	end := start
	for !p.atEOF() {
		switch p.cur().Kind {
		case lexer.TokLBrace:
			depth++
		case lexer.TokRBrace:
			depth--
		}
		end = p.cur().Span.End
		p.advance()
		if depth == 0 {
			return &CompoundCommand{Kind: CompoundBrace, Raw: strings.TrimSpace(p.input[start:end])}
		}
	}
	p.errorf(start, "unterminated { group")
	return &CompoundCommand{Kind: CompoundBrace, Raw: strings.TrimSpace(p.input[start:end])}
}

// parseCompound captures an if/while/for/case construct through its closing
// keyword, honoring nesting of the same opener.
func (p *parser) parseCompound(kind CompoundKind) Node {
	start := p.cur().Span.Start
	closer := compoundClosers[kind]
	opener := p.cur().Value
	depth := 0
	end := start
	for !p.atEOF() {
		t := p.cur()
		if t.Kind == lexer.TokWord && t.Quote == lexer.QuoteNone {
			switch t.Value {
			case opener:
				depth++
			case closer:
				depth--
			}
		}
		end = t.Span.End
		p.advance()
		if depth == 0 {
			return &CompoundCommand{Kind: kind, Raw: strings.TrimSpace(p.input[start:end])}
		}
	}
	p.errorf(start, "unterminated "+string(kind)+" (missing "+closer+")")
	return &CompoundCommand{Kind: kind, Raw: strings.TrimSpace(p.input[start:end])}
}

// parseFunctionDef captures a function definition verbatim.
func (p *parser) parseFunctionDef(keyword bool) Node {
	start := p.cur().Span.Start
	var name string
	if keyword {
		p.advance() // function
		if p.cur().Kind != lexer.TokWord {
			p.errorf(start, "function keyword without name")
			return &ErrorNode{Raw: p.recover(), Reason: "function keyword without name"}
		}
		name = p.cur().Value
		p.advance()
		if p.cur().Kind == lexer.TokLParen && p.peekKind(1) == lexer.TokRParen {
			p.advance()
			p.advance()
		}
	} else {
		name = p.cur().Value
		p.advance() // name
		p.advance() // (
		p.advance() // )
	}
	p.skipNewlines()
	end := p.cur().Span.End
	if p.cur().Kind == lexer.TokLBrace {
		depth := 0
		for !p.atEOF() {
			switch p.cur().Kind {
			case lexer.TokLBrace:
				depth++
			case lexer.TokRBrace:
				depth--
			}
			end = p.cur().Span.End
			p.advance()
			if depth == 0 {
				break
			}
		}
		if depth != 0 {
			p.errorf(start, "unterminated function body")
		}
	} else {
		p.errorf(start, "function "+name+" without body")
	}
	return &FunctionDef{Name: name, Raw: strings.TrimSpace(p.input[start:end])}
}

// parseCommand handles assignment* word+ redirect*.
func (p *parser) parseCommand() Node {
	cmd := &Command{}
	// prefix assignments
	for p.cur().Kind == lexer.TokWord && cmd.Name == nil {
		t := p.cur()
		if !lexer.IsAssignment(t.Text) {
			break
		}
		p.advance()
		cmd.Assignments = append(cmd.Assignments, splitAssignment(t))
	}
	for {
		t := p.cur()
		switch t.Kind {
		case lexer.TokWord:
			p.advance()
			w := tokenWord(t)
			if cmd.Name == nil {
				cmd.Name = &w
			} else {
				cmd.Args = append(cmd.Args, w)
			}
		case lexer.TokRedirect:
			p.advance()
			if p.cur().Kind != lexer.TokWord {
				p.errorf(t.Span.Start, "redirect "+t.Text+" without target")
				cmd.Redirects = append(cmd.Redirects, Redirect{Op: t.Text, FD: t.FD})
				continue
			}
			target := p.advance()
			cmd.Redirects = append(cmd.Redirects, Redirect{Op: t.Text, FD: t.FD, Target: tokenWord(target)})
		default:
			if cmd.Name == nil && len(cmd.Assignments) == 0 {
				return nil
			}
			return cmd
		}
	}
}

func tokenWord(t lexer.Token) Word {
	return Word{Text: t.Text, Value: t.Value, Quote: t.Quote, Expansions: t.Expansions, Span: t.Span}
}

func splitAssignment(t lexer.Token) Assignment {
	eq := strings.IndexByte(t.Text, '=')
	name := t.Text[:eq]
	a := Assignment{Name: name}
	if strings.HasSuffix(name, "+") {
		a.Name = name[:len(name)-1]
		a.Append = true
	}
	rawVal := t.Text[eq+1:]
	if rawVal != "" || eq+1 < len(t.Text) {
		// recover the unquoted value by re-lexing the right-hand side
		valEq := strings.IndexByte(t.Value, '=')
		val := ""
		if valEq >= 0 {
			val = t.Value[valEq+1:]
		}
		w := Word{Text: rawVal, Value: val, Quote: t.Quote, Expansions: t.Expansions}
		a.Value = &w
	}
	return a
}
