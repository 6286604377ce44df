package lexer

import (
	"testing"
)

func wordsOf(toks []Token) []Token {
	var out []Token
	for _, t := range toks {
		if t.Kind == TokWord {
			out = append(out, t)
		}
	}
	return out
}

func TestScanSimpleCommand(t *testing.T) {
	toks := Scan("echo hello world")
	words := wordsOf(toks)
	if len(words) != 3 {
		t.Fatalf("expected 3 words, got %d: %+v", len(words), words)
	}
	want := []string{"echo", "hello", "world"}
	for i, w := range words {
		if w.Value != want[i] {
			t.Errorf("word %d = %q, want %q", i, w.Value, want[i])
		}
	}
}

func TestScanSingleQuotesPreserveEverything(t *testing.T) {
	toks := Scan(`echo 'a $VAR \n b'`)
	words := wordsOf(toks)
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if words[1].Value != `a $VAR \n b` {
		t.Errorf("single-quoted value = %q", words[1].Value)
	}
	if words[1].Quote != QuoteSingle {
		t.Errorf("quote = %v, want single", words[1].Quote)
	}
	if len(words[1].Expansions) != 0 {
		t.Errorf("single quotes must not record expansions: %+v", words[1].Expansions)
	}
}

func TestScanDoubleQuoteEscapes(t *testing.T) {
	// only \\ \" \$ \` are escapes inside double quotes
	tests := []struct {
		in, want string
	}{
		{`echo "a\"b"`, `a"b`},
		{`echo "a\$b"`, `a$b`},
		{`echo "a\\b"`, `a\b`},
		{`echo "a\nb"`, `a\nb`}, // backslash preserved before other chars
	}
	for _, tt := range tests {
		words := wordsOf(Scan(tt.in))
		if len(words) != 2 {
			t.Fatalf("%q: expected 2 words", tt.in)
		}
		if words[1].Value != tt.want {
			t.Errorf("%q: value = %q, want %q", tt.in, words[1].Value, tt.want)
		}
	}
}

func TestScanExpansions(t *testing.T) {
	words := wordsOf(Scan(`echo $HOME ${PATH} $(id) file*.txt`))
	if len(words) != 5 {
		t.Fatalf("expected 5 words, got %d", len(words))
	}
	checks := []struct {
		idx  int
		kind ExpansionKind
	}{
		{1, ExpVariable},
		{2, ExpParameter},
		{3, ExpCommand},
		{4, ExpGlob},
	}
	for _, c := range checks {
		w := words[c.idx]
		if len(w.Expansions) == 0 || w.Expansions[0].Kind != c.kind {
			t.Errorf("word %d (%q): expansions = %+v, want kind %v", c.idx, w.Text, w.Expansions, c.kind)
		}
	}
}

func TestScanVariableInsideDoubleQuotes(t *testing.T) {
	words := wordsOf(Scan(`echo "$USER is here"`))
	if len(words) != 2 {
		t.Fatalf("expected 2 words")
	}
	if !hasKind(words[1].Expansions, ExpVariable) {
		t.Errorf("expected variable expansion recorded, got %+v", words[1].Expansions)
	}
}

func hasKind(exps []Expansion, kind ExpansionKind) bool {
	for _, e := range exps {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestScanOperators(t *testing.T) {
	toks := Scan("a | b || c && d ; e & f")
	var kinds []TokenKind
	for _, tok := range toks {
		if tok.Kind != TokWord && tok.Kind != TokEOF {
			kinds = append(kinds, tok.Kind)
		}
	}
	want := []TokenKind{TokPipe, TokOrOr, TokAndAnd, TokSemi, TokAmp}
	if len(kinds) != len(want) {
		t.Fatalf("operators = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("operator %d = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestScanRedirects(t *testing.T) {
	toks := Scan("cmd > out.txt 2>&1 < in.txt >> log")
	var redirects []Token
	for _, tok := range toks {
		if tok.Kind == TokRedirect {
			redirects = append(redirects, tok)
		}
	}
	if len(redirects) != 4 {
		t.Fatalf("expected 4 redirects, got %d: %+v", len(redirects), redirects)
	}
	if redirects[0].Text != ">" || redirects[0].FD != -1 {
		t.Errorf("first redirect = %+v", redirects[0])
	}
	if redirects[1].Text != ">&" || redirects[1].FD != 2 {
		t.Errorf("fd redirect = %+v", redirects[1])
	}
	if redirects[2].Text != "<" {
		t.Errorf("input redirect = %+v", redirects[2])
	}
	if redirects[3].Text != ">>" {
		t.Errorf("append redirect = %+v", redirects[3])
	}
}

func TestScanComment(t *testing.T) {
	words := wordsOf(Scan("echo hi # this is a comment"))
	if len(words) != 2 {
		t.Fatalf("comment should be dropped, got %d words", len(words))
	}
}

func TestScanAnsiCQuote(t *testing.T) {
	words := wordsOf(Scan(`echo $'a\tb'`))
	if len(words) != 2 {
		t.Fatalf("expected 2 words")
	}
	if words[1].Value != "a\tb" {
		t.Errorf("ansi-c value = %q", words[1].Value)
	}
	if words[1].Quote != QuoteAnsiC {
		t.Errorf("quote = %v, want ansi-c", words[1].Quote)
	}
}

func TestIsAssignment(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"FOO=bar", true},
		{"FOO_BAR2=x", true},
		{"_X=1", true},
		{"FOO+=bar", true},
		{"foo=bar", false}, // lowercase names are not env-prefix assignments
		{"=bar", false},
		{"FOO", false},
		{"2FOO=x", false},
	}
	for _, tt := range tests {
		if got := IsAssignment(tt.in); got != tt.want {
			t.Errorf("IsAssignment(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPipeNotSplitInQuotes(t *testing.T) {
	words := wordsOf(Scan(`grep 'a|b' file`))
	if len(words) != 3 {
		t.Fatalf("quoted pipe must stay in the word: %+v", words)
	}
	if words[1].Value != "a|b" {
		t.Errorf("value = %q", words[1].Value)
	}
}
