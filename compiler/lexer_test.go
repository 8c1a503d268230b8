package compiler

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `| , ( ) { } [ ] ; + - * / % += -= *= /= = ! ++ -- != == < > >= <=`
	expected := []TokenType{
		TokenBar, TokenComma, TokenLParen, TokenRParen, TokenLBrace, TokenRBrace,
		TokenLBracket, TokenRBracket, TokenSemicolon,
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent,
		TokenPlusAssign, TokenMinusAssign, TokenStarAssign, TokenSlashAssign,
		TokenAssign, TokenBang, TokenIncrement, TokenDecrement,
		TokenNotEqual, TokenEqual, TokenLess, TokenGreater, TokenGreaterEqual, TokenLessEqual,
		TokenEnd,
	}

	tokens := tokenize(input)
	if len(tokens) != len(expected) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(expected), tokens)
	}
	for i, want := range expected {
		if tokens[i].Type != want {
			t.Errorf("token[%d] type = %v, want %v", i, tokens[i].Type, want)
		}
	}
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		lit   string
	}{
		{"true", TokenTrue, ""},
		{"false", TokenFalse, ""},
		{"if", TokenIf, ""},
		{"else", TokenElse, ""},
		{"let", TokenLet, ""},
		{"while", TokenWhile, ""},
		{"for", TokenFor, ""},
		{"return", TokenReturn, ""},
		{"break", TokenBreak, ""},
		{"continue", TokenContinue, ""},
		{"and", TokenAnd, ""},
		{"or", TokenOr, ""},
		{"fn", TokenFn, ""},
		{"iffy", TokenIdentifier, "iffy"},
		{"_x1", TokenIdentifier, "_x1"},
		{"Fn", TokenIdentifier, "Fn"},
	}
	for _, tt := range tests {
		tok := tokenize(tt.input)[0]
		if tok.Type != tt.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tt.input, tok.Type, tt.typ)
		}
		if tok.Literal != tt.lit {
			t.Errorf("Lexer(%q): literal = %q, want %q", tt.input, tok.Literal, tt.lit)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		types []TokenType
		lit   string
	}{
		{"42", []TokenType{TokenInteger, TokenEnd}, "42"},
		{"0", []TokenType{TokenInteger, TokenEnd}, "0"},
		{"3.14", []TokenType{TokenReal, TokenEnd}, "3.14"},
		{"2.", []TokenType{TokenReal, TokenEnd}, "2."},
		{"1.2.3", []TokenType{TokenReal, TokenUnknown, TokenInteger, TokenEnd}, "1.2"},
		{"12ab", []TokenType{TokenInteger, TokenIdentifier, TokenEnd}, "12"},
	}
	for _, tt := range tests {
		tokens := tokenize(tt.input)
		if len(tokens) != len(tt.types) {
			t.Errorf("Lexer(%q): got %v", tt.input, tokens)
			continue
		}
		for i, typ := range tt.types {
			if tokens[i].Type != typ {
				t.Errorf("Lexer(%q): token[%d] = %v, want %v", tt.input, i, tokens[i].Type, typ)
			}
		}
		if tokens[0].Literal != tt.lit {
			t.Errorf("Lexer(%q): literal = %q, want %q", tt.input, tokens[0].Literal, tt.lit)
		}
	}
}

func TestLexerRanges(t *testing.T) {
	tokens := tokenize("  let x1 = 10; # trailing\n  x1 >= 2")
	want := []struct {
		typ        TokenType
		start, end int
	}{
		{TokenLet, 2, 5},
		{TokenIdentifier, 6, 8},
		{TokenAssign, 9, 10},
		{TokenInteger, 11, 13},
		{TokenSemicolon, 13, 14},
		{TokenIdentifier, 28, 30},
		{TokenGreaterEqual, 31, 33},
		{TokenInteger, 34, 35},
		{TokenEnd, 35, 35},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens: %v", len(tokens), tokens)
	}
	for i, w := range want {
		tok := tokens[i]
		if tok.Type != w.typ || tok.Start != w.start || tok.End != w.end {
			t.Errorf("token[%d] = %v [%d,%d), want %v [%d,%d)", i, tok.Type, tok.Start, tok.End, w.typ, w.start, w.end)
		}
	}
}

func TestLexerCommentToEnd(t *testing.T) {
	tokens := tokenize("1 # no newline")
	if len(tokens) != 2 || tokens[1].Type != TokenEnd {
		t.Fatalf("got %v", tokens)
	}
	if tokens[1].Start != 14 || tokens[1].End != 14 {
		t.Errorf("End range = [%d,%d), want [14,14)", tokens[1].Start, tokens[1].End)
	}
}

func TestLexerEndRepeats(t *testing.T) {
	l := NewLexer(strings.NewReader(""))
	for i := 0; i < 3; i++ {
		if tok := l.NextToken(); tok.Type != TokenEnd || tok.Start != 0 {
			t.Fatalf("call %d: got %v at %d", i, tok.Type, tok.Start)
		}
	}
}

func TestLexerUnknownBytes(t *testing.T) {
	for _, input := range []string{"@", "$", ".", "\"", "é"} {
		if tok := tokenize(input)[0]; tok.Type != TokenUnknown {
			t.Errorf("Lexer(%q): type = %v, want unknown", input, tok.Type)
		}
	}
}

func TestLexerReadError(t *testing.T) {
	boom := errors.New("boom")
	l := NewLexer(iotest.ErrReader(boom))
	if tok := l.NextToken(); tok.Type != TokenEnd {
		t.Errorf("got %v, want end", tok.Type)
	}
	if !errors.Is(l.Err(), boom) {
		t.Errorf("Err() = %v, want %v", l.Err(), boom)
	}
}

// tokenize returns all tokens in input, ending with TokenEnd.
func tokenize(input string) []Token {
	l := NewLexer(strings.NewReader(input))
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEnd {
			return tokens
		}
	}
}
