package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types for the Rill lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEnd TokenType = iota
	TokenUnknown

	// Literals
	TokenInteger    // 42
	TokenReal       // 3.14
	TokenIdentifier // foo, _bar1

	// Keywords
	TokenTrue
	TokenFalse
	TokenIf
	TokenElse
	TokenLet
	TokenWhile
	TokenFor
	TokenReturn
	TokenBreak
	TokenContinue
	TokenAnd
	TokenOr
	TokenFn

	// Delimiters
	TokenBar       // |
	TokenComma     // ,
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenPercent      // %
	TokenPlusAssign   // +=
	TokenMinusAssign  // -=
	TokenStarAssign   // *=
	TokenSlashAssign  // /=
	TokenAssign       // =
	TokenBang         // !
	TokenIncrement    // ++
	TokenDecrement    // --
	TokenNotEqual     // !=
	TokenEqual        // ==
	TokenLess         // <
	TokenGreater      // >
	TokenGreaterEqual // >=
	TokenLessEqual    // <=
)

// tokenNames are used in diagnostics ("Expected ')', found 'if'").
var tokenNames = map[TokenType]string{
	TokenEnd:          "end of code",
	TokenUnknown:      "unknown",
	TokenInteger:      "integer value",
	TokenReal:         "real value",
	TokenIdentifier:   "identifier",
	TokenTrue:         "'true'",
	TokenFalse:        "'false'",
	TokenIf:           "'if'",
	TokenElse:         "'else'",
	TokenLet:          "'let'",
	TokenWhile:        "'while'",
	TokenFor:          "'for'",
	TokenReturn:       "'return'",
	TokenBreak:        "'break'",
	TokenContinue:     "'continue'",
	TokenAnd:          "'and'",
	TokenOr:           "'or'",
	TokenFn:           "'fn'",
	TokenBar:          "'|'",
	TokenComma:        "','",
	TokenLParen:       "'('",
	TokenRParen:       "')'",
	TokenLBrace:       "'{'",
	TokenRBrace:       "'}'",
	TokenLBracket:     "'['",
	TokenRBracket:     "']'",
	TokenSemicolon:    "';'",
	TokenPlus:         "'+'",
	TokenMinus:        "'-'",
	TokenStar:         "'*'",
	TokenSlash:        "'/'",
	TokenPercent:      "'%'",
	TokenPlusAssign:   "'+='",
	TokenMinusAssign:  "'-='",
	TokenStarAssign:   "'*='",
	TokenSlashAssign:  "'/='",
	TokenAssign:       "'='",
	TokenBang:         "'!'",
	TokenIncrement:    "'++'",
	TokenDecrement:    "'--'",
	TokenNotEqual:     "'!='",
	TokenEqual:        "'=='",
	TokenLess:         "'<'",
	TokenGreater:      "'>'",
	TokenGreaterEqual: "'>='",
	TokenLessEqual:    "'<='",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token. Start and End are byte offsets; End is
// exclusive.
type Token struct {
	Type    TokenType
	Literal string
	Start   int
	End     int
}

func (t Token) String() string {
	switch t.Type {
	case TokenInteger, TokenReal, TokenIdentifier:
		return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
	}
	return t.Type.String()
}

// keywords maps reserved words to their token types.
var keywords = map[string]TokenType{
	"true":     TokenTrue,
	"false":    TokenFalse,
	"if":       TokenIf,
	"else":     TokenElse,
	"let":      TokenLet,
	"while":    TokenWhile,
	"for":      TokenFor,
	"return":   TokenReturn,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"and":      TokenAnd,
	"or":       TokenOr,
	"fn":       TokenFn,
}

// Keywords returns the reserved words in alphabetical order.
func Keywords() []string {
	words := make([]string, 0, len(keywords))
	for w := range keywords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
