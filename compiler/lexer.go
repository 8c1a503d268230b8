package compiler

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// Lexer: streaming tokenizer for Rill source
// ---------------------------------------------------------------------------

// Lexer tokenizes Rill source read one byte at a time. Source is treated as
// bytes; identifiers are ASCII.
type Lexer struct {
	r      io.ByteReader
	ch     byte // current character
	eof    bool // no current character
	offset int  // offset of ch, or the input length at EOF
	err    error
	buf    strings.Builder
}

// NewLexer creates a new lexer reading from r. Readers that are not already
// io.ByteReaders are buffered.
func NewLexer(r io.Reader) *Lexer {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	l := &Lexer{r: br, offset: -1}
	l.readChar()
	return l
}

// Err returns the first read error other than io.EOF.
func (l *Lexer) Err() error { return l.err }

// readChar advances to the next byte.
func (l *Lexer) readChar() {
	if l.eof {
		return
	}
	b, err := l.r.ReadByte()
	l.offset++
	if err != nil {
		if !errors.Is(err, io.EOF) {
			l.err = err
		}
		l.eof = true
		l.ch = 0
		return
	}
	l.ch = b
}

// NextToken returns the next token. Once the input is exhausted it keeps
// returning TokenEnd with an empty range at the input length.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	start := l.offset
	if l.eof {
		return Token{Type: TokenEnd, Start: start, End: start}
	}

	switch {
	case isDigit(l.ch):
		return l.readNumber(start)
	case isLetter(l.ch):
		return l.readIdentifierOrKeyword(start)
	}

	ch := l.ch
	l.readChar()
	typ := TokenUnknown
	switch ch {
	case '|':
		typ = TokenBar
	case ',':
		typ = TokenComma
	case '(':
		typ = TokenLParen
	case ')':
		typ = TokenRParen
	case '{':
		typ = TokenLBrace
	case '}':
		typ = TokenRBrace
	case '[':
		typ = TokenLBracket
	case ']':
		typ = TokenRBracket
	case ';':
		typ = TokenSemicolon
	case '%':
		typ = TokenPercent
	case '+':
		typ = l.pick(TokenPlus, '+', TokenIncrement, '=', TokenPlusAssign)
	case '-':
		typ = l.pick(TokenMinus, '-', TokenDecrement, '=', TokenMinusAssign)
	case '*':
		typ = l.pick(TokenStar, '=', TokenStarAssign, 0, 0)
	case '/':
		typ = l.pick(TokenSlash, '=', TokenSlashAssign, 0, 0)
	case '=':
		typ = l.pick(TokenAssign, '=', TokenEqual, 0, 0)
	case '!':
		typ = l.pick(TokenBang, '=', TokenNotEqual, 0, 0)
	case '<':
		typ = l.pick(TokenLess, '=', TokenLessEqual, 0, 0)
	case '>':
		typ = l.pick(TokenGreater, '=', TokenGreaterEqual, 0, 0)
	}
	return Token{Type: typ, Start: start, End: l.offset}
}

// pick extends a one-character operator to a two-character one when the
// next byte matches a or b.
func (l *Lexer) pick(single TokenType, a byte, withA TokenType, b byte, withB TokenType) TokenType {
	if l.eof {
		return single
	}
	switch {
	case a != 0 && l.ch == a:
		l.readChar()
		return withA
	case b != 0 && l.ch == b:
		l.readChar()
		return withB
	}
	return single
}

// skipWhitespaceAndComments skips spaces and '#' line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for !l.eof {
		switch {
		case isSpace(l.ch):
			l.readChar()
		case l.ch == '#':
			for !l.eof && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readNumber reads digits with at most one decimal point.
func (l *Lexer) readNumber(start int) Token {
	l.buf.Reset()
	typ := TokenInteger
	for !l.eof {
		if isDigit(l.ch) {
			l.buf.WriteByte(l.ch)
		} else if l.ch == '.' && typ == TokenInteger {
			typ = TokenReal
			l.buf.WriteByte(l.ch)
		} else {
			break
		}
		l.readChar()
	}
	return Token{Type: typ, Literal: l.buf.String(), Start: start, End: l.offset}
}

// readIdentifierOrKeyword reads an identifier and maps reserved words.
func (l *Lexer) readIdentifierOrKeyword(start int) Token {
	l.buf.Reset()
	for !l.eof && (isLetter(l.ch) || isDigit(l.ch)) {
		l.buf.WriteByte(l.ch)
		l.readChar()
	}
	word := l.buf.String()
	if typ, ok := keywords[word]; ok {
		return Token{Type: typ, Start: start, End: l.offset}
	}
	return Token{Type: TokenIdentifier, Literal: word, Start: start, End: l.offset}
}

func isLetter(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\v' || ch == '\f'
}
