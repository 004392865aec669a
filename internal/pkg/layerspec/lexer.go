package layerspec

import (
	"strings"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenString
	TokenValue // unquoted text after a colon
	TokenColon
	TokenPipe
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenValue:
		return "value"
	case TokenColon:
		return "':'"
	case TokenPipe:
		return "'|'"
	}
	return "unknown"
}

// Token represents a lexical token. Pos is the byte offset in the input.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Lexer tokenizes layer specs.
type Lexer struct {
	input     string
	pos       int
	wantValue bool
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	if l.wantValue {
		l.wantValue = false
		if l.pos < len(l.input) && !isSpace(l.input[l.pos]) && l.input[l.pos] != '"' && l.input[l.pos] != '|' {
			return l.readValue()
		}
	}

	l.skipWhitespace()
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	ch := l.input[l.pos]
	switch ch {
	case ':':
		l.pos++
		l.wantValue = true
		return Token{Type: TokenColon, Value: ":", Pos: l.pos - 1}
	case '|':
		l.pos++
		return Token{Type: TokenPipe, Value: "|", Pos: l.pos - 1}
	case '"':
		return l.readString()
	}
	return l.readIdent()
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
}

// readString reads a double-quoted string. Only \" and \\ are escapes;
// other backslashes are kept so regular expressions need no doubling.
func (l *Lexer) readString() Token {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		c := l.input[l.pos]
		if c == '\\' && l.pos+1 < len(l.input) {
			if next := l.input[l.pos+1]; next == '"' || next == '\\' {
				b.WriteByte(next)
				l.pos += 2
				continue
			}
		}
		b.WriteByte(c)
		l.pos++
	}
	if l.pos < len(l.input) {
		l.pos++ // closing quote
	}
	return Token{Type: TokenString, Value: b.String(), Pos: start}
}

func (l *Lexer) readValue() Token {
	start := l.pos
	for l.pos < len(l.input) && !isSpace(l.input[l.pos]) && l.input[l.pos] != '|' {
		l.pos++
	}
	return Token{Type: TokenValue, Value: l.input[start:l.pos], Pos: start}
}

func (l *Lexer) readIdent() Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		// Not an identifier character: return it alone so the parser
		// can report it.
		l.pos++
	}
	return Token{Type: TokenIdent, Value: l.input[start:l.pos], Pos: start}
}

func isSpace(ch byte) bool {
	return unicode.IsSpace(rune(ch))
}

func isIdentChar(ch byte) bool {
	r := rune(ch)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || ch == '_' || ch == '-' || ch == '.'
}
