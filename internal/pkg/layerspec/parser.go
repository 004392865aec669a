// Package layerspec parses one-line layer definitions such as
//
//	level:ERROR,FATAL
//	filter:"connection reset" invert
//	highlight:timeout word color:#ef4444 opacity:60 | transform:"\d+" regex with:N
//
// The first word of each definition names the layer type, optionally
// followed by a colon and its main value; the remaining words are options.
package layerspec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSyntax        = errors.New("layerspec: syntax error")
	ErrUnknownType   = errors.New("layerspec: unknown layer type")
	ErrUnknownOption = errors.New("layerspec: unknown option")
	ErrInvalidValue  = errors.New("layerspec: invalid value")
)

// Term is one `key` or `key:value` pair as written.
type Term struct {
	Key      string
	Value    string
	HasValue bool
	Pos      int
}

// Definition is the raw parse of one layer: a head term and its options.
type Definition struct {
	Head    Term
	Options []Term
}

// Parser parses layer specs into definitions.
type Parser struct {
	lexer   *Lexer
	current Token
}

// ParseDefinitions splits input on '|' and parses each definition.
func ParseDefinitions(input string) ([]Definition, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	p := &Parser{lexer: NewLexer(input)}
	p.advance()

	var defs []Definition
	for {
		def, err := p.parseDefinition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)

		switch p.current.Type {
		case TokenEOF:
			return defs, nil
		case TokenPipe:
			p.advance()
		default:
			return nil, p.unexpected()
		}
	}
}

func (p *Parser) advance() {
	p.current = p.lexer.NextToken()
}

func (p *Parser) unexpected() error {
	return fmt.Errorf("%w: unexpected %s %q at %d", ErrSyntax, p.current.Type, p.current.Value, p.current.Pos)
}

func (p *Parser) parseDefinition() (Definition, error) {
	if p.current.Type != TokenIdent {
		return Definition{}, fmt.Errorf("%w: expected layer type at %d, got %s", ErrSyntax, p.current.Pos, p.current.Type)
	}
	head, err := p.parseTerm()
	if err != nil {
		return Definition{}, err
	}
	def := Definition{Head: head}
	for p.current.Type == TokenIdent {
		opt, err := p.parseTerm()
		if err != nil {
			return Definition{}, err
		}
		def.Options = append(def.Options, opt)
	}
	return def, nil
}

// parseTerm handles `key` and `key:value`.
func (p *Parser) parseTerm() (Term, error) {
	t := Term{Key: strings.ToLower(p.current.Value), Pos: p.current.Pos}
	p.advance()
	if p.current.Type != TokenColon {
		return t, nil
	}
	p.advance()

	switch p.current.Type {
	case TokenString, TokenValue:
		t.Value, t.HasValue = p.current.Value, true
		p.advance()
		return t, nil
	}
	return Term{}, fmt.Errorf("%w: expected value after '%s:' at %d", ErrSyntax, t.Key, p.current.Pos)
}
