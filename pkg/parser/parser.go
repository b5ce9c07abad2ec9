package parser

import (
	"errors"
	"fmt"
	"io"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// Parser reads Dern values from source text. Values are allocated in the
// given store; containers under construction are kept on its root stack.
type Parser struct {
	lexer *Lexer
	store *runtime.Store
	spans map[uint64]Span
}

// New creates a parser over src.
func New(store *runtime.Store, src string) *Parser {
	return &Parser{
		lexer: NewLexer(src),
		store: store,
		spans: make(map[uint64]Span),
	}
}

// Next returns the next complete value, io.EOF when the input is exhausted,
// or a *SyntaxError (wrapping ErrIncomplete when input ended mid-form). The
// returned value is not rooted.
func (p *Parser) Next() (*runtime.Value, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	return p.parseFrom(tok)
}

// SpanOf returns the source span recorded for a parsed value.
func (p *Parser) SpanOf(v *runtime.Value) (Span, bool) {
	span, ok := p.spans[v.UID()]
	return span, ok
}

// ParseAll reads every value in src. It is a convenience for tests and
// tools; the interpreter evaluates values one at a time instead.
func ParseAll(store *runtime.Store, src string) ([]*runtime.Value, error) {
	p := New(store, src)
	holder := store.NewVector()
	defer store.Roots().Protect(holder)()
	for {
		v, err := p.Next()
		if errors.Is(err, io.EOF) {
			return holder.Elements(), nil
		}
		if err != nil {
			return nil, err
		}
		holder.Push(v)
	}
}

func (p *Parser) nextToken() (Token, error) {
	return p.lexer.Next()
}

func (p *Parser) annotate(v *runtime.Value, span Span) *runtime.Value {
	p.spans[v.UID()] = span
	return v
}

func (p *Parser) parseFrom(tok Token) (*runtime.Value, error) {
	s := p.store
	switch tok.Kind {
	case TokenLeftParen:
		return p.parseVector(tok)
	case TokenRightParen:
		return nil, &SyntaxError{Message: "Unexpected ')'", Span: tok.Span}
	case TokenQuote:
		return p.parseQuote(tok)
	case TokenInteger:
		return p.annotate(s.NewInteger(tok.Integer), tok.Span), nil
	case TokenReal:
		return p.annotate(s.NewReal(tok.Real), tok.Span), nil
	case TokenString:
		return p.annotate(s.NewString(tok.Text), tok.Span), nil
	case TokenCharacter:
		return p.annotate(s.NewCharacter(tok.Char), tok.Span), nil
	case TokenSymbol:
		return p.annotate(s.NewSymbol(tok.Text), tok.Span), nil
	case TokenTrue:
		return p.annotate(s.NewBoolean(true), tok.Span), nil
	case TokenFalse:
		return p.annotate(s.NewBoolean(false), tok.Span), nil
	case TokenNil:
		return p.annotate(s.NewNil(), tok.Span), nil
	default:
		return nil, &SyntaxError{Message: fmt.Sprintf("Unexpected token %s", tok.Kind), Span: tok.Span}
	}
}

func (p *Parser) parseVector(open Token) (*runtime.Value, error) {
	vec := p.store.NewVector()
	defer p.store.Roots().Protect(vec)()
	for {
		tok, err := p.nextToken()
		if errors.Is(err, io.EOF) {
			return nil, &SyntaxError{Message: "Unclosed '('", Span: open.Span, incomplete: true}
		}
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokenRightParen {
			return p.annotate(vec, merge(open.Span, tok.Span)), nil
		}
		elem, err := p.parseFrom(tok)
		if err != nil {
			return nil, err
		}
		vec.Push(elem)
	}
}

// parseQuote turns 'x into (quote x).
func (p *Parser) parseQuote(quote Token) (*runtime.Value, error) {
	tok, err := p.nextToken()
	if errors.Is(err, io.EOF) {
		return nil, &SyntaxError{Message: "Quote must be followed by a value", Span: quote.Span, incomplete: true}
	}
	if err != nil {
		return nil, err
	}
	quoted, err := p.parseFrom(tok)
	if err != nil {
		return nil, err
	}
	s := p.store
	defer s.Roots().Protect(quoted)()
	form := s.NewVector()
	defer s.Roots().Protect(form)()
	form.Push(p.annotate(s.NewSymbol("quote"), quote.Span))
	form.Push(quoted)
	span, _ := p.SpanOf(quoted)
	return p.annotate(form, merge(quote.Span, span)), nil
}
