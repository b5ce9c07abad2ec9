package parser

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// ErrIncomplete marks input that ends inside a form, string, character or
// comment. More input may complete it.
var ErrIncomplete = errors.New("more input required")

// TokenKind identifies a lexical token.
type TokenKind int

const (
	TokenLeftParen TokenKind = iota
	TokenRightParen
	TokenQuote
	TokenInteger
	TokenReal
	TokenString
	TokenCharacter
	TokenSymbol
	TokenTrue
	TokenFalse
	TokenNil
)

func (k TokenKind) String() string {
	switch k {
	case TokenLeftParen:
		return "left_paren"
	case TokenRightParen:
		return "right_paren"
	case TokenQuote:
		return "quote"
	case TokenInteger:
		return "integer"
	case TokenReal:
		return "real"
	case TokenString:
		return "string"
	case TokenCharacter:
		return "character"
	case TokenSymbol:
		return "symbol"
	case TokenTrue:
		return "true"
	case TokenFalse:
		return "false"
	case TokenNil:
		return "nil"
	default:
		return fmt.Sprintf("unknown_token_%d", int(k))
	}
}

// Token is one lexeme with its payload and source position.
type Token struct {
	Kind    TokenKind
	Text    string
	Integer int32
	Real    float64
	Char    rune
	Span    Span
}

// SyntaxError reports malformed input.
type SyntaxError struct {
	Message    string
	Span       Span
	incomplete bool
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s (line %d, column %d)", e.Message, e.Span.Lines.Start, e.Span.Columns.Start)
}

// Unwrap lets errors.Is(err, ErrIncomplete) detect truncated input.
func (e *SyntaxError) Unwrap() error {
	if e.incomplete {
		return ErrIncomplete
	}
	return nil
}

// Lexer turns source text into tokens one at a time.
type Lexer struct {
	src    []rune
	pos    int
	line   int
	column int
}

// NewLexer starts lexing src at line 1, column 1.
func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, column: 1}
}

// Next returns the next token, io.EOF when input is exhausted, or a
// *SyntaxError.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipBlankAndComments(); err != nil {
		return Token{}, err
	}
	if l.pos >= len(l.src) {
		return Token{}, io.EOF
	}
	start := l.mark()
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.advance()
		return l.token(TokenLeftParen, "(", start), nil
	case c == ')':
		l.advance()
		return l.token(TokenRightParen, ")", start), nil
	case c == '\'':
		l.advance()
		return l.token(TokenQuote, "'", start), nil
	case c == '[':
		return l.lexString(start)
	case c == '|':
		return l.lexCharacter(start)
	case isDigit(c), c == '-' && isDigit(l.peekAt(1)):
		return l.lexNumber(start)
	case c == '.' && isDigit(l.peekAt(1)):
		l.advance()
		return Token{}, l.fail("Character '.' cannot start a number", start)
	default:
		return l.lexWord(start)
	}
}

type cursor struct {
	line, column, offset int
}

func (l *Lexer) mark() cursor {
	return cursor{line: l.line, column: l.column, offset: l.pos}
}

func (l *Lexer) span(start cursor) Span {
	endColumn := l.column - 1
	if endColumn < start.column {
		endColumn = start.column
	}
	return Span{
		Lines:   Range{Start: start.line, End: l.line},
		Columns: Range{Start: start.column, End: endColumn},
		Offsets: Range{Start: start.offset, End: l.pos - 1},
	}
}

func (l *Lexer) token(kind TokenKind, text string, start cursor) Token {
	return Token{Kind: kind, Text: text, Span: l.span(start)}
}

func (l *Lexer) fail(msg string, start cursor) error {
	return &SyntaxError{Message: msg, Span: l.span(start)}
}

func (l *Lexer) incomplete(msg string, start cursor) error {
	return &SyntaxError{Message: msg, Span: l.span(start), incomplete: true}
}

func (l *Lexer) peekAt(n int) rune {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() rune {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

func (l *Lexer) skipBlankAndComments() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case unicode.IsSpace(c):
			l.advance()
		case c == ';':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		case c == '#' && l.peekAt(1) == '!':
			start := l.mark()
			l.advance()
			l.advance()
			for {
				if l.pos >= len(l.src) {
					return l.incomplete("Multiline comment that is not closed with !#", start)
				}
				if l.src[l.pos] == '!' && l.peekAt(1) == '#' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

func isDelimiter(c rune) bool {
	switch c {
	case '(', ')', '[', ']', '|', '\'':
		return true
	}
	return unicode.IsSpace(c)
}

func (l *Lexer) atDelimiter() bool {
	return l.pos >= len(l.src) || isDelimiter(l.src[l.pos])
}

func (l *Lexer) lexNumber(start cursor) (Token, error) {
	var b strings.Builder
	dots, dashes := 0, 0
	for !l.atDelimiter() {
		c := l.src[l.pos]
		switch {
		case isDigit(c):
		case c == '-':
			dashes++
			if dashes > 1 {
				l.advance()
				return Token{}, l.fail("Number can contain only one '-' character", start)
			}
			if b.Len() > 0 {
				l.advance()
				return Token{}, l.fail("Number can have '-' character only in the beginning", start)
			}
		case c == '.':
			dots++
			if dots > 1 {
				l.advance()
				return Token{}, l.fail("Number can contain only one '.' character", start)
			}
		default:
			l.advance()
			return Token{}, l.fail(fmt.Sprintf("Number cannot contain character '%c'", c), start)
		}
		b.WriteRune(l.advance())
	}
	text := b.String()
	if strings.HasSuffix(text, ".") {
		return Token{}, l.fail("Character '.' cannot end a number", start)
	}
	tok := l.token(TokenInteger, text, start)
	if dots == 1 {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Token{}, l.fail(fmt.Sprintf("Real number %s is out of range", text), start)
		}
		tok.Kind = TokenReal
		tok.Real = f
		return tok, nil
	}
	i, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return Token{}, l.fail(fmt.Sprintf("Integer %s is out of range", text), start)
	}
	tok.Integer = int32(i)
	return tok, nil
}

func (l *Lexer) lexString(start cursor) (Token, error) {
	l.advance()
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, l.incomplete("String must end with character ']'", start)
		}
		c := l.src[l.pos]
		if c == ']' {
			l.advance()
			break
		}
		if c == '|' {
			charStart := l.mark()
			r, err := l.characterBody(charStart)
			if err != nil {
				var se *SyntaxError
				if errors.As(err, &se) && !se.incomplete {
					return Token{}, l.fail(fmt.Sprintf("Problem with a character embedded in string: (%s)", se.Message), start)
				}
				return Token{}, l.incomplete("String must end with character ']'", start)
			}
			b.WriteRune(r)
			continue
		}
		b.WriteRune(l.advance())
	}
	if !l.atDelimiter() {
		return Token{}, l.fail("After last ']' of string there must be dern delimiter", start)
	}
	tok := l.token(TokenString, b.String(), start)
	return tok, nil
}

func (l *Lexer) lexCharacter(start cursor) (Token, error) {
	r, err := l.characterBody(start)
	if err != nil {
		return Token{}, err
	}
	tok := l.token(TokenCharacter, string(r), start)
	tok.Char = r
	return tok, nil
}

// characterBody consumes |...| and decodes it.
func (l *Lexer) characterBody(start cursor) (rune, error) {
	l.advance()
	var body []rune
	for {
		if l.pos >= len(l.src) {
			return 0, l.incomplete("Character must end with character '|'", start)
		}
		c := l.advance()
		if c == '|' {
			break
		}
		body = append(body, c)
	}
	switch {
	case len(body) == 0:
		return 0, l.fail("Character cannot be empty: ||", start)
	case len(body) == 1:
		return body[0], nil
	}
	name := string(body)
	switch name {
	case "bar":
		return '|', nil
	case "newline":
		return '\n', nil
	case "tab":
		return '\t', nil
	}
	if strings.Trim(name, "0123456789abcdefABCDEF") == "" {
		if len(body) > 8 {
			return 0, l.fail(fmt.Sprintf("Number of hex digits (%d) in character definition may not be larger than eight", len(body)), start)
		}
		code, err := strconv.ParseUint(name, 16, 32)
		if err != nil || code > unicode.MaxRune {
			return 0, l.fail(fmt.Sprintf("Character code |%s| is not a valid code point", name), start)
		}
		return rune(code), nil
	}
	return 0, l.fail(fmt.Sprintf("Unknown character constant |%s|", name), start)
}

func (l *Lexer) lexWord(start cursor) (Token, error) {
	var b strings.Builder
	for !l.atDelimiter() {
		b.WriteRune(l.advance())
	}
	text := b.String()
	if text == "" {
		c := l.advance()
		return Token{}, l.fail(fmt.Sprintf("Unexpected character '%c'", c), start)
	}
	switch text {
	case "true":
		return l.token(TokenTrue, text, start), nil
	case "false":
		return l.token(TokenFalse, text, start), nil
	case "nil":
		return l.token(TokenNil, text, start), nil
	default:
		return l.token(TokenSymbol, text, start), nil
	}
}
