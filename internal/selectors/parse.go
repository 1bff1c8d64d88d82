package selectors

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokPipe
	tokAmp
	tokTilde
	tokLParen
	tokRParen
	tokColon
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// identRune covers predicate names, ahead tokens, and path arguments
func identRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		strings.ContainsRune("/._*?[]-", r)
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, *ParseError) {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	switch c := l.input[l.pos]; c {
	case '|':
		l.pos++
		return token{kind: tokPipe, text: "|", pos: start}, nil
	case '&':
		l.pos++
		return token{kind: tokAmp, text: "&", pos: start}, nil
	case '~':
		l.pos++
		return token{kind: tokTilde, text: "~", pos: start}, nil
	case '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case ':':
		l.pos++
		return token{kind: tokColon, text: ":", pos: start}, nil
	case '"':
		l.pos++
		for l.pos < len(l.input) && l.input[l.pos] != '"' {
			l.pos++
		}
		if l.pos >= len(l.input) {
			return token{}, &ParseError{Kind: ErrUnterminatedString, Pos: start}
		}
		text := l.input[start+1 : l.pos]
		l.pos++
		return token{kind: tokString, text: text, pos: start}, nil
	}
	end := l.pos
	for end < len(l.input) && identRune(rune(l.input[end])) {
		end++
	}
	if end == l.pos {
		return token{}, &ParseError{Kind: ErrUnexpectedToken, Pos: start, Token: string(l.input[l.pos])}
	}
	text := l.input[l.pos:end]
	l.pos = end
	return token{kind: tokIdent, text: text, pos: start}, nil
}

type parser struct {
	lex  lexer
	tok  token
	err  *ParseError
	peek *token
}

// Parse parses a selector expression
func Parse(input string) (Expr, error) {
	p := &parser{lex: lexer{input: input}}
	p.advance()
	if p.err != nil {
		return nil, p.err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, &ParseError{Kind: ErrTrailingInput, Pos: p.tok.pos, Token: p.tok.text}
	}
	return expr, nil
}

func (p *parser) advance() {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return
	}
	tok, err := p.lex.next()
	if err != nil {
		p.err = err
		p.tok = token{kind: tokEOF, pos: err.Pos}
		return
	}
	p.tok = tok
}

func (p *parser) peekTok() token {
	if p.peek == nil {
		tok, err := p.lex.next()
		if err != nil {
			p.err = err
			tok = token{kind: tokEOF, pos: err.Pos}
		}
		p.peek = &tok
	}
	return *p.peek
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		var op rune
		switch p.tok.kind {
		case tokPipe:
			op = '|'
		case tokAmp:
			op = '&'
		case tokTilde:
			op = '~'
		default:
			return left, nil
		}
		p.advance()
		if p.err != nil {
			return nil, p.err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binExpr{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (Expr, error) {
	switch p.tok.kind {
	case tokLParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, &ParseError{Kind: ErrUnexpectedToken, Pos: p.tok.pos, Token: p.tok.text}
		}
		p.advance()
		if p.err != nil {
			return nil, p.err
		}
		return expr, nil
	case tokIdent:
		// kind "(" predicate ")"
		if isKind(p.tok.text) && p.peekTok().kind == tokLParen {
			kind := Kind(p.tok.text)
			p.advance() // kind
			p.advance() // (
			if p.err != nil {
				return nil, p.err
			}
			pred, err := p.parsePredicate()
			if err != nil {
				return nil, err
			}
			if p.tok.kind != tokRParen {
				return nil, &ParseError{Kind: ErrUnexpectedToken, Pos: p.tok.pos, Token: p.tok.text}
			}
			p.advance()
			if p.err != nil {
				return nil, p.err
			}
			return &predExpr{kind: kind, pred: pred}, nil
		}
		pred, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		return &predExpr{pred: pred}, nil
	default:
		return nil, &ParseError{Kind: ErrUnexpectedToken, Pos: p.tok.pos, Token: p.tok.text}
	}
}

func isKind(s string) bool {
	switch Kind(s) {
	case KindWorkspace, KindLease, KindBranch:
		return true
	}
	return false
}

func (p *parser) parsePredicate() (Predicate, error) {
	if p.tok.kind != tokIdent {
		return Predicate{}, &ParseError{Kind: ErrUnexpectedToken, Pos: p.tok.pos, Token: p.tok.text}
	}
	name := p.tok.text

	// name~"literal"
	if name == "name" && p.peekTok().kind == tokTilde {
		p.advance() // name
		p.advance() // ~
		if p.err != nil {
			return Predicate{}, p.err
		}
		if p.tok.kind != tokString {
			return Predicate{}, &ParseError{Kind: ErrUnexpectedToken, Pos: p.tok.pos, Token: p.tok.text}
		}
		arg := p.tok.text
		p.advance()
		if p.err != nil {
			return Predicate{}, p.err
		}
		return Predicate{Name: "name~", Arg: arg}, nil
	}

	p.advance()
	if p.err != nil {
		return Predicate{}, p.err
	}

	// "ahead" ":" token and friends
	if p.tok.kind == tokColon {
		p.advance()
		if p.err != nil {
			return Predicate{}, p.err
		}
		if p.tok.kind != tokIdent {
			return Predicate{}, &ParseError{Kind: ErrUnexpectedToken, Pos: p.tok.pos, Token: p.tok.text}
		}
		arg := p.tok.text
		p.advance()
		if p.err != nil {
			return Predicate{}, p.err
		}
		return Predicate{Name: name, Arg: arg}, nil
	}
	return Predicate{Name: name}, nil
}
