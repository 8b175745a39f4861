// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package local

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ErrInvalidCQL is returned for queries outside the supported CQL subset.
var ErrInvalidCQL = errors.New("invalid CQL")

// The supported subset is clauses of the form `field op value` joined by
// AND, OR and NOT with parentheses. Values are quoted strings, bare words or,
// for `in`, a parenthesized list. A query with no operator at all is treated
// as `text ~ "<query>"`.
//
// text, siteSearch and title are matched word by word against the stored
// documents. created and lastmodified compare against the store timestamps.
// Every other field (space, type, creator, label, ...) has no local data and
// always matches.

type cqlOp string

const (
	opContains    cqlOp = "~"
	opNotContains cqlOp = "!~"
	opEquals      cqlOp = "="
	opNotEquals   cqlOp = "!="
	opIn          cqlOp = "in"
	opNotIn       cqlOp = "not in"
	opGreater     cqlOp = ">"
	opGreaterEq   cqlOp = ">="
	opLess        cqlOp = "<"
	opLessEq      cqlOp = "<="
)

// cqlExpr is a node of a parsed query.
type cqlExpr interface {
	match(d *docView) bool
	// terms appends the words of positive text clauses, for scoring.
	terms(title, text []string) ([]string, []string)
}

type andExpr struct{ left, right cqlExpr }
type orExpr struct{ left, right cqlExpr }
type notExpr struct{ inner cqlExpr }

type clause struct {
	field  string
	op     cqlOp
	values []string
}

func (e andExpr) match(d *docView) bool { return e.left.match(d) && e.right.match(d) }
func (e orExpr) match(d *docView) bool  { return e.left.match(d) || e.right.match(d) }
func (e notExpr) match(d *docView) bool { return !e.inner.match(d) }

func (e andExpr) terms(title, text []string) ([]string, []string) {
	title, text = e.left.terms(title, text)
	return e.right.terms(title, text)
}

func (e orExpr) terms(title, text []string) ([]string, []string) {
	title, text = e.left.terms(title, text)
	return e.right.terms(title, text)
}

func (e notExpr) terms(title, text []string) ([]string, []string) { return title, text }

func (c clause) terms(title, text []string) ([]string, []string) {
	if c.op != opContains && c.op != opEquals && c.op != opIn {
		return title, text
	}
	for _, v := range c.values {
		switch c.field {
		case "title":
			title = append(title, tokenizeAndFilter(v)...)
		case "text", "sitesearch":
			text = append(text, tokenizeAndFilter(v)...)
		}
	}
	return title, text
}

func (c clause) match(d *docView) bool {
	switch c.field {
	case "text", "sitesearch":
		return c.matchWords(d.words)
	case "title":
		if c.op == opEquals || c.op == opNotEquals {
			eq := false
			for _, v := range c.values {
				eq = eq || strings.EqualFold(strings.TrimSpace(v), d.doc.Title)
			}
			return eq == (c.op == opEquals)
		}
		return c.matchWords(d.titleWords)
	case "created":
		return c.matchTime(d.doc.InsertedAt)
	case "lastmodified":
		return c.matchTime(d.doc.UpdatedAt)
	default:
		return true
	}
}

// matchWords reports whether any value has all its significant words in set,
// negated for the negative operators.
func (c clause) matchWords(set map[string]bool) bool {
	found := false
	for _, v := range c.values {
		words := tokenizeAndFilter(v)
		if len(words) == 0 {
			continue
		}
		all := true
		for _, w := range words {
			if !set[w] {
				all = false
				break
			}
		}
		if all {
			found = true
			break
		}
	}
	switch c.op {
	case opNotContains, opNotEquals, opNotIn:
		return !found
	default:
		return found
	}
}

var cqlDateLayouts = []string{"2006-01-02", "2006/01/02", "2006-01-02 15:04", "2006/01/02 15:04"}

func (c clause) matchTime(ts time.Time) bool {
	if ts.IsZero() || len(c.values) == 0 {
		return true
	}
	var ref time.Time
	for _, layout := range cqlDateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(c.values[0])); err == nil {
			ref = t
			break
		}
	}
	if ref.IsZero() {
		// Functions such as now("-4w") are not evaluated locally.
		return true
	}
	switch c.op {
	case opGreater:
		return ts.After(ref)
	case opGreaterEq:
		return !ts.Before(ref)
	case opLess:
		return ts.Before(ref)
	case opLessEq:
		return !ts.After(ref)
	case opEquals:
		y1, m1, d1 := ts.Date()
		y2, m2, d2 := ref.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	default:
		return true
	}
}

// parseCQL parses cql into an expression tree.
func parseCQL(cql string) (cqlExpr, error) {
	tokens, err := lexCQL(cql)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidCQL)
	}
	if !hasOperator(tokens) {
		words := make([]string, 0, len(tokens))
		for _, t := range tokens {
			words = append(words, t.text)
		}
		return clause{field: "text", op: opContains, values: []string{strings.Join(words, " ")}}, nil
	}

	p := &cqlParser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidCQL, p.peek().text)
	}
	return expr, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func lexCQL(s string) ([]token, error) {
	var tokens []token
	runes := []rune(s)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
		case r == ',':
			tokens = append(tokens, token{tokComma, ","})
			i++
		case r == '"' || r == '\'':
			j := i + 1
			var b strings.Builder
			for j < len(runes) && runes[j] != r {
				if runes[j] == '\\' && j+1 < len(runes) {
					j++
				}
				b.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("%w: unterminated string", ErrInvalidCQL)
			}
			tokens = append(tokens, token{tokString, b.String()})
			i = j + 1
		case r == '~' || r == '=':
			tokens = append(tokens, token{tokOp, string(r)})
			i++
		case r == '!' || r == '<' || r == '>':
			if i+1 < len(runes) && (runes[i+1] == '=' || runes[i+1] == '~') {
				tokens = append(tokens, token{tokOp, string(runes[i : i+2])})
				i += 2
				continue
			}
			if r == '!' {
				return nil, fmt.Errorf("%w: dangling '!'", ErrInvalidCQL)
			}
			tokens = append(tokens, token{tokOp, string(r)})
			i++
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) && !strings.ContainsRune(`()~=!<>,"'`, runes[j]) {
				j++
			}
			tokens = append(tokens, token{tokWord, string(runes[i:j])})
			i = j
		}
	}
	return tokens, nil
}

func hasOperator(tokens []token) bool {
	for i, t := range tokens {
		if t.kind == tokOp {
			return true
		}
		if t.kind == tokWord && strings.EqualFold(t.text, "in") && i+1 < len(tokens) && tokens[i+1].kind == tokLParen {
			return true
		}
	}
	return false
}

type cqlParser struct {
	tokens []token
	pos    int
}

func (p *cqlParser) done() bool { return p.pos >= len(p.tokens) }

func (p *cqlParser) peek() token {
	if p.done() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *cqlParser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tokWord && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *cqlParser) parseOr() (cqlExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orExpr{left, right}
	}
	return left, nil
}

func (p *cqlParser) parseAnd() (cqlExpr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		if p.keyword("and") {
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = andExpr{left, right}
			continue
		}
		if p.keyword("not") {
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = andExpr{left, notExpr{right}}
			continue
		}
		return left, nil
	}
}

func (p *cqlParser) parseUnary() (cqlExpr, error) {
	if p.keyword("not") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("%w: missing ')'", ErrInvalidCQL)
		}
		p.pos++
		return inner, nil
	}
	return p.parseClause()
}

func (p *cqlParser) parseClause() (cqlExpr, error) {
	field := p.peek()
	if field.kind != tokWord {
		return nil, fmt.Errorf("%w: expected field, got %q", ErrInvalidCQL, field.text)
	}
	p.pos++

	var op cqlOp
	switch t := p.peek(); {
	case t.kind == tokOp:
		op = cqlOp(t.text)
		p.pos++
	case p.keyword("in"):
		op = opIn
	case p.keyword("not"):
		if !p.keyword("in") {
			return nil, fmt.Errorf("%w: expected 'in' after 'not'", ErrInvalidCQL)
		}
		op = opNotIn
	default:
		return nil, fmt.Errorf("%w: expected operator after %q", ErrInvalidCQL, field.text)
	}

	c := clause{field: strings.ToLower(field.text), op: op}
	if op == opIn || op == opNotIn {
		values, err := p.parseList()
		if err != nil {
			return nil, err
		}
		c.values = values
		return c, nil
	}

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	c.values = []string{value}
	return c, nil
}

func (p *cqlParser) parseValue() (string, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.pos++
		return t.text, nil
	case tokWord:
		p.pos++
		// Function calls such as now("-2w") are kept as text.
		if p.peek().kind == tokLParen {
			depth := 0
			var b strings.Builder
			b.WriteString(t.text)
			for !p.done() {
				tok := p.peek()
				p.pos++
				b.WriteString(tok.text)
				if tok.kind == tokLParen {
					depth++
				}
				if tok.kind == tokRParen {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			return b.String(), nil
		}
		return t.text, nil
	default:
		return "", fmt.Errorf("%w: expected value, got %q", ErrInvalidCQL, t.text)
	}
}

func (p *cqlParser) parseList() ([]string, error) {
	if p.peek().kind != tokLParen {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return []string{v}, nil
	}
	p.pos++
	var values []string
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		switch p.peek().kind {
		case tokComma:
			p.pos++
		case tokRParen:
			p.pos++
			return values, nil
		default:
			return nil, fmt.Errorf("%w: unterminated list", ErrInvalidCQL)
		}
	}
}
