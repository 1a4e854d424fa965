package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// TimeZone records the WITH/WITHOUT TIME ZONE clause of a type name.
type TimeZone int

const (
	ZoneUnspecified TimeZone = iota
	ZoneWith
	ZoneWithout
)

var errSyntax = errors.New("type name syntax")

// Breakdown is the parsed form of a type name following
//
//	BASE [ (n) | (p,s) ] [ WITH|WITHOUT TIME ZONE ] [ CHARACTER SET x ] [ COLLATE y ] [ ARRAY [ (n) ] ]
//
// Base is upper-cased with single spaces. Charset and Collation keep their case.
type Breakdown struct {
	Original string
	Base     string

	// Params holds the numeric parameters; RawParams holds every parameter as written.
	Params    []int
	RawParams []string

	TimeZone  TimeZone
	Charset   string
	Collation string
	Unsigned  bool

	Array       bool
	ArrayLength *int

	// Extra collects trailing words the grammar does not name.
	Extra []string
}

// HasParams reports whether a numeric size or precision was written.
func (b Breakdown) HasParams() bool { return len(b.Params) > 0 }

// Element returns the breakdown with the array clause removed.
func (b Breakdown) Element() Breakdown {
	e := b
	e.Array = false
	e.ArrayLength = nil
	if i := strings.LastIndex(strings.ToUpper(e.Original), " ARRAY"); i > 0 {
		e.Original = strings.TrimSpace(e.Original[:i])
	} else if i := strings.Index(e.Original, "["); i > 0 {
		e.Original = strings.TrimSpace(e.Original[:i])
	}
	return e
}

// Parse splits a type name into its grammar parts.
func Parse(name string) (Breakdown, error) {
	b := Breakdown{Original: strings.TrimSpace(name)}
	toks, err := tokenize(b.Original)
	if err != nil {
		return b, err
	}
	if len(toks) == 0 {
		return b, fmt.Errorf("%w: empty", errSyntax)
	}

	p := &tokenStream{toks: toks}

	var base []string
	for p.more() && p.isWord() && !p.atClause() {
		base = append(base, strings.ToUpper(p.next()))
	}
	if len(base) == 0 {
		return b, fmt.Errorf("%w: missing base keyword in %q", errSyntax, name)
	}
	b.Base = strings.Join(base, " ")

	if p.peek() == "(" {
		raw, err := p.parenList()
		if err != nil {
			return b, err
		}
		b.RawParams = raw
		for _, r := range raw {
			n, err := strconv.Atoi(r)
			if err != nil {
				b.Params = nil
				break
			}
			b.Params = append(b.Params, n)
		}
		// "INTERVAL DAY(3) TO SECOND" and similar keep the remaining words in the base.
		for p.more() && p.isWord() && !p.atClause() {
			b.Base += " " + strings.ToUpper(p.next())
		}
	}

	for p.more() {
		switch {
		case p.peek() == "[":
			n, err := p.bracketLength()
			if err != nil {
				return b, err
			}
			b.Array = true
			b.ArrayLength = n
		case p.keyword("WITH", "LOCAL", "TIME", "ZONE"), p.keyword("WITH", "TIME", "ZONE"):
			b.TimeZone = ZoneWith
		case p.keyword("WITHOUT", "TIME", "ZONE"):
			b.TimeZone = ZoneWithout
		case p.keyword("CHARACTER", "SET"), p.keyword("CHAR", "SET"), p.keyword("CHARSET"):
			if !p.more() || !p.isWord() {
				return b, fmt.Errorf("%w: CHARACTER SET needs a name", errSyntax)
			}
			b.Charset = p.next()
		case p.keyword("COLLATE"):
			if !p.more() || !p.isWord() {
				return b, fmt.Errorf("%w: COLLATE needs a name", errSyntax)
			}
			b.Collation = p.next()
		case p.keyword("ARRAY"):
			b.Array = true
			switch p.peek() {
			case "[":
				n, err := p.bracketLength()
				if err != nil {
					return b, err
				}
				b.ArrayLength = n
			case "(":
				raw, err := p.parenList()
				if err != nil {
					return b, err
				}
				if len(raw) != 1 {
					return b, fmt.Errorf("%w: ARRAY takes one length", errSyntax)
				}
				n, err := strconv.Atoi(raw[0])
				if err != nil {
					return b, fmt.Errorf("%w: ARRAY length %q", errSyntax, raw[0])
				}
				b.ArrayLength = &n
			}
		case p.keyword("UNSIGNED"):
			b.Unsigned = true
		case p.isWord():
			b.Extra = append(b.Extra, strings.ToUpper(p.next()))
		default:
			return b, fmt.Errorf("%w: unexpected %q in %q", errSyntax, p.peek(), name)
		}
	}
	return b, nil
}

func tokenize(s string) ([]string, error) {
	var toks []string
	for i := 0; i < len(s); {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case strings.ContainsRune("(),[]", c):
			toks = append(toks, string(c))
			i++
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(s) && rune(s[j]) != c {
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("%w: unterminated quote in %q", errSyntax, s)
			}
			toks = append(toks, s[i:j+1])
			i = j + 1
		default:
			j := i
			for j < len(s) && !unicode.IsSpace(rune(s[j])) && !strings.ContainsRune("(),[]'\"", rune(s[j])) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks, nil
}

type tokenStream struct {
	toks []string
	pos  int
}

func (p *tokenStream) more() bool { return p.pos < len(p.toks) }

func (p *tokenStream) peek() string {
	if !p.more() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *tokenStream) next() string {
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *tokenStream) isWord() bool {
	t := p.peek()
	return t != "" && !strings.ContainsAny(t[:1], "(),[]")
}

// keyword consumes words if the stream continues with exactly them.
func (p *tokenStream) keyword(words ...string) bool {
	if p.pos+len(words) > len(p.toks) {
		return false
	}
	for i, w := range words {
		if !strings.EqualFold(p.toks[p.pos+i], w) {
			return false
		}
	}
	p.pos += len(words)
	return true
}

// atClause reports whether the next words start a clause after the base.
func (p *tokenStream) atClause() bool {
	at := func(words ...string) bool {
		if p.pos+len(words) > len(p.toks) {
			return false
		}
		for i, w := range words {
			if !strings.EqualFold(p.toks[p.pos+i], w) {
				return false
			}
		}
		return true
	}
	return at("WITH") || at("WITHOUT") || at("CHARACTER", "SET") || at("CHAR", "SET") ||
		at("CHARSET") || at("COLLATE") || at("ARRAY") || at("UNSIGNED") || at("ZEROFILL")
}

func (p *tokenStream) parenList() ([]string, error) {
	p.next() // (
	var out []string
	cur := ""
	for p.more() {
		t := p.next()
		switch t {
		case ")":
			if cur != "" {
				out = append(out, strings.TrimSpace(cur))
			}
			return out, nil
		case ",":
			out = append(out, strings.TrimSpace(cur))
			cur = ""
		default:
			if cur != "" {
				cur += " "
			}
			cur += t
		}
	}
	return nil, fmt.Errorf("%w: unbalanced parenthesis", errSyntax)
}

func (p *tokenStream) bracketLength() (*int, error) {
	p.next() // [
	if p.peek() == "]" {
		p.next()
		return nil, nil
	}
	if !p.more() {
		return nil, fmt.Errorf("%w: unbalanced bracket", errSyntax)
	}
	n, err := strconv.Atoi(p.next())
	if err != nil {
		return nil, fmt.Errorf("%w: array length: %v", errSyntax, err)
	}
	if p.peek() != "]" {
		return nil, fmt.Errorf("%w: unbalanced bracket", errSyntax)
	}
	p.next()
	return &n, nil
}
