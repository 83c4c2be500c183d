package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yarmol/bnd/pkg/errors"
	"github.com/yarmol/bnd/pkg/version"
)

type op int

const (
	opAnd op = iota
	opOr
	opNot
	opEqual
	opGreaterEq
	opLessEq
	opPresent
	opSubstring
)

// Filter is a parsed filter expression. Filters are immutable and safe for
// concurrent use.
type Filter struct {
	op       op
	children []*Filter
	key      string
	value    string
	parts    []string // substring segments, empty strings mark wildcards
}

// Parse parses an LDAP-style filter expression.
func Parse(expr string) (*Filter, error) {
	p := &parser{input: expr}
	f, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, errors.New(errors.ErrCodeInvalidFilter,
			"trailing input at offset %d in %q", p.pos, expr)
	}
	return f, nil
}

// Matches evaluates the filter against an attribute map.
func (f *Filter) Matches(attrs map[string]any) bool {
	switch f.op {
	case opAnd:
		for _, c := range f.children {
			if !c.Matches(attrs) {
				return false
			}
		}
		return true
	case opOr:
		for _, c := range f.children {
			if c.Matches(attrs) {
				return true
			}
		}
		return false
	case opNot:
		return !f.children[0].Matches(attrs)
	case opPresent:
		_, ok := attrs[f.key]
		return ok
	default:
		v, ok := attrs[f.key]
		if !ok {
			return false
		}
		return matchValue(v, f)
	}
}

func (f *Filter) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f *Filter) write(b *strings.Builder) {
	switch f.op {
	case opAnd, opOr:
		sym := byte('&')
		if f.op == opOr {
			sym = '|'
		}
		b.WriteByte('(')
		b.WriteByte(sym)
		for _, c := range f.children {
			c.write(b)
		}
		b.WriteByte(')')
	case opNot:
		b.WriteString("(!")
		f.children[0].write(b)
		b.WriteByte(')')
	case opPresent:
		fmt.Fprintf(b, "(%s=*)", f.key)
	case opGreaterEq:
		fmt.Fprintf(b, "(%s>=%s)", f.key, f.value)
	case opLessEq:
		fmt.Fprintf(b, "(%s<=%s)", f.key, f.value)
	case opSubstring:
		fmt.Fprintf(b, "(%s=%s)", f.key, strings.Join(f.parts, "*"))
	default:
		fmt.Fprintf(b, "(%s=%s)", f.key, f.value)
	}
}

// matchValue dispatches on the attribute's dynamic type. Slices match when
// any element matches.
func matchValue(v any, f *Filter) bool {
	switch vv := v.(type) {
	case []string:
		for _, s := range vv {
			if matchScalar(s, f) {
				return true
			}
		}
		return false
	case []any:
		for _, e := range vv {
			if matchScalar(e, f) {
				return true
			}
		}
		return false
	default:
		return matchScalar(v, f)
	}
}

func matchScalar(v any, f *Filter) bool {
	if f.op == opSubstring {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		return matchSubstring(s, f.parts)
	}

	cmp, ok := compare(v, f.value)
	if !ok {
		return false
	}
	switch f.op {
	case opEqual:
		return cmp == 0
	case opGreaterEq:
		return cmp >= 0
	case opLessEq:
		return cmp <= 0
	}
	return false
}

// compare orders an attribute value against the filter operand using the
// attribute's type. ok is false when the operand cannot be converted.
func compare(v any, operand string) (int, bool) {
	switch vv := v.(type) {
	case version.Version:
		ov, err := version.Parse(operand)
		if err != nil {
			return 0, false
		}
		return vv.Compare(ov), true
	case int:
		return compareFloat(float64(vv), operand)
	case int64:
		return compareFloat(float64(vv), operand)
	case float64:
		return compareFloat(vv, operand)
	case bool:
		ob, err := strconv.ParseBool(operand)
		if err != nil {
			return 0, false
		}
		if vv == ob {
			return 0, true
		}
		return 1, true
	case string:
		return strings.Compare(vv, operand), true
	default:
		return strings.Compare(fmt.Sprint(v), operand), true
	}
}

func compareFloat(v float64, operand string) (int, bool) {
	o, err := strconv.ParseFloat(operand, 64)
	if err != nil {
		return 0, false
	}
	switch {
	case v < o:
		return -1, true
	case v > o:
		return 1, true
	}
	return 0, true
}

func matchSubstring(s string, parts []string) bool {
	// parts is the value split on '*'; first and last may be empty.
	if len(parts) == 0 {
		return true
	}
	if parts[0] != "" {
		if !strings.HasPrefix(s, parts[0]) {
			return false
		}
		s = s[len(parts[0]):]
	}
	last := parts[len(parts)-1]
	middle := parts[1 : len(parts)-1]
	for _, m := range middle {
		if m == "" {
			continue
		}
		i := strings.Index(s, m)
		if i < 0 {
			return false
		}
		s = s[i+len(m):]
	}
	if last != "" && len(parts) > 1 {
		return strings.HasSuffix(s, last)
	}
	return true
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parse() (*Filter, error) {
	p.skipSpace()
	if !p.consume('(') {
		return nil, p.errorf("expected '('")
	}
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, p.errorf("unexpected end of input")
	}

	var f *Filter
	var err error
	switch p.input[p.pos] {
	case '&':
		p.pos++
		f, err = p.parseList(opAnd)
	case '|':
		p.pos++
		f, err = p.parseList(opOr)
	case '!':
		p.pos++
		var inner *Filter
		inner, err = p.parse()
		if err == nil {
			f = &Filter{op: opNot, children: []*Filter{inner}}
		}
	default:
		f, err = p.parseSimple()
	}
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.consume(')') {
		return nil, p.errorf("expected ')'")
	}
	return f, nil
}

func (p *parser) parseList(o op) (*Filter, error) {
	f := &Filter{op: o}
	for {
		p.skipSpace()
		if p.pos < len(p.input) && p.input[p.pos] == ')' {
			break
		}
		child, err := p.parse()
		if err != nil {
			return nil, err
		}
		f.children = append(f.children, child)
	}
	if len(f.children) == 0 {
		return nil, p.errorf("empty composite")
	}
	return f, nil
}

func (p *parser) parseSimple() (*Filter, error) {
	start := p.pos
	for p.pos < len(p.input) && !strings.ContainsRune("=<>()", rune(p.input[p.pos])) {
		p.pos++
	}
	key := strings.TrimSpace(p.input[start:p.pos])
	if key == "" {
		return nil, p.errorf("missing attribute key")
	}
	if p.pos >= len(p.input) {
		return nil, p.errorf("unexpected end of input")
	}

	var o op
	switch p.input[p.pos] {
	case '=':
		p.pos++
		o = opEqual
	case '>':
		p.pos++
		if !p.consume('=') {
			return nil, p.errorf("expected '>='")
		}
		o = opGreaterEq
	case '<':
		p.pos++
		if !p.consume('=') {
			return nil, p.errorf("expected '<='")
		}
		o = opLessEq
	default:
		return nil, p.errorf("expected comparison operator")
	}

	vstart := p.pos
	depth := 0
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '(' {
			depth++
		}
		if c == ')' {
			if depth == 0 {
				break
			}
			depth--
		}
		p.pos++
	}
	value := p.input[vstart:p.pos]

	if o == opEqual {
		if value == "*" {
			return &Filter{op: opPresent, key: key}, nil
		}
		if strings.Contains(value, "*") {
			return &Filter{op: opSubstring, key: key, value: value, parts: strings.Split(value, "*")}, nil
		}
	}
	return &Filter{op: o, key: key, value: value}, nil
}

func (p *parser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) errorf(msg string) error {
	return errors.New(errors.ErrCodeInvalidFilter,
		"%s at offset %d in %q", msg, p.pos, p.input)
}
