package combat

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Vars holds the values usable in skill formulas.
//
//	a.str a.def a.spd a.level a.hp a.mp a.mhp a.mmp   caster stats
//	s.level                                            skill level
type Vars struct {
	Strength   int
	Defense    int
	Speed      int
	Level      int
	Health     float64
	Mana       float64
	MaxHealth  float64
	MaxMana    float64
	SkillLevel int
}

// Evaluator computes skill formulas.
type Evaluator interface {
	Eval(formula string, v Vars) (float64, error)
}

// Builtin is the Evaluator backed by Eval.
var Builtin Evaluator = builtin{}

type builtin struct{}

func (builtin) Eval(formula string, v Vars) (float64, error) { return Eval(formula, v) }

// Eval evaluates a skill formula such as "10 + s.level * 5 + a.str / 2".
// Operators: + - * / with parentheses. Functions: Math.floor, Math.ceil,
// Math.round, Math.max, Math.min, Math.abs.
func Eval(formula string, v Vars) (float64, error) {
	if strings.TrimSpace(formula) == "" {
		return 0, nil
	}
	p := &parser{input: formula, vars: v}
	out, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipWS()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected chars at pos %d: %q", p.pos, p.input[p.pos:])
	}
	return out, nil
}

// EvalOrZero is Eval for formulas that were validated at load time; errors yield 0.
func EvalOrZero(formula string, v Vars) float64 {
	out, err := Eval(formula, v)
	if err != nil {
		return 0
	}
	return out
}

type parser struct {
	input string
	pos   int
	vars  Vars
}

func (p *parser) skipWS() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipWS()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr = parseTerm (('+' | '-') parseTerm)*
func (p *parser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return v, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			v += right
		} else {
			v -= right
		}
	}
}

// parseTerm = parseFactor (('*' | '/') parseFactor)*
func (p *parser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return v, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			v *= right
			continue
		}
		if right == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		v /= right
	}
}

// parseFactor = '(' parseExpr ')' | '-' parseFactor | number | variable | Math.func(args)
func (p *parser) parseFactor() (float64, error) {
	ch := p.peek()
	switch {
	case ch == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("expected ')' at pos %d", p.pos)
		}
		p.pos++
		return v, nil
	case ch == '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case unicode.IsDigit(rune(ch)) || ch == '.':
		return p.parseNumber()
	case ch == 'M':
		return p.parseMathFunc()
	case ch == 'a' || ch == 's':
		return p.parseVariable()
	default:
		return 0, fmt.Errorf("unexpected character %q at pos %d", ch, p.pos)
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == '.' || (p.input[p.pos] >= '0' && p.input[p.pos] <= '9')) {
		p.pos++
	}
	return strconv.ParseFloat(p.input[start:p.pos], 64)
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsLetter(rune(p.input[p.pos])) || p.input[p.pos] == '_') {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) parseVariable() (float64, error) {
	who := p.input[p.pos]
	p.pos++
	if p.pos >= len(p.input) || p.input[p.pos] != '.' {
		return 0, fmt.Errorf("expected '.' after '%c'", who)
	}
	p.pos++
	field := p.ident()
	if who == 's' {
		if field == "level" {
			return float64(p.vars.SkillLevel), nil
		}
		return 0, fmt.Errorf("unknown skill field %q", field)
	}
	switch field {
	case "str":
		return float64(p.vars.Strength), nil
	case "def":
		return float64(p.vars.Defense), nil
	case "spd":
		return float64(p.vars.Speed), nil
	case "level":
		return float64(p.vars.Level), nil
	case "hp":
		return p.vars.Health, nil
	case "mp":
		return p.vars.Mana, nil
	case "mhp":
		return p.vars.MaxHealth, nil
	case "mmp":
		return p.vars.MaxMana, nil
	}
	return 0, fmt.Errorf("unknown stat field %q", field)
}

func (p *parser) parseMathFunc() (float64, error) {
	const prefix = "Math."
	if !strings.HasPrefix(p.input[p.pos:], prefix) {
		return 0, fmt.Errorf("expected Math.xxx at pos %d", p.pos)
	}
	p.pos += len(prefix)
	name := p.ident()
	if p.peek() != '(' {
		return 0, fmt.Errorf("expected '(' after Math.%s", name)
	}
	p.pos++
	var args []float64
	for {
		if p.peek() == ')' {
			p.pos++
			break
		}
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		args = append(args, v)
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
		default:
			return 0, fmt.Errorf("expected ',' or ')' in Math.%s", name)
		}
	}
	return applyMathFunc(name, args)
}

func applyMathFunc(name string, args []float64) (float64, error) {
	unary := func(fn func(float64) float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("Math.%s expects 1 argument", name)
		}
		return fn(args[0]), nil
	}
	switch name {
	case "floor":
		return unary(math.Floor)
	case "ceil":
		return unary(math.Ceil)
	case "round":
		return unary(math.Round)
	case "abs":
		return unary(math.Abs)
	case "max", "min":
		if len(args) == 0 {
			return 0, fmt.Errorf("Math.%s expects >=1 argument", name)
		}
		v := args[0]
		for _, a := range args[1:] {
			if (name == "max" && a > v) || (name == "min" && a < v) {
				v = a
			}
		}
		return v, nil
	}
	return 0, fmt.Errorf("unknown Math.%s", name)
}
