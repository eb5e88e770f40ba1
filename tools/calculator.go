package tools

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/quorum"
)

// Calculator returns a tool that evaluates simple arithmetic expressions. The
// parser accepts numbers, parentheses, + - * / % and ** only, so model-written
// expressions cannot reach anything beyond arithmetic.
func Calculator() quorum.Tool {
	return &calculatorTool{}
}

type calculatorTool struct{}

func (x *calculatorTool) Spec() *quorum.ToolSpec {
	return &quorum.ToolSpec{
		Name:        "calculator",
		Description: "Evaluate a simple arithmetic expression safely (+ - * / ** % and parentheses).",
		Parameters: map[string]*quorum.Parameter{
			"expression": {
				Type: quorum.TypeString,
			},
		},
		Required: []string{"expression"},
	}
}

func (x *calculatorTool) Run(ctx context.Context, args map[string]any) (any, error) {
	expr, ok := args["expression"].(string)
	if !ok {
		return nil, goerr.New("expression must be a string")
	}

	value, err := evalExpression(expr)
	if err != nil {
		return nil, err
	}

	// Integral results come back as integers so "4.0" never leaks into answers.
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return nil, goerr.New("expression result is not finite", goerr.V("expression", expr))
	}
	if math.Abs(value-math.Round(value)) < 1e-12 {
		return int64(math.Round(value)), nil
	}
	return value, nil
}

// exprParser is a recursive descent parser over the expression text.
// Precedence, loosest first: additive, multiplicative, unary sign, power.
// Power is right associative and binds tighter than unary sign on its left,
// so "-2**2" is -4 and "2**-1" is 0.5.
type exprParser struct {
	src string
	pos int
}

func evalExpression(src string) (float64, error) {
	p := &exprParser{src: src}
	v, err := p.parseAdditive()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.src) {
		return 0, goerr.New("unexpected trailing input", goerr.V("at", p.pos), goerr.V("rest", p.src[p.pos:]))
	}
	return v, nil
}

func (p *exprParser) parseAdditive() (float64, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.hasPrefix("+"):
			p.pos++
			right, err := p.parseMultiplicative()
			if err != nil {
				return 0, err
			}
			left += right
		case p.hasPrefix("-"):
			p.pos++
			right, err := p.parseMultiplicative()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseMultiplicative() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.hasPrefix("**"):
			// Power belongs to parseUnary/parsePower; stop here.
			return left, nil
		case p.hasPrefix("*"):
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.hasPrefix("/"):
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, goerr.New("division by zero")
			}
			left /= right
		case p.hasPrefix("%"):
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, goerr.New("modulo by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpaces()
	switch {
	case p.hasPrefix("+"):
		p.pos++
		return p.parseUnary()
	case p.hasPrefix("-"):
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	default:
		return p.parsePower()
	}
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.hasPrefix("**") {
		p.pos += 2
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseAtom() (float64, error) {
	p.skipSpaces()
	if p.pos >= len(p.src) {
		return 0, goerr.New("unexpected end of expression")
	}

	if p.src[p.pos] == '(' {
		p.pos++
		v, err := p.parseAdditive()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if !p.hasPrefix(")") {
			return 0, goerr.New("missing closing parenthesis", goerr.V("at", p.pos))
		}
		p.pos++
		return v, nil
	}

	start := p.pos
	for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	if p.pos == start {
		return 0, goerr.New("expected number", goerr.V("at", start), goerr.V("rest", p.src[start:]))
	}

	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, goerr.Wrap(err, "invalid number", goerr.V("token", p.src[start:p.pos]))
	}
	return v, nil
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
