package template

import (
	"fmt"
	"strconv"
	"unicode"
)

// Expression is a parsed arithmetic formula over variable names. Supported
// grammar: identifiers, decimal literals, + - * /, unary minus, parentheses.
// Standard arithmetic precedence applies.
type Expression struct {
	root exprNode
	src  string
}

// ParseExpression parses a formula source string.
func ParseExpression(src string) (*Expression, error) {
	tokens, err := tokenizeExpr(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: tokens}
	root, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q", p.tokens[p.pos].text)
	}
	return &Expression{root: root, src: src}, nil
}

// ExpressionIdentifiers returns the variable names referenced by a formula.
func ExpressionIdentifiers(src string) ([]string, error) {
	expr, err := ParseExpression(src)
	if err != nil {
		return nil, err
	}
	return expr.Identifiers(), nil
}

// Identifiers returns the referenced variable names, deduplicated, in
// first-appearance order.
func (e *Expression) Identifiers() []string {
	seen := make(map[string]bool)
	var names []string
	collectIdentifiers(e.root, seen, &names)
	return names
}

// Eval evaluates the expression against resolved numeric variable values.
func (e *Expression) Eval(env map[string]float64) (float64, error) {
	return evalNode(e.root, env)
}

// String returns the original source of the expression.
func (e *Expression) String() string {
	return e.src
}

type exprNode interface{ isExprNode() }

type numberNode struct{ val float64 }

type identNode struct{ name string }

type binaryNode struct {
	op          byte
	left, right exprNode
}

type negateNode struct{ operand exprNode }

func (numberNode) isExprNode() {}
func (identNode) isExprNode()  {}
func (binaryNode) isExprNode() {}
func (negateNode) isExprNode() {}

func collectIdentifiers(n exprNode, seen map[string]bool, out *[]string) {
	switch node := n.(type) {
	case identNode:
		if !seen[node.name] {
			seen[node.name] = true
			*out = append(*out, node.name)
		}
	case binaryNode:
		collectIdentifiers(node.left, seen, out)
		collectIdentifiers(node.right, seen, out)
	case negateNode:
		collectIdentifiers(node.operand, seen, out)
	}
}

func evalNode(n exprNode, env map[string]float64) (float64, error) {
	switch node := n.(type) {
	case numberNode:
		return node.val, nil
	case identNode:
		val, ok := env[node.name]
		if !ok {
			return 0, fmt.Errorf("variable %q has no numeric value", node.name)
		}
		return val, nil
	case negateNode:
		val, err := evalNode(node.operand, env)
		return -val, err
	case binaryNode:
		left, err := evalNode(node.left, env)
		if err != nil {
			return 0, err
		}
		right, err := evalNode(node.right, env)
		if err != nil {
			return 0, err
		}
		switch node.op {
		case '+':
			return left + right, nil
		case '-':
			return left - right, nil
		case '*':
			return left * right, nil
		case '/':
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return left / right, nil
		}
	}
	return 0, fmt.Errorf("malformed expression node")
}

type exprToken struct {
	kind byte // 'n' number, 'i' identifier, or the operator/paren rune itself
	text string
	val  float64
}

func tokenizeExpr(src string) ([]exprToken, error) {
	var tokens []exprToken
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '(' || c == ')':
			tokens = append(tokens, exprToken{kind: c, text: string(c)})
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			val, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", src[start:i])
			}
			tokens = append(tokens, exprToken{kind: 'n', text: src[start:i], val: val})
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			tokens = append(tokens, exprToken{kind: 'i', text: src[start:i]})
		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return tokens, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type exprParser struct {
	tokens []exprToken
	pos    int
}

func (p *exprParser) peek() (exprToken, bool) {
	if p.pos >= len(p.tokens) {
		return exprToken{}, false
	}
	return p.tokens[p.pos], true
}

// parseSum handles + and - (lowest precedence).
func (p *exprParser) parseSum() (exprNode, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || (tok.kind != '+' && tok.kind != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.kind, left: left, right: right}
	}
}

// parseProduct handles * and /.
func (p *exprParser) parseProduct() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || (tok.kind != '*' && tok.kind != '/') {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.kind, left: left, right: right}
	}
}

// parseUnary handles unary minus.
func (p *exprParser) parseUnary() (exprNode, error) {
	tok, ok := p.peek()
	if ok && tok.kind == '-' {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negateNode{operand: operand}, nil
	}
	return p.parseAtom()
}

// parseAtom handles literals, identifiers and parenthesized expressions.
func (p *exprParser) parseAtom() (exprNode, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	switch tok.kind {
	case 'n':
		p.pos++
		return numberNode{val: tok.val}, nil
	case 'i':
		p.pos++
		return identNode{name: tok.text}, nil
	case '(':
		p.pos++
		inner, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		tok, ok := p.peek()
		if !ok || tok.kind != ')' {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", tok.text)
	}
}
