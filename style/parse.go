package style

import (
	"fmt"
	"strings"

	"github.com/ByLCY/symlayout/binding"
	"github.com/ByLCY/symlayout/dsl"
)

// exprParser 把 DSL 保留的原始 token 解析为 Expression。
// 支持：数字、字符串、标识符、[...]、get(key[, fallback])、zoom([base: n,] in: out, ...)。
type exprParser struct {
	parts []*dsl.Lexeme
	pos   int
	unit  Unit
}

func parseExpressionTokens(parts []*dsl.Lexeme, unit Unit) (Expression, error) {
	p := &exprParser{parts: parts, unit: unit}
	expr, err := p.parse()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok != nil {
		return nil, fmt.Errorf("%s: 表达式多余的 token %q", tok.Pos, tok.Raw)
	}
	return expr, nil
}

func (p *exprParser) peek() *dsl.Lexeme {
	if p.pos >= len(p.parts) {
		return nil
	}
	return p.parts[p.pos]
}

func (p *exprParser) next() *dsl.Lexeme {
	tok := p.peek()
	if tok != nil {
		p.pos++
	}
	return tok
}

func (p *exprParser) expect(raw string) error {
	tok := p.next()
	if tok == nil {
		return fmt.Errorf("表达式意外结束，期望 %q", raw)
	}
	if tok.Raw != raw {
		return fmt.Errorf("%s: 期望 %q，得到 %q", tok.Pos, raw, tok.Raw)
	}
	return nil
}

func (p *exprParser) accept(raw string) bool {
	if tok := p.peek(); tok != nil && tok.Raw == raw {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) parse() (Expression, error) {
	tok := p.next()
	if tok == nil {
		return nil, fmt.Errorf("表达式为空")
	}
	switch tok.Type {
	case "Number":
		v, err := p.number(tok)
		if err != nil {
			return nil, err
		}
		return Literal{Value: v}, nil
	case "String":
		return stringExpression(tok.Value), nil
	case "Symbol":
		if tok.Raw == "[" {
			return p.array()
		}
	case "Ident":
		if next := p.peek(); next != nil && next.Raw == "(" {
			p.pos++
			return p.call(tok)
		}
		switch tok.Value {
		case "true":
			return Literal{Value: true}, nil
		case "false":
			return Literal{Value: false}, nil
		}
		return Literal{Value: tok.Value}, nil
	}
	return nil, fmt.Errorf("%s: 无法识别的表达式 %q", tok.Pos, tok.Raw)
}

func (p *exprParser) number(tok *dsl.Lexeme) (float64, error) {
	l, err := ParseRawLength(tok.Value)
	if err != nil {
		return 0, fmt.Errorf("%s: 数值 %q 无法解析: %w", tok.Pos, tok.Raw, err)
	}
	return l.To(p.unit), nil
}

func (p *exprParser) array() (Expression, error) {
	var items []Expression
	for !p.accept("]") {
		if len(items) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		item, err := p.parse()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return literalArray(items)
}

func (p *exprParser) call(name *dsl.Lexeme) (Expression, error) {
	switch name.Value {
	case "get":
		key := p.next()
		if key == nil || (key.Type != "Ident" && key.Type != "String") {
			return nil, fmt.Errorf("%s: get 需要属性名", name.Pos)
		}
		g := Get{Key: key.Value}
		if p.accept(",") {
			fb, err := p.parse()
			if err != nil {
				return nil, err
			}
			g.Fallback = fb
		}
		return g, p.expect(")")
	case "zoom":
		return p.zoomCurve(name)
	default:
		return nil, fmt.Errorf("%s: 未知函数 %s", name.Pos, name.Value)
	}
}

func (p *exprParser) zoomCurve(name *dsl.Lexeme) (Expression, error) {
	base := 1.0
	var stops []Stop
	for items := 0; !p.accept(")"); items++ {
		if items > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		tok := p.next()
		if tok == nil {
			return nil, fmt.Errorf("%s: zoom 曲线未闭合", name.Pos)
		}
		if tok.Type == "Ident" && tok.Value == "base" {
			if err := p.expect(":"); err != nil {
				return nil, err
			}
			b := p.next()
			if b == nil || b.Type != "Number" {
				return nil, fmt.Errorf("%s: base 需要数值", tok.Pos)
			}
			l, err := ParseRawLength(b.Value)
			if err != nil {
				return nil, err
			}
			base = l.Value
			continue
		}
		if tok.Type != "Number" {
			return nil, fmt.Errorf("%s: zoom 控制点需要数值输入，得到 %q", tok.Pos, tok.Raw)
		}
		in, err := ParseRawLength(tok.Value)
		if err != nil {
			return nil, err
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		out, err := p.parse()
		if err != nil {
			return nil, err
		}
		stops = append(stops, Stop{Input: in.Value, Output: out})
	}
	curve, err := NewZoomCurve(base, stops)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name.Pos, err)
	}
	return curve, nil
}

func stringExpression(s string) Expression {
	if binding.HasTokens(s) {
		return Template{Text: s}
	}
	return Literal{Value: s}
}

// literalArray 要求数组元素都是常量：全数值得到 []float64，否则 []string。
func literalArray(items []Expression) (Expression, error) {
	nums := make([]float64, 0, len(items))
	strs := make([]string, 0, len(items))
	for _, item := range items {
		lit, ok := item.(Literal)
		if !ok {
			return nil, fmt.Errorf("数组元素必须为常量")
		}
		switch v := lit.Value.(type) {
		case float64:
			nums = append(nums, v)
			strs = append(strs, fmt.Sprint(v))
		case string:
			strs = append(strs, v)
		default:
			strs = append(strs, fmt.Sprint(v))
		}
	}
	if len(nums) == len(items) {
		return Literal{Value: nums}, nil
	}
	return Literal{Value: strs}, nil
}

// valueExpression 将 dsl.Value 转为 Expression，数值按 unit 换算。
func valueExpression(val *dsl.Value, unit Unit) (Expression, error) {
	if val == nil {
		return nil, fmt.Errorf("缺少属性值")
	}
	switch {
	case val.String != nil:
		return stringExpression(string(*val.String)), nil
	case val.Number != nil:
		l, err := ParseRawLength(*val.Number)
		if err != nil {
			return nil, fmt.Errorf("数值 %q 无法解析: %w", *val.Number, err)
		}
		return Literal{Value: l.To(unit)}, nil
	case val.Array != nil:
		items := make([]Expression, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			e, err := valueExpression(item, unit)
			if err != nil {
				return nil, err
			}
			items = append(items, e)
		}
		return literalArray(items)
	case val.Expr != nil:
		return parseExpressionTokens(val.Expr.Parts, unit)
	default:
		return nil, fmt.Errorf("空属性值")
	}
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Expr != nil:
		var builder strings.Builder
		for _, part := range val.Expr.Parts {
			builder.WriteString(part.Value)
		}
		return builder.String()
	case val.Array != nil:
		return strings.Join(valueToStringSlice(val), ",")
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
