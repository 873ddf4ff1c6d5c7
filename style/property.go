package style

import (
	"errors"
	"fmt"
)

var errEmptyCurve = errors.New("缩放曲线至少需要一个控制点")

// StopOrderError 表示缩放曲线控制点未严格递增。
type StopOrderError struct {
	Index int
	Prev  float64
	Input float64
}

func (e *StopOrderError) Error() string {
	return fmt.Sprintf("控制点 %d 的输入 %g 不大于前一个 %g", e.Index, e.Input, e.Prev)
}

// Kind 描述属性值依赖什么：常量、要素、缩放或两者。
type Kind int

const (
	KindConstant Kind = iota
	KindSource
	KindCamera
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindCamera:
		return "camera"
	case KindComposite:
		return "composite"
	default:
		return "constant"
	}
}

// Property 是一个未求值的布局属性。零值表示未设置。
type Property struct {
	expr Expression
}

// Constant 构造常量属性。
func Constant(v any) Property { return Property{expr: Literal{Value: v}} }

// FromExpression 包装任意表达式。
func FromExpression(e Expression) Property { return Property{expr: e} }

// IsSet 报告属性是否在样式中出现过。
func (p Property) IsSet() bool { return p.expr != nil }

// Expression 返回底层表达式，未设置时为 nil。
func (p Property) Expression() Expression { return p.expr }

// Kind classifies the property for size packing.
func (p Property) Kind() Kind {
	if p.expr == nil {
		return KindConstant
	}
	zoom, feature := p.expr.zoomDependent(), p.expr.featureDependent()
	switch {
	case zoom && feature:
		return KindComposite
	case zoom:
		return KindCamera
	case feature:
		return KindSource
	default:
		return KindConstant
	}
}

// Curve returns the zoom curve when the property is zoom driven.
func (p Property) Curve() (ZoomCurve, bool) {
	c, ok := p.expr.(ZoomCurve)
	return c, ok
}

// ZoomStops 返回缩放曲线的控制点输入值。
func (p Property) ZoomStops() []float64 {
	c, ok := p.Curve()
	if !ok {
		return nil
	}
	out := make([]float64, len(c.Stops))
	for i, s := range c.Stops {
		out[i] = s.Input
	}
	return out
}

func (p Property) Evaluate(zoom float64, f Feature) any {
	if p.expr == nil {
		return nil
	}
	return p.expr.Evaluate(zoom, f)
}

func (p Property) Number(zoom float64, f Feature, def float64) float64 {
	if v, ok := toFloat(p.Evaluate(zoom, f)); ok {
		return v
	}
	return def
}

func (p Property) String(zoom float64, f Feature, def string) string {
	switch v := p.Evaluate(zoom, f).(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

func (p Property) Numbers(zoom float64, f Feature, def []float64) []float64 {
	if v, ok := toFloats(p.Evaluate(zoom, f)); ok {
		return v
	}
	return def
}

func (p Property) Strings(zoom float64, f Feature, def []string) []string {
	if v, ok := toStrings(p.Evaluate(zoom, f)); ok {
		return v
	}
	return def
}
