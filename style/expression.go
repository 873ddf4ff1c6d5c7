package style

import (
	"math"
	"sort"
	"strconv"

	"github.com/ByLCY/symlayout/binding"
)

// Feature 是表达式求值时可见的要素视图。
type Feature interface {
	Properties() map[string]any
}

// Expression 是布局属性的求值器。实现集合是封闭的：Literal、Get、Template、ZoomCurve。
type Expression interface {
	Evaluate(zoom float64, f Feature) any
	zoomDependent() bool
	featureDependent() bool
}

// Literal 是常量值。
type Literal struct {
	Value any
}

func (l Literal) Evaluate(float64, Feature) any { return l.Value }
func (Literal) zoomDependent() bool { return false }
func (Literal) featureDependent() bool { return false }

// Get 读取要素属性，缺失时返回 Fallback。
type Get struct {
	Key      string
	Fallback Expression
}

func (g Get) Evaluate(zoom float64, f Feature) any {
	if f != nil {
		if v, ok := binding.Lookup(f.Properties(), g.Key); ok && v != nil {
			return v
		}
	}
	if g.Fallback != nil {
		return g.Fallback.Evaluate(zoom, f)
	}
	return nil
}

func (Get) zoomDependent() bool { return false }
func (Get) featureDependent() bool { return true }

// Template 展开 "{name}" 形式的 token。
type Template struct {
	Text string
}

func (t Template) Evaluate(_ float64, f Feature) any {
	if f == nil {
		return binding.Interpolate(t.Text, nil)
	}
	return binding.Interpolate(t.Text, f.Properties())
}

func (Template) zoomDependent() bool { return false }
func (t Template) featureDependent() bool { return binding.HasTokens(t.Text) }

// Stop 是缩放曲线上的一个控制点。
type Stop struct {
	Input  float64
	Output Expression
}

// ZoomCurve 在缩放级别上插值。Base 为 1 时线性，否则指数插值；非数值输出退化为阶梯。
type ZoomCurve struct {
	Base  float64
	Stops []Stop
}

// NewZoomCurve 校验控制点严格递增。
func NewZoomCurve(base float64, stops []Stop) (ZoomCurve, error) {
	if len(stops) == 0 {
		return ZoomCurve{}, errEmptyCurve
	}
	for i := 1; i < len(stops); i++ {
		if stops[i].Input <= stops[i-1].Input {
			return ZoomCurve{}, &StopOrderError{Index: i, Prev: stops[i-1].Input, Input: stops[i].Input}
		}
	}
	if base <= 0 {
		base = 1
	}
	return ZoomCurve{Base: base, Stops: stops}, nil
}

func (c ZoomCurve) Evaluate(zoom float64, f Feature) any {
	n := len(c.Stops)
	if n == 0 {
		return nil
	}
	if zoom <= c.Stops[0].Input {
		return c.Stops[0].Output.Evaluate(zoom, f)
	}
	if zoom >= c.Stops[n-1].Input {
		return c.Stops[n-1].Output.Evaluate(zoom, f)
	}
	i := sort.Search(n, func(i int) bool { return c.Stops[i].Input > zoom }) - 1
	lo, hi := c.Stops[i], c.Stops[i+1]
	t := c.Factor(zoom, lo.Input, hi.Input)
	a := lo.Output.Evaluate(zoom, f)
	b := hi.Output.Evaluate(zoom, f)
	return interpolateValue(a, b, t)
}

// Factor 返回 zoom 在 [lower, upper] 之间的插值系数。
func (c ZoomCurve) Factor(zoom, lower, upper float64) float64 {
	diff := upper - lower
	progress := zoom - lower
	if diff == 0 {
		return 0
	}
	if c.Base == 1 || c.Base == 0 {
		return progress / diff
	}
	return (math.Pow(c.Base, progress) - 1) / (math.Pow(c.Base, diff) - 1)
}

func (ZoomCurve) zoomDependent() bool { return true }

func (c ZoomCurve) featureDependent() bool {
	for _, s := range c.Stops {
		if s.Output.featureDependent() {
			return true
		}
	}
	return false
}

func interpolateValue(a, b any, t float64) any {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x + (y-x)*t
		}
	}
	xs, okA := toFloats(a)
	ys, okB := toFloats(b)
	if okA && okB && len(xs) == len(ys) {
		out := make([]float64, len(xs))
		for i := range xs {
			out[i] = xs[i] + (ys[i]-xs[i])*t
		}
		return out
	}
	return a
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toFloats(v any) ([]float64, bool) {
	switch x := v.(type) {
	case []float64:
		return x, true
	case []any:
		out := make([]float64, 0, len(x))
		for _, item := range x {
			f, ok := toFloat(item)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	default:
		return nil, false
	}
}

func toStrings(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case string:
		return []string{x}, true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
