package style

import (
	"math"
	"testing"
)

// TestPxEmRoundTrip 验证 px↔em 换算的往返精度。
func TestPxEmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 12, 14.4, 24, 96, 1000}
	for _, px := range samples {
		em := Length{Value: px, Unit: UnitPx}.ToEm()
		back := Length{Value: em, Unit: UnitEm}.ToPx()
		if diff := math.Abs(back - px); diff > 1e-9 {
			t.Fatalf("px→em→px 往返误差过大: in=%gpx em=%g back=%g diff=%g", px, em, back, diff)
		}
	}
}

// TestParseRawLength 覆盖常见写法。
func TestParseRawLength(t *testing.T) {
	cases := []struct {
		in   string
		want Length
	}{
		{"12", Length{Value: 12, Unit: UnitNone}},
		{"1.5em", Length{Value: 1.5, Unit: UnitEm}},
		{"-4px", Length{Value: -4, Unit: UnitPx}},
		{"45deg", Length{Value: 45, Unit: UnitDeg}},
		{"", Length{}},
	}
	for _, tc := range cases {
		got, err := ParseRawLength(tc.in)
		if err != nil {
			t.Fatalf("ParseRawLength(%q) 失败: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRawLength(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseRawLength("abc"); err == nil {
		t.Fatalf("非法数字应返回错误")
	}
}

// TestLengthUnitless 验证无单位数值按目标单位原样返回。
func TestLengthUnitless(t *testing.T) {
	l := Length{Value: 3}
	if l.ToEm() != 3 || l.ToPx() != 3 {
		t.Fatalf("无单位数值不应被换算: %+v", l)
	}
}

// TestLineHeightEms 验证行高的两种语义。
func TestLineHeightEms(t *testing.T) {
	factor := LineHeightSpec{Kind: LineHeightFactor, Factor: 1.2}
	if got := factor.Ems(); math.Abs(got-1.2) > 1e-9 {
		t.Fatalf("1.2 倍行高解析错误: %g", got)
	}
	abs := LineHeightSpec{Kind: LineHeightAbsolute, Len: Length{Value: 36, Unit: UnitPx}}
	if got := abs.Ems(); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("36px 行高应为 1.5em，实际 %g", got)
	}
}
