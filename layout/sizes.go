package layout

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/ByLCY/symlayout/style"
)

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SizeData 描述渲染端如何取得字号：常量、逐要素、逐缩放或两者组合。
type SizeData struct {
	Kind style.Kind `json:"kind"`
	// LayoutSize 仅 constant：在 zoom+1 上求得的字号。
	LayoutSize float64 `json:"layoutSize,omitempty"`
	// MinZoom/MaxZoom 仅 camera/composite：覆盖 [zoom, zoom+1] 的两个控制点。
	MinZoom float64 `json:"minZoom,omitempty"`
	MaxZoom float64 `json:"maxZoom,omitempty"`
	// MinSize/MaxSize 仅 camera：两个控制点上的字号。
	MinSize           float64 `json:"minSize,omitempty"`
	MaxSize           float64 `json:"maxSize,omitempty"`
	InterpolationBase float64 `json:"interpolationBase,omitempty"`
}

// GetSizeData 计算属性在 tileZoom 上的 SizeData。
func GetSizeData(tileZoom float64, p style.Property, def float64) SizeData {
	kind := p.Kind()
	switch kind {
	case style.KindConstant:
		return SizeData{Kind: kind, LayoutSize: p.Number(tileZoom+1, nil, def)}
	case style.KindSource:
		return SizeData{Kind: kind}
	}

	stops := p.ZoomStops()
	lower := 0
	for lower < len(stops) && stops[lower] <= tileZoom {
		lower++
	}
	lower = max(0, lower-1)
	upper := lower
	for upper < len(stops) && stops[upper] < tileZoom+1 {
		upper++
	}
	upper = min(len(stops)-1, upper)

	sd := SizeData{Kind: kind, MinZoom: stops[lower], MaxZoom: stops[upper], InterpolationBase: 1}
	if c, ok := p.Curve(); ok {
		sd.InterpolationBase = c.Base
	}
	if kind == style.KindCamera {
		sd.MinSize = p.Number(sd.MinZoom, nil, def)
		sd.MaxSize = p.Number(sd.MaxZoom, nil, def)
	}
	return sd
}

// SizeCurve 是在固定缩放级别上按要素求值的尺寸。
type SizeCurve struct {
	prop  style.Property
	zoom  float64
	def   float64
	scale float64
}

// Zoom 返回求值所用的缩放级别。
func (c SizeCurve) Zoom() float64 { return c.zoom }

// Evaluate 返回要素在该缩放级别上的尺寸（已乘缩放系数）。
func (c SizeCurve) Evaluate(f style.Feature) float64 {
	return c.prop.Number(c.zoom, f, c.def) * c.scale
}

// Sizes 是一个桶的尺寸参数集合。
type Sizes struct {
	TextScaleFactor float64
	IconScaleFactor float64

	TextSizeThisZoom SizeCurve // 桶缩放级别
	LayoutTextSize   SizeCurve // zoom+1
	TextMaxSize      SizeCurve // zoom 18
	IconSizeThisZoom SizeCurve
	LayoutIconSize   SizeCurve

	CompositeTextSizes [2]SizeCurve
	CompositeIconSizes [2]SizeCurve
}

const (
	defaultTextSize = 16.0
	defaultIconSize = 1.0
	textMaxSizeZoom = 18.0
)

// ComputeSizes 解析图层的 text-size / icon-size。
func ComputeSizes(l *style.Layout, zoom, scaleFactor float64, textData, iconData SizeData) Sizes {
	textScale := clamp(scaleFactor, l.TextSizeScaleRange[0], l.TextSizeScaleRange[1])
	iconScale := clamp(scaleFactor, l.IconSizeScaleRange[0], l.IconSizeScaleRange[1])
	if l.TextSizeScaleRange == [2]float64{} {
		textScale = scaleFactor
	}
	if l.IconSizeScaleRange == [2]float64{} {
		iconScale = scaleFactor
	}

	text := func(z float64) SizeCurve {
		return SizeCurve{prop: l.TextSize, zoom: z, def: defaultTextSize, scale: textScale}
	}
	icon := func(z float64) SizeCurve {
		return SizeCurve{prop: l.IconSize, zoom: z, def: defaultIconSize, scale: iconScale}
	}
	s := Sizes{
		TextScaleFactor:  textScale,
		IconScaleFactor:  iconScale,
		TextSizeThisZoom: text(zoom),
		LayoutTextSize:   text(zoom + 1),
		TextMaxSize:      text(textMaxSizeZoom),
		IconSizeThisZoom: icon(zoom),
		LayoutIconSize:   icon(zoom + 1),
	}
	if textData.Kind == style.KindComposite {
		s.CompositeTextSizes = [2]SizeCurve{text(textData.MinZoom), text(textData.MaxZoom)}
	}
	if iconData.Kind == style.KindComposite {
		s.CompositeIconSizes = [2]SizeCurve{icon(iconData.MinZoom), icon(iconData.MaxZoom)}
	}
	return s
}

// packSize 把尺寸打包为 uint16 定点数，超出上限时截断。
func packSize(v float64) (uint16, bool) {
	packed := v * SizePackFactor
	if packed > MaxPackedSize {
		return MaxPackedSize, true
	}
	return uint16(math.Max(0, math.Floor(packed))), false
}
