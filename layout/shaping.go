package layout

import (
	"math"

	"github.com/ByLCY/symlayout/style"
)

// horizontalShapings 按对齐方式保存横排结果，遍历顺序为首次排版的顺序。
type horizontalShapings struct {
	order   []Justification
	shaping map[Justification]*Shaping
}

func (h *horizontalShapings) set(j Justification, s *Shaping) {
	if h.shaping == nil {
		h.shaping = make(map[Justification]*Shaping, 3)
	}
	if _, ok := h.shaping[j]; !ok {
		h.order = append(h.order, j)
	}
	h.shaping[j] = s
}

func (h *horizontalShapings) first() *Shaping {
	if len(h.order) == 0 {
		return nil
	}
	return h.shaping[h.order[0]]
}

func (h *horizontalShapings) empty() bool { return len(h.order) == 0 }

// shapedFeature 是一个要素与放置位置无关的排版结果。
type shapedFeature struct {
	text       Formatted
	horizontal horizontalShapings
	vertical   *Shaping

	icon         Opt[PositionedIcon]
	verticalIcon Opt[PositionedIcon]
	iconSDF      bool

	textOffset      [2]float64 // 像素
	glyphOffset     [2]float64 // 排版时实际施加的平移，可变锚点时为零
	radialOffset    Opt[float64]
	variableOffsets []AnchorOffset
	justifyAll      bool // 可变锚点且 text-justify 非 auto：所有锚点共用一个排版
	writingModes    WritingMode
	layoutTextSize  float64
	layoutIconSize  float64
}

func (s *shapedFeature) hasText() bool { return !s.horizontal.empty() || s.vertical != nil }

// defaultShaping 返回用于计算标签长度的排版：优先竖排，否则第一个横排。
func (s *shapedFeature) defaultShaping() *Shaping {
	if s.vertical != nil {
		return s.vertical
	}
	return s.horizontal.first()
}

// labelLength 是文字与图标宽度中的较大者。
func (s *shapedFeature) labelLength() float64 {
	length := 0.0
	if sh := s.defaultShaping(); sh != nil {
		length = sh.Right - sh.Left
	}
	if icon, ok := s.icon.Get(); ok {
		length = math.Max(length, icon.Right-icon.Left)
	}
	return length
}

// getAnchorJustification 由锚点推出 auto 对齐方式。
func getAnchorJustification(a TextAnchor) Justification {
	switch a {
	case AnchorRight, AnchorTopRight, AnchorBottomRight:
		return JustifyRight
	case AnchorLeft, AnchorTopLeft, AnchorBottomLeft:
		return JustifyLeft
	default:
		return JustifyCenter
	}
}

// VariableOffset 按锚点把偏移量分解到 x/y（像素）。radial 有值时按 45° 斜边分解，
// 否则使用 offset 的绝对值。
func VariableOffset(anchor TextAnchor, radial Opt[float64], offset [2]float64) [2]float64 {
	var x, y float64
	if r, ok := radial.Get(); ok {
		hypotenuse := r / math.Sqrt2
		switch anchor {
		case AnchorTopRight, AnchorTopLeft:
			y = hypotenuse - BaselineOffset
		case AnchorBottomRight, AnchorBottomLeft:
			y = -hypotenuse + BaselineOffset
		case AnchorBottom:
			y = -r + BaselineOffset
		case AnchorTop:
			y = r - BaselineOffset
		}
		switch anchor {
		case AnchorTopRight, AnchorBottomRight:
			x = -hypotenuse
		case AnchorTopLeft, AnchorBottomLeft:
			x = hypotenuse
		case AnchorLeft:
			x = r
		case AnchorRight:
			x = -r
		}
		return [2]float64{x, y}
	}

	ox, oy := math.Abs(offset[0]), math.Abs(offset[1])
	switch anchor {
	case AnchorTopRight, AnchorTopLeft, AnchorTop:
		y = oy - BaselineOffset
	case AnchorBottomRight, AnchorBottomLeft, AnchorBottom:
		y = -oy + BaselineOffset
	}
	switch anchor {
	case AnchorTopRight, AnchorBottomRight, AnchorRight:
		x = -ox
	case AnchorTopLeft, AnchorBottomLeft, AnchorLeft:
		x = ox
	}
	return [2]float64{x, y}
}

// ShapeIcon 按 icon-anchor 与 icon-offset 定位图标。图像声明了内容区域时，
// 内容区域以外的部分记为碰撞内边距。
func ShapeIcon(img style.Image, offset [2]float64, anchor TextAnchor) PositionedIcon {
	hAlign, vAlign := anchorAlignment(anchor)
	w, h := img.DisplaySize()
	x1 := offset[0] - w*hAlign
	y1 := offset[1] - h*vAlign
	return PositionedIcon{
		Image:            img,
		Top:              y1,
		Bottom:           y1 + h,
		Left:             x1,
		Right:            x1 + w,
		CollisionPadding: contentPadding(img),
	}
}

func contentPadding(img style.Image) *Padding {
	if img.Content == nil {
		return nil
	}
	ratio := img.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	w, h := img.DisplaySize()
	c := img.Content
	return &Padding{
		Left:   c[0] / ratio,
		Top:    c[1] / ratio,
		Right:  w - c[2]/ratio,
		Bottom: h - c[3]/ratio,
	}
}

// FitIconToText 按 icon-text-fit 把图标框拉伸到文字框。padding 顺序为上、右、下、左，
// fontScale 是文字排版像素到图标像素的比例。
func FitIconToText(icon PositionedIcon, text *Shaping, fit style.IconTextFit, padding [4]float64, offset [2]float64, fontScale float64) PositionedIcon {
	w, h := icon.Image.DisplaySize()
	out := PositionedIcon{Image: icon.Image, CollisionPadding: contentPadding(icon.Image)}

	textLeft, textRight := text.Left*fontScale, text.Right*fontScale
	if fit == style.FitWidth || fit == style.FitBoth {
		out.Left = offset[0] + textLeft - padding[3]
		out.Right = offset[0] + textRight + padding[1]
	} else {
		out.Left = offset[0] + (textLeft+textRight-w)/2
		out.Right = out.Left + w
	}

	textTop, textBottom := text.Top*fontScale, text.Bottom*fontScale
	if fit == style.FitHeight || fit == style.FitBoth {
		out.Top = offset[1] + textTop - padding[0]
		out.Bottom = offset[1] + textBottom + padding[2]
	} else {
		out.Top = offset[1] + (textTop+textBottom-h)/2
		out.Bottom = out.Top + h
	}
	return out
}

// shapeFeature 排版一个要素的文字与图标。
func (b *builder) shapeFeature(f *Feature, text Opt[Formatted], iconName Opt[string]) *shapedFeature {
	l := &b.layer.Layout
	zoom := b.opts.Zoom
	sf := &shapedFeature{
		layoutTextSize: b.sizes.LayoutTextSize.Evaluate(f),
		layoutIconSize: b.sizes.LayoutIconSize.Evaluate(f),
	}

	if t, ok := text.Get(); ok && !t.IsEmpty() {
		sf.text = t
		b.shapeText(f, sf)
	}

	if name, ok := iconName.Get(); ok && name != "" {
		b.shapeFeatureIcon(f, name, sf)
	}

	if icon, ok := sf.icon.Get(); ok && l.IconTextFit != style.FitNone && l.IconTextFit != "" {
		if def := sf.horizontal.first(); def != nil {
			offset := pair2(l.IconOffset.Numbers(zoom, f, nil))
			fontScale := sf.layoutTextSize / OneEm
			original := icon
			if sf.vertical != nil {
				sf.verticalIcon = Some(FitIconToText(original, sf.vertical, l.IconTextFit, l.IconTextFitPadding, offset, fontScale))
			}
			sf.icon = Some(FitIconToText(original, def, l.IconTextFit, l.IconTextFitPadding, offset, fontScale))
		}
	}
	return sf
}

func (b *builder) shapeText(f *Feature, sf *shapedFeature) {
	l := &b.layer.Layout
	zoom := b.opts.Zoom
	plain := sf.text.String()

	fontStack := ""
	if len(l.TextFont) > 0 {
		fontStack = l.TextFont[0]
	}
	lineHeight := l.TextLineHeight.Ems() * OneEm
	letterSpacing := 0.0
	if allowsLetterSpacing(plain) {
		letterSpacing = l.TextLetterSpacing.Number(zoom, f, 0) * OneEm
	}
	maxWidth := 0.0
	if l.SymbolPlacement == style.PlacementPoint {
		maxWidth = l.TextMaxWidth.Number(zoom, f, 10) * OneEm
	}
	textAnchor := TextAnchor(l.TextAnchor.String(zoom, f, string(AnchorCenter)))
	justify := Justification(l.TextJustify.String(zoom, f, string(JustifyCenter)))
	allowVertical := l.AllowsVerticalWritingMode()

	offset := pair2(l.TextOffset.Numbers(zoom, f, nil))
	sf.textOffset = [2]float64{offset[0] * OneEm, offset[1] * OneEm}
	if r := l.TextRadialOffset; r.IsSet() {
		sf.radialOffset = Some(r.Number(zoom, f, 0) * OneEm)
	}

	params := ShapingParams{
		FontStack:     fontStack,
		MaxWidth:      maxWidth,
		LineHeight:    lineHeight,
		LetterSpacing: letterSpacing,
		WritingMode:   WritingModeHorizontal,
		Verticalize:   allowVertical,
		Images:        b.opts.Images,
	}

	if len(l.TextVariableAnchor) > 0 {
		// 运行时按锚点平移，排版本身不带偏移。
		params.Anchor = AnchorCenter
		var singleLine *Shaping
		sf.justifyAll = justify != JustifyAuto
		for _, raw := range l.TextVariableAnchor {
			anchor := TextAnchor(raw)
			sf.variableOffsets = append(sf.variableOffsets, AnchorOffset{
				Anchor: anchor,
				Offset: VariableOffset(anchor, sf.radialOffset, sf.textOffset),
			})
			j := justify
			if !sf.justifyAll {
				j = getAnchorJustification(anchor)
			}
			if _, done := sf.horizontal.shaping[j]; done {
				continue
			}
			if singleLine != nil {
				sf.horizontal.set(j, singleLine)
				continue
			}
			params.Justify = j
			if sh, ok := b.opts.Shaper.ShapeText(sf.text, params); ok {
				sf.horizontal.set(j, sh)
				if len(sh.Lines) == 1 {
					singleLine = sh
				}
			}
		}
	} else {
		if justify == JustifyAuto {
			justify = getAnchorJustification(textAnchor)
		}
		params.Anchor = textAnchor
		params.Justify = justify
		if sf.radialOffset.Valid {
			params.Translate = VariableOffset(textAnchor, sf.radialOffset, [2]float64{})
		} else {
			params.Translate = sf.textOffset
		}
		sf.glyphOffset = params.Translate
		if sh, ok := b.opts.Shaper.ShapeText(sf.text, params); ok {
			sf.horizontal.set(justify, sh)
		}
	}

	if def := sf.horizontal.first(); allowVertical && def != nil && def.Verticalizable {
		params.WritingMode = WritingModeVertical
		params.Justify = JustifyLeft
		params.MaxWidth = 0
		if sh, ok := b.opts.Shaper.ShapeText(sf.text, params); ok {
			sf.vertical = sh
		}
	}

	if !sf.horizontal.empty() {
		sf.writingModes |= WritingModeHorizontal
	}
	if sf.vertical != nil {
		sf.writingModes |= WritingModeVertical
	}
}

func (b *builder) shapeFeatureIcon(f *Feature, name string, sf *shapedFeature) {
	l := &b.layer.Layout
	zoom := b.opts.Zoom
	img, ok := b.opts.Images[name]
	if !ok {
		b.warn("missing-image:"+name, "图标不存在", "image", name)
		return
	}
	offset := pair2(l.IconOffset.Numbers(zoom, f, nil))
	anchor := TextAnchor(l.IconAnchor.String(zoom, f, string(AnchorCenter)))
	sf.icon = Some(ShapeIcon(img, offset, anchor))
	sf.iconSDF = img.SDF

	if sdf, set := b.bucket.SDFIcons.Get(); set && sdf != img.SDF {
		b.warn("sdf-mix", "同一图层混用了 SDF 与非 SDF 图标", "image", name)
	} else if !set {
		b.bucket.SDFIcons = Some(img.SDF)
	}
	ratio := img.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	if ratio != b.opts.PixelRatio || l.IconRotate.Number(zoom, f, 0) != 0 {
		b.bucket.IconsNeedLinear = true
	}
}

func pair2(v []float64) [2]float64 {
	var out [2]float64
	copy(out[:], v)
	return out
}
