package layout

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
	"github.com/zeebo/xxh3"

	"github.com/ByLCY/symlayout/style"
)

// IconRef 是图标阶段的输出，文字阶段用它关联图标并汇总实例。
type IconRef struct {
	Placed            Opt[int]
	PlacedVertical    Opt[int]
	Collision         Opt[IndexRange]
	VerticalCollision Opt[IndexRange]
	VerticalCircle    Opt[float64]
	VertexCount       int
	VerticalCount     int
	HasIconTextFit    bool
}

// textRef 是文字阶段的输出。
type textRef struct {
	placed            PlacedText
	collision         Opt[IndexRange]
	verticalCollision Opt[IndexRange]
	circle            Opt[float64]
	verticalCircle    Opt[float64]
	key               uint64
	vertexCount       int
	verticalCount     int
}

// featureScales 是一个要素在瓦片单位下的碰撞缩放与内边距。
type featureScales struct {
	textBoxScale float64
	iconBoxScale float64
	textPadding  float64
	iconPadding  float64
}

// lineRef 是锚点所在折线在 LineVertices 中的区间。
type lineRef struct {
	start, length int
}

func degrees(v float64) s1.Angle { return s1.Angle(v) * s1.Degree }

// addSymbolInstance 为一个被接受的锚点生成碰撞图元、顶点与实例记录。
func (b *builder) addSymbolInstance(f *Feature, sf *shapedFeature, pa placedAnchor, sc featureScales, sortKey Opt[float64]) {
	l := &b.layer.Layout
	zoom := b.opts.Zoom
	a := pa.anchor

	start, length := b.bucket.addLineVertices(a, pa.line)
	line := lineRef{start: start, length: length}
	projected := b.opts.Projection.Project(a.X, a.Y, b.opts.Tile)
	a.Z = projected.Z
	ctx := collisionContext{anchor: a, projected: projected, featureIndex: f.Index, sourceLayerIndex: f.SourceLayerIndex}

	// 竖排的碰撞图元先于横排写入，旋转 90°。
	var text textRef
	var verticalIconCollision Opt[IndexRange]
	if sf.vertical != nil {
		verticalRotate := degrees(l.TextRotate.Number(zoom, f, 0) + 90)
		text.verticalCollision, text.verticalCircle = addCollisionFeature(b.bucket, ctx, sf.vertical.Bounds(), sc.textBoxScale, sc.textPadding, l.TextAlongLine(), verticalRotate, r2.Point{})
		if vi, ok := sf.verticalIcon.Get(); ok {
			verticalIconCollision, _ = addCollisionFeature(b.bucket, ctx, vi.Bounds(), sc.iconBoxScale, sc.iconPadding, false, verticalRotate, r2.Point{})
		}
	}

	icon := b.assembleIcon(f, sf, a, ctx, sc, line)
	icon.VerticalCollision = verticalIconCollision
	text = b.assembleText(f, sf, a, ctx, sc, line, icon, text)

	diameter := -1.0
	for _, c := range []Opt[float64]{text.circle, text.verticalCircle, icon.VerticalCircle} {
		if d, ok := c.Get(); ok {
			diameter = math.Max(diameter, d)
		}
	}
	useCircles := diameter > -1
	if useCircles {
		diameter *= sf.layoutTextSize / OneEm
	} else {
		diameter = 0
	}

	if text.vertexCount > MaxGlyphs {
		b.warn("glyph-overflow", "单个瓦片中的字形过多，部分标签可能无法渲染", "glyphs", text.vertexCount)
	}
	if text.verticalCount > MaxGlyphs {
		b.warn("glyph-overflow-vertical", "单个瓦片中的竖排字形过多，部分标签可能无法渲染", "glyphs", text.verticalCount)
	}

	inst := SymbolInstance{
		AnchorX:                    a.X,
		AnchorY:                    a.Y,
		Projected:                  projected,
		PlacedText:                 text.placed,
		PlacedIcon:                 icon.Placed,
		PlacedVerticalIcon:         icon.PlacedVertical,
		TextCollision:              text.collision,
		VerticalTextCollision:      text.verticalCollision,
		IconCollision:              icon.Collision,
		VerticalIconCollision:      icon.VerticalCollision,
		Key:                        text.key,
		TextVertexCount:            text.vertexCount,
		VerticalTextVertexCount:    text.verticalCount,
		IconVertexCount:            icon.VertexCount,
		VerticalIconVertexCount:    icon.VerticalCount,
		CollisionCircleDiameter:    diameter,
		UseRuntimeCollisionCircles: useCircles,
		HasIconTextFit:             icon.HasIconTextFit,
		TextBoxScale:               sc.textBoxScale,
		TextOffset:                 sf.textOffset,
		RadialTextOffset:           sf.radialOffset,
		VariableAnchorOffsets:      sf.variableOffsets,
		WritingModes:               sf.writingModes,
		FeatureIndex:               f.Index,
		SortKey:                    sortKey,
	}
	b.bucket.SymbolInstances = append(b.bucket.SymbolInstances, inst)
	if key, ok := sortKey.Get(); ok {
		b.bucket.addSortKey(key, len(b.bucket.SymbolInstances)-1)
	}

	if b.opts.Debug.CollisionBoxes {
		for _, r := range []Opt[IndexRange]{text.verticalCollision, icon.VerticalCollision, icon.Collision, text.collision} {
			if rng, ok := r.Get(); ok {
				b.bucket.addDebugVertices(rng)
			}
		}
	}
}

// assembleIcon 写入图标（及竖排图标）的碰撞盒与顶点。
func (b *builder) assembleIcon(f *Feature, sf *shapedFeature, a Anchor, ctx collisionContext, sc featureScales, line lineRef) IconRef {
	var ref IconRef
	icon, ok := sf.icon.Get()
	if !ok {
		return ref
	}
	l := &b.layer.Layout
	zoom := b.opts.Zoom
	rotate := degrees(l.IconRotate.Number(zoom, f, 0))
	ref.HasIconTextFit = l.IconTextFit != "" && l.IconTextFit != "none"

	quads := getIconQuads(icon, rotate, sf.iconSDF)
	ref.Collision, _ = addCollisionFeature(b.bucket, ctx, icon.Bounds(), sc.iconBoxScale, sc.iconPadding, false, rotate, r2.Point{})
	ref.VertexCount = 4 * len(quads)

	sizes := b.packedSizes(b.bucket.IconSizeData, b.sizes.IconSizeThisZoom, b.sizes.CompositeIconSizes, f, "icon-size")
	offset := pair2(l.IconOffset.Numbers(zoom, f, nil))
	run := symbolRun{
		anchor:       a,
		sizes:        sizes,
		lineOffset:   offset,
		lineStart:    line.start,
		lineLength:   line.length,
		featureIndex: f.Index,
	}
	ref.Placed = Some(b.bucket.addSymbols(&b.bucket.Icon, quads, run))

	if vi, ok := sf.verticalIcon.Get(); ok {
		vquads := getIconQuads(vi, rotate, sf.iconSDF)
		ref.VerticalCount = 4 * len(vquads)
		run.writingMode = WritingModeVertical
		ref.PlacedVertical = Some(b.bucket.addSymbols(&b.bucket.Icon, vquads, run))
	}
	return ref
}

// assembleText 写入文字的碰撞图元与各对齐方式的顶点。单行排版对所有对齐方式共用一份顶点。
func (b *builder) assembleText(f *Feature, sf *shapedFeature, a Anchor, ctx collisionContext, sc featureScales, line lineRef, icon IconRef, ref textRef) textRef {
	if !sf.hasText() {
		return ref
	}
	l := &b.layer.Layout
	zoom := b.opts.Zoom
	alongLine := l.TextAlongLine()
	allowVertical := l.AllowsVerticalWritingMode()
	rotate := degrees(l.TextRotate.Number(zoom, f, 0))
	sizes := b.packedSizes(b.bucket.TextSizeData, b.sizes.TextSizeThisZoom, b.sizes.CompositeTextSizes, f, "text-size")

	mode := WritingModeHorizontalOnly
	if sf.vertical != nil {
		mode = WritingModeHorizontal
	}
	for i, j := range sf.horizontal.order {
		sh := sf.horizontal.shaping[j]
		if i == 0 {
			ref.key = xxh3.HashString(sh.Text)
			// 横排文字绕实际施加的文字偏移旋转。
			pivot := r2.Point{X: sf.glyphOffset[0] * sc.textBoxScale, Y: sf.glyphOffset[1] * sc.textBoxScale}
			ref.collision, ref.circle = addCollisionFeature(b.bucket, ctx, sh.Bounds(), sc.textBoxScale, sc.textPadding, alongLine, rotate, pivot)
		}
		quads := getGlyphQuads(sh, sf.glyphOffset, alongLine, allowVertical, rotate, b.opts.Images)
		idx := b.bucket.addSymbols(&b.bucket.Text, quads, symbolRun{
			anchor:         a,
			sizes:          sizes,
			lineOffset:     sf.glyphOffset,
			writingMode:    mode,
			lineStart:      line.start,
			lineLength:     line.length,
			associatedIcon: icon.Placed,
			featureIndex:   f.Index,
		})
		ref.vertexCount += 4 * len(quads)
		if sh.IconsInText {
			b.bucket.IconsInText = true
		}
		if sf.justifyAll {
			for _, other := range []Justification{JustifyLeft, JustifyCenter, JustifyRight} {
				ref.placed.set(other, idx)
			}
			break
		}
		if len(sh.Lines) == 1 {
			for _, other := range sf.horizontal.order {
				ref.placed.set(other, idx)
			}
			break
		}
		ref.placed.set(j, idx)
	}

	if sf.vertical != nil {
		quads := getGlyphQuads(sf.vertical, sf.glyphOffset, alongLine, allowVertical, rotate, b.opts.Images)
		idx := b.bucket.addSymbols(&b.bucket.Text, quads, symbolRun{
			anchor:         a,
			sizes:          sizes,
			lineOffset:     sf.glyphOffset,
			writingMode:    WritingModeVertical,
			lineStart:      line.start,
			lineLength:     line.length,
			associatedIcon: icon.PlacedVertical,
			featureIndex:   f.Index,
		})
		ref.verticalCount += 4 * len(quads)
		ref.placed.Vertical = Some(idx)
	}
	return ref
}

// packedSizes 返回写入顶点的打包尺寸。source 只有一个值，composite 是两个括号缩放级别上的值。
func (b *builder) packedSizes(data SizeData, thisZoom SizeCurve, composite [2]SizeCurve, f *Feature, prop string) [2]uint16 {
	switch data.Kind {
	case style.KindSource:
		v, clamped := packSize(thisZoom.Evaluate(f))
		if clamped {
			b.warn(prop+"-overflow", "尺寸过大，已截断到打包上限", "property", prop)
		}
		return [2]uint16{v, 0}
	case style.KindComposite:
		lo, c1 := packSize(composite[0].Evaluate(f))
		hi, c2 := packSize(composite[1].Evaluate(f))
		if c1 || c2 {
			b.warn(prop+"-overflow", "尺寸过大，已截断到打包上限", "property", prop)
		}
		return [2]uint16{lo, hi}
	}
	return [2]uint16{}
}
