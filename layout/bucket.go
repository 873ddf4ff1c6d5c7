package layout

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
)

// SymbolVertex 是交给 GPU 的一个符号顶点。偏移以 1/32 像素为单位。
type SymbolVertex struct {
	AnchorX int16  `json:"anchorX"`
	AnchorY int16  `json:"anchorY"`
	OffsetX int16  `json:"offsetX"`
	OffsetY int16  `json:"offsetY"`
	TexU    uint16 `json:"texU"`
	TexV    uint16 `json:"texV"`
	SizeLo  uint16 `json:"sizeLo"`
	SizeHi  uint16 `json:"sizeHi"`
}

// PlacedSymbol 描述一组连续四边形：一段文字或一个图标。
type PlacedSymbol struct {
	AnchorX        float64     `json:"anchorX"`
	AnchorY        float64     `json:"anchorY"`
	GlyphStart     int         `json:"glyphStart"`
	NumGlyphs      int         `json:"numGlyphs"`
	VertexStart    int         `json:"vertexStart"`
	LineStart      int         `json:"lineStart"`
	LineLength     int         `json:"lineLength"`
	Segment        Opt[int]    `json:"segment"`
	LowerSize      uint16      `json:"lowerSize"`
	UpperSize      uint16      `json:"upperSize"`
	LineOffsetX    float64     `json:"lineOffsetX"`
	LineOffsetY    float64     `json:"lineOffsetY"`
	WritingMode    WritingMode `json:"writingMode"`
	AssociatedIcon Opt[int]    `json:"associatedIcon"`
	FeatureIndex   int         `json:"featureIndex"`
}

// SymbolBuffers 是文字或图标的一组顶点缓冲。
type SymbolBuffers struct {
	Vertices      []SymbolVertex `json:"vertices"`
	Indices       []uint32       `json:"indices"`
	PlacedSymbols []PlacedSymbol `json:"placedSymbols"`
	GlyphOffsets  []float64      `json:"glyphOffsets"`
}

// SortKeyRange 是排序键相同的一段连续实例。
type SortKeyRange struct {
	SortKey float64 `json:"sortKey"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
}

// DebugVertex 是碰撞图元调试轮廓上的一个顶点（瓦片单位）。
type DebugVertex struct {
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	Kind      PrimitiveKind `json:"kind"`
	Primitive int           `json:"primitive"`
}

// Bucket 拥有一个瓦片中一个图层的全部布局输出。构建完成后只读。
type Bucket struct {
	ID      string       `json:"id,omitempty"`
	LayerID string       `json:"layerId"`
	Zoom    float64      `json:"zoom"`
	Tile    maptile.Tile `json:"tile"`
	Extent  int          `json:"extent"`

	TextSizeData SizeData `json:"textSizeData"`
	IconSizeData SizeData `json:"iconSizeData"`

	SymbolInstances []SymbolInstance     `json:"symbolInstances"`
	CollisionBoxes  []CollisionPrimitive `json:"collisionBoxes"`
	LineVertices    []LineVertex         `json:"lineVertices"`
	Text            SymbolBuffers        `json:"text"`
	Icon            SymbolBuffers        `json:"icon"`
	SortKeyRanges   []SortKeyRange       `json:"sortKeyRanges,omitempty"`
	DebugVertices   []DebugVertex        `json:"debugVertices,omitempty"`

	SDFIcons        Opt[bool] `json:"sdfIcons"`
	IconsNeedLinear bool      `json:"iconsNeedLinear"`
	IconsInText     bool      `json:"iconsInText"`

	Warnings []string `json:"warnings,omitempty"`
}

func (b *Bucket) addPrimitive(p CollisionPrimitive) int {
	b.CollisionBoxes = append(b.CollisionBoxes, p)
	return len(b.CollisionBoxes) - 1
}

// addLineVertices 写入锚点所在折线的全部顶点及其到锚点的沿线距离。
// 点锚点不写入，返回空区间。
func (b *Bucket) addLineVertices(a Anchor, line orb.LineString) (start, length int) {
	start = len(b.LineVertices)
	seg, ok := a.Segment.Get()
	if !ok || seg+1 >= len(line) {
		return start, 0
	}
	pt := a.Point()
	dists := make([]float64, len(line))

	forward := planar.Distance(pt, line[seg+1])
	for i := seg + 1; i < len(line); i++ {
		dists[i] = forward
		if i < len(line)-1 {
			forward += planar.Distance(line[i+1], line[i])
		}
	}
	backward := planar.Distance(pt, line[seg])
	for i := seg; i >= 0; i-- {
		dists[i] = backward
		if i > 0 {
			backward += planar.Distance(line[i-1], line[i])
		}
	}
	for i, p := range line {
		b.LineVertices = append(b.LineVertices, LineVertex{X: p[0], Y: p[1], TileUnitDistance: dists[i]})
	}
	return start, len(line)
}

// symbolRun 是 addSymbols 的放置参数。
type symbolRun struct {
	anchor         Anchor
	sizes          [2]uint16
	lineOffset     [2]float64
	writingMode    WritingMode
	lineStart      int
	lineLength     int
	associatedIcon Opt[int]
	featureIndex   int
}

func packOffset(v float64) int16 {
	return int16(clamp(math.Round(v*32), math.MinInt16, math.MaxInt16))
}

func packTex(v float64) uint16 {
	return uint16(clamp(math.Round(v), 0, math.MaxUint16))
}

// addSymbols 把一组四边形写入 buf，并追加一条 PlacedSymbol。返回其下标。
func (b *Bucket) addSymbols(buf *SymbolBuffers, quads []quad, run symbolRun) int {
	glyphStart := len(buf.GlyphOffsets)
	vertexStart := len(buf.Vertices)
	ax := int16(clamp(math.Round(run.anchor.X), math.MinInt16, math.MaxInt16))
	ay := int16(clamp(math.Round(run.anchor.Y), math.MinInt16, math.MaxInt16))

	for _, q := range quads {
		y := q.glyphOffset[1]
		base := uint32(len(buf.Vertices))
		corners := [4]struct{ x, y, u, v float64 }{
			{q.tl.X, y + q.tl.Y, q.tex.X, q.tex.Y},
			{q.tr.X, y + q.tr.Y, q.tex.X + q.tex.W, q.tex.Y},
			{q.bl.X, y + q.bl.Y, q.tex.X, q.tex.Y + q.tex.H},
			{q.br.X, y + q.br.Y, q.tex.X + q.tex.W, q.tex.Y + q.tex.H},
		}
		for _, c := range corners {
			buf.Vertices = append(buf.Vertices, SymbolVertex{
				AnchorX: ax,
				AnchorY: ay,
				OffsetX: packOffset(c.x),
				OffsetY: packOffset(c.y),
				TexU:    packTex(c.u),
				TexV:    packTex(c.v),
				SizeLo:  run.sizes[0],
				SizeHi:  run.sizes[1],
			})
		}
		buf.Indices = append(buf.Indices, base, base+1, base+2, base+1, base+2, base+3)
		buf.GlyphOffsets = append(buf.GlyphOffsets, q.glyphOffset[0])
	}

	buf.PlacedSymbols = append(buf.PlacedSymbols, PlacedSymbol{
		AnchorX:        run.anchor.X,
		AnchorY:        run.anchor.Y,
		GlyphStart:     glyphStart,
		NumGlyphs:      len(buf.GlyphOffsets) - glyphStart,
		VertexStart:    vertexStart,
		LineStart:      run.lineStart,
		LineLength:     run.lineLength,
		Segment:        run.anchor.Segment,
		LowerSize:      run.sizes[0],
		UpperSize:      run.sizes[1],
		LineOffsetX:    run.lineOffset[0],
		LineOffsetY:    run.lineOffset[1],
		WritingMode:    run.writingMode,
		AssociatedIcon: run.associatedIcon,
		FeatureIndex:   run.featureIndex,
	})
	return len(buf.PlacedSymbols) - 1
}

// addSortKey 记录实例 idx 的排序键，键相同时扩展上一段。
func (b *Bucket) addSortKey(key float64, idx int) {
	if n := len(b.SortKeyRanges); n > 0 && b.SortKeyRanges[n-1].SortKey == key && b.SortKeyRanges[n-1].End == idx {
		b.SortKeyRanges[n-1].End = idx + 1
		return
	}
	b.SortKeyRanges = append(b.SortKeyRanges, SortKeyRange{SortKey: key, Start: idx, End: idx + 1})
}

// addDebugVertices 为碰撞图元生成调试轮廓。
func (b *Bucket) addDebugVertices(r IndexRange) {
	for i := r.Start; i < r.End; i++ {
		p := b.CollisionBoxes[i]
		corners := [4]orb.Point{
			{p.AnchorX + p.X1, p.AnchorY + p.Y1},
			{p.AnchorX + p.X2, p.AnchorY + p.Y1},
			{p.AnchorX + p.X2, p.AnchorY + p.Y2},
			{p.AnchorX + p.X1, p.AnchorY + p.Y2},
		}
		for _, c := range corners {
			b.DebugVertices = append(b.DebugVertices, DebugVertex{X: c[0], Y: c[1], Kind: p.Kind, Primitive: i})
		}
	}
}
