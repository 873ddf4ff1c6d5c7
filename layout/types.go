package layout

import (
	"strings"

	"github.com/paulmach/orb"

	"github.com/ByLCY/symlayout/style"
)

const (
	// DefaultExtent 是瓦片坐标的取值范围 [0, DefaultExtent)。
	DefaultExtent = 8192
	// DefaultTileSize 是瓦片的逻辑像素边长，Extent/TileSize 即 tilePixelRatio。
	DefaultTileSize = 512
	// OneEm 是字形度量所用的字号（像素）。
	OneEm = style.OneEm

	SizePackFactor   = 128
	MaxGlyphIconSize = 255
	MaxPackedSize    = MaxGlyphIconSize * SizePackFactor
	MaxGlyphs        = 65535

	MinCollisionCircleDiameter = 10.0

	// BaselineOffset 修正径向偏移时文字基线相对 em 框的位置。
	BaselineOffset = 7.0

	shapingDefaultOffset = -17.0
	glyphPBFBorder       = 3.0
)

// GeometryKind 标识几何变体。
type GeometryKind uint8

const (
	GeometryPoint GeometryKind = iota + 1
	GeometryLine
	GeometryPolygon
)

func (k GeometryKind) String() string {
	switch k {
	case GeometryPoint:
		return "Point"
	case GeometryLine:
		return "LineString"
	case GeometryPolygon:
		return "Polygon"
	default:
		return "Unknown"
	}
}

// Geometry 是封闭的几何联合体：PointGeometry、LineGeometry、PolygonGeometry。
// 每个变体通过 accept 分派到对应的处理器。
type Geometry interface {
	Kind() GeometryKind
	accept(v geometryVisitor)
}

type geometryVisitor interface {
	visitPoints(PointGeometry)
	visitLines(LineGeometry)
	visitPolygon(PolygonGeometry)
}

// PointGeometry 是瓦片坐标下的点集。
type PointGeometry []orb.Point

// LineGeometry 是瓦片坐标下的折线集合。
type LineGeometry []orb.LineString

// PolygonGeometry 是解码后的扁平环列表，外环/洞由绕向决定。
type PolygonGeometry []orb.Ring

func (PointGeometry) Kind() GeometryKind   { return GeometryPoint }
func (LineGeometry) Kind() GeometryKind    { return GeometryLine }
func (PolygonGeometry) Kind() GeometryKind { return GeometryPolygon }

func (g PointGeometry) accept(v geometryVisitor)   { v.visitPoints(g) }
func (g LineGeometry) accept(v geometryVisitor)    { v.visitLines(g) }
func (g PolygonGeometry) accept(v geometryVisitor) { v.visitPolygon(g) }

// Section 是富文本的一段：文字或内联图像。
type Section struct {
	Text      string  `json:"text,omitempty"`
	Image     string  `json:"image,omitempty"`
	Scale     float64 `json:"scale"`
	FontStack string  `json:"fontStack,omitempty"`
}

// Formatted 是求值后的 text-field 内容。
type Formatted struct {
	Sections []Section `json:"sections"`
}

// PlainText 构造单段文本。
func PlainText(text, fontStack string) Formatted {
	return Formatted{Sections: []Section{{Text: text, Scale: 1, FontStack: fontStack}}}
}

// String 返回拼接后的可见文本。
func (f Formatted) String() string {
	var b strings.Builder
	for _, s := range f.Sections {
		b.WriteString(s.Text)
	}
	return b.String()
}

// IsEmpty 报告是否既无文字也无内联图像。
func (f Formatted) IsEmpty() bool {
	for _, s := range f.Sections {
		if s.Text != "" || s.Image != "" {
			return false
		}
	}
	return true
}

// Feature 是一个已解码、已求值的瓦片要素。
type Feature struct {
	Index            int            `json:"index"`
	SourceLayerIndex int            `json:"sourceLayerIndex"`
	ID               any            `json:"id,omitempty"`
	Geometry         Geometry       `json:"-"`
	Props            map[string]any `json:"properties,omitempty"`
	Text             Opt[Formatted] `json:"text"`
	Icon             Opt[string]    `json:"icon"`
	SortKey          Opt[float64]   `json:"sortKey"`
}

// Properties 满足 style.Feature。
func (f *Feature) Properties() map[string]any { return f.Props }

// Anchor 是候选放置点，只在单个要素处理期间存在。
type Anchor struct {
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Z       float64  `json:"z"`
	Angle   float64  `json:"angle"` // 弧度
	Segment Opt[int] `json:"segment"`
}

// Point 返回平面坐标。
func (a Anchor) Point() orb.Point { return orb.Point{a.X, a.Y} }

// Point3 是投影后的碰撞空间坐标。
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// WritingMode 是书写方向位掩码。
type WritingMode uint8

const (
	WritingModeNone       WritingMode = 0
	WritingModeHorizontal WritingMode = 1
	WritingModeVertical   WritingMode = 2
	// WritingModeHorizontalOnly 表示没有竖排变体的横排文字。
	WritingModeHorizontalOnly = WritingModeHorizontal | WritingModeVertical
)

// TextAnchor 对应 text-anchor / icon-anchor 取值。
type TextAnchor string

const (
	AnchorCenter      TextAnchor = "center"
	AnchorLeft        TextAnchor = "left"
	AnchorRight       TextAnchor = "right"
	AnchorTop         TextAnchor = "top"
	AnchorBottom      TextAnchor = "bottom"
	AnchorTopLeft     TextAnchor = "top-left"
	AnchorTopRight    TextAnchor = "top-right"
	AnchorBottomLeft  TextAnchor = "bottom-left"
	AnchorBottomRight TextAnchor = "bottom-right"
)

// Justification 对应 text-justify。
type Justification string

const (
	JustifyLeft   Justification = "left"
	JustifyCenter Justification = "center"
	JustifyRight  Justification = "right"
	JustifyAuto   Justification = "auto"
)

// GlyphMetrics 以 OneEm 字号下的像素表示。
type GlyphMetrics struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Advance float64 `json:"advance"`
}

// Rect 是图集中的矩形（像素）。
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PositionedGlyph 是排版后的一个字形。
type PositionedGlyph struct {
	Rune         rune         `json:"rune"`
	X            float64      `json:"x"`
	Y            float64      `json:"y"`
	Vertical     bool         `json:"vertical"`
	Scale        float64      `json:"scale"`
	FontStack    string       `json:"fontStack,omitempty"`
	SectionIndex int          `json:"sectionIndex"`
	Metrics      GlyphMetrics `json:"metrics"`
	Rect         Rect         `json:"rect"`
	ImageName    string       `json:"imageName,omitempty"`
}

// PositionedLine 是一行字形。
type PositionedLine struct {
	Glyphs     []PositionedGlyph `json:"glyphs"`
	LineOffset float64           `json:"lineOffset"`
}

// Padding 是四向的碰撞内边距，正值向内收缩。
type Padding struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Bounds 是形状相对锚点的外框，单位为 em 像素（文字）或图标像素。
type Bounds struct {
	Top, Bottom, Left, Right float64
	Padding                  *Padding
}

// Shaping 是文字排版结果，与放置位置无关。
type Shaping struct {
	Lines            []PositionedLine `json:"lines"`
	Top              float64          `json:"top"`
	Bottom           float64          `json:"bottom"`
	Left             float64          `json:"left"`
	Right            float64          `json:"right"`
	WritingMode      WritingMode      `json:"writingMode"`
	Text             string           `json:"text"`
	IconsInText      bool             `json:"iconsInText"`
	Verticalizable   bool             `json:"verticalizable"`
	CollisionPadding *Padding         `json:"collisionPadding,omitempty"`
}

// Bounds 返回排版外框。
func (s *Shaping) Bounds() Bounds {
	return Bounds{Top: s.Top, Bottom: s.Bottom, Left: s.Left, Right: s.Right, Padding: s.CollisionPadding}
}

// GlyphCount 返回字形总数。
func (s *Shaping) GlyphCount() int {
	n := 0
	for _, l := range s.Lines {
		n += len(l.Glyphs)
	}
	return n
}

// PositionedIcon 是图标的排版结果。
type PositionedIcon struct {
	Image            style.Image `json:"image"`
	Top              float64     `json:"top"`
	Bottom           float64     `json:"bottom"`
	Left             float64     `json:"left"`
	Right            float64     `json:"right"`
	CollisionPadding *Padding    `json:"collisionPadding,omitempty"`
}

// Bounds 返回图标外框。
func (p *PositionedIcon) Bounds() Bounds {
	return Bounds{Top: p.Top, Bottom: p.Bottom, Left: p.Left, Right: p.Right, Padding: p.CollisionPadding}
}

// ImageMap 是可用图标的目录。
type ImageMap map[string]style.Image

// PrimitiveKind 区分碰撞盒与碰撞圆。
type PrimitiveKind uint8

const (
	PrimitiveBox PrimitiveKind = iota + 1
	PrimitiveCircle
)

// CollisionPrimitive 是交给运行时碰撞检测的图元。坐标为相对锚点的瓦片单位。
type CollisionPrimitive struct {
	Kind             PrimitiveKind `json:"kind"`
	AnchorX          float64       `json:"anchorX"`
	AnchorY          float64       `json:"anchorY"`
	Projected        Point3        `json:"projected"`
	X1               float64       `json:"x1"`
	Y1               float64       `json:"y1"`
	X2               float64       `json:"x2"`
	Y2               float64       `json:"y2"`
	Padding          float64       `json:"padding"`
	Diameter         float64       `json:"diameter,omitempty"`
	FeatureIndex     int           `json:"featureIndex"`
	SourceLayerIndex int           `json:"sourceLayerIndex"`
}

// LineVertex 是沿线放置时写入的折线顶点。
type LineVertex struct {
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	TileUnitDistance float64 `json:"tileUnitDistance"` // 到锚点的沿线距离
}

// PlacedText 按对齐方式与竖排记录文字的 placed symbol 下标。
type PlacedText struct {
	Right    Opt[int] `json:"right"`
	Center   Opt[int] `json:"center"`
	Left     Opt[int] `json:"left"`
	Vertical Opt[int] `json:"vertical"`
}

func (p *PlacedText) set(j Justification, idx int) {
	switch j {
	case JustifyRight:
		p.Right = Some(idx)
	case JustifyLeft:
		p.Left = Some(idx)
	default:
		p.Center = Some(idx)
	}
}

// AnchorOffset 是一个可变锚点及其解析后的文字偏移（像素）。
type AnchorOffset struct {
	Anchor TextAnchor `json:"anchor"`
	Offset [2]float64 `json:"offset"`
}

// SymbolInstance 是每个被接受锚点的最终记录，创建后不再修改。
type SymbolInstance struct {
	AnchorX   float64 `json:"anchorX"`
	AnchorY   float64 `json:"anchorY"`
	Projected Point3  `json:"projected"`

	PlacedText         PlacedText `json:"placedText"`
	PlacedIcon         Opt[int]   `json:"placedIcon"`
	PlacedVerticalIcon Opt[int]   `json:"placedVerticalIcon"`

	TextCollision         Opt[IndexRange] `json:"textCollision"`
	VerticalTextCollision Opt[IndexRange] `json:"verticalTextCollision"`
	IconCollision         Opt[IndexRange] `json:"iconCollision"`
	VerticalIconCollision Opt[IndexRange] `json:"verticalIconCollision"`

	Key uint64 `json:"key"`

	TextVertexCount         int `json:"textVertexCount"`
	VerticalTextVertexCount int `json:"verticalTextVertexCount"`
	IconVertexCount         int `json:"iconVertexCount"`
	VerticalIconVertexCount int `json:"verticalIconVertexCount"`

	CollisionCircleDiameter    float64 `json:"collisionCircleDiameter"`
	UseRuntimeCollisionCircles bool    `json:"useRuntimeCollisionCircles"`
	HasIconTextFit             bool    `json:"hasIconTextFit"`

	TextBoxScale          float64        `json:"textBoxScale"`
	TextOffset            [2]float64     `json:"textOffset"`
	RadialTextOffset      Opt[float64]   `json:"radialTextOffset"`
	VariableAnchorOffsets []AnchorOffset `json:"variableAnchorOffsets,omitempty"`
	WritingModes          WritingMode    `json:"writingModes"`

	FeatureIndex int          `json:"featureIndex"`
	SortKey      Opt[float64] `json:"sortKey"`
}
