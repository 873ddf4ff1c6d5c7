package layout

import "github.com/paulmach/orb/maptile"

// BuildOptions 配置一次布局任务所需的依赖与参数。
type BuildOptions struct {
	Shaper TextShaper
	Images ImageMap

	Tile       maptile.Tile
	Zoom       float64 // 桶的缩放级别，为 0 时取 Tile.Z
	Extent     int
	TileSize   int
	ClipBuffer float64
	// Overscaling 是瓦片被放大使用时的倍数，影响 tilePixelRatio。
	Overscaling float64
	// PixelRatio 是设备像素比，图标像素比与之不同时需要线性采样。
	PixelRatio float64
	// ScaleFactor 是用户的字号缩放，按图层的 *-size-scale-range 钳制。
	ScaleFactor float64
	// PolePrecision 是多边形不可达极点的精度（瓦片单位）。
	PolePrecision float64

	Projection Projection
	Debug      DebugOptions
}

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	CollisionBoxes bool // 为碰撞图元生成调试顶点
}

// TextShaper 把富文本排成 Shaping。没有可用字形时返回 false，不返回错误。
type TextShaper interface {
	ShapeText(text Formatted, params ShapingParams) (*Shaping, bool)
}

// ShapingParams 是排版参数，长度单位为 OneEm 字号下的像素。
type ShapingParams struct {
	FontStack     string
	MaxWidth      float64 // 0 表示不换行
	LineHeight    float64
	Anchor        TextAnchor
	Justify       Justification
	LetterSpacing float64
	Translate     [2]float64
	WritingMode   WritingMode
	Verticalize   bool // 允许竖排时，标记可竖排的横排结果
	Images        ImageMap
}

// Projection 把瓦片坐标映射到碰撞空间。
type Projection interface {
	Project(x, y float64, tile maptile.Tile) Point3
}

// Mercator 是平面投影，碰撞空间与瓦片坐标一致。
type Mercator struct{}

func (Mercator) Project(x, y float64, _ maptile.Tile) Point3 { return Point3{X: x, Y: y} }

// ElevatedProjection 在平面坐标上叠加地形高度。
type ElevatedProjection struct {
	Elevation func(x, y float64, tile maptile.Tile) float64
}

func (p ElevatedProjection) Project(x, y float64, tile maptile.Tile) Point3 {
	pt := Point3{X: x, Y: y}
	if p.Elevation != nil {
		pt.Z = p.Elevation(x, y, tile)
	}
	return pt
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.Extent <= 0 {
		o.Extent = DefaultExtent
	}
	if o.TileSize <= 0 {
		o.TileSize = DefaultTileSize
	}
	if o.Overscaling <= 0 {
		o.Overscaling = 1
	}
	if o.PixelRatio <= 0 {
		o.PixelRatio = 1
	}
	if o.ScaleFactor <= 0 {
		o.ScaleFactor = 1
	}
	if o.PolePrecision <= 0 {
		o.PolePrecision = 2
	}
	if o.Zoom == 0 {
		o.Zoom = float64(o.Tile.Z)
	}
	if o.Projection == nil {
		o.Projection = Mercator{}
	}
	return o
}

// tilePixelRatio 是一个逻辑像素对应的瓦片单位数。
func (o BuildOptions) tilePixelRatio() float64 {
	return float64(o.Extent) / (float64(o.TileSize) * o.Overscaling)
}
