// Package source 把 GeoJSON 要素集合转换为 layout.Feature。
package source

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"

	"github.com/ByLCY/symlayout/layout"
)

// Options 控制坐标解释方式。
type Options struct {
	// LonLat 为 true 时坐标是 WGS84 经纬度，按 Tile 投影到瓦片坐标；
	// 否则坐标已经是瓦片坐标，原样使用。
	LonLat           bool
	Tile             maptile.Tile
	Extent           int
	SourceLayerIndex int
}

// Load 读取 path 处的 GeoJSON 文件。
func Load(path string, opts Options) ([]layout.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取要素文件失败: %w", err)
	}
	return Decode(data, opts)
}

// Decode 解析 FeatureCollection。要素下标按输入顺序分配；
// 没有几何或几何类型不支持的要素被跳过，但仍占用下标。
func Decode(data []byte, opts Options) ([]layout.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("解析 GeoJSON 失败: %w", err)
	}
	if opts.Extent <= 0 {
		opts.Extent = layout.DefaultExtent
	}
	var toTile orb.Projection
	if opts.LonLat {
		toTile = tileProjection(opts.Tile, float64(opts.Extent))
	}

	features := make([]layout.Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		g := f.Geometry
		if toTile != nil {
			g = project.Geometry(orb.Clone(g), toTile)
		}
		geom, ok := convert(g)
		if !ok {
			layout.Logger().Warn("跳过不支持的几何类型", "index", i, "type", f.Geometry.GeoJSONType())
			continue
		}
		features = append(features, layout.Feature{
			Index:            i,
			SourceLayerIndex: opts.SourceLayerIndex,
			ID:               f.ID,
			Geometry:         geom,
			Props:            f.Properties,
		})
	}
	return features, nil
}

// tileProjection 把经纬度投影为 Web 墨卡托，再线性映射到瓦片坐标，y 轴向下。
func tileProjection(tile maptile.Tile, extent float64) orb.Projection {
	b := tile.Bound()
	lo := project.WGS84.ToMercator(b.Min)
	hi := project.WGS84.ToMercator(b.Max)
	w, h := hi.X()-lo.X(), hi.Y()-lo.Y()
	return func(p orb.Point) orb.Point {
		m := project.WGS84.ToMercator(p)
		return orb.Point{
			(m.X() - lo.X()) / w * extent,
			(hi.Y() - m.Y()) / h * extent,
		}
	}
}

func convert(g orb.Geometry) (layout.Geometry, bool) {
	switch g := g.(type) {
	case orb.Point:
		return layout.PointGeometry{g}, true
	case orb.MultiPoint:
		return layout.PointGeometry(g), true
	case orb.LineString:
		return layout.LineGeometry{g}, true
	case orb.MultiLineString:
		return layout.LineGeometry(g), true
	case orb.Ring:
		return layout.PolygonGeometry{g}, true
	case orb.Polygon:
		return layout.PolygonGeometry(g), true
	case orb.MultiPolygon:
		var rings layout.PolygonGeometry
		for _, p := range g {
			rings = append(rings, p...)
		}
		return rings, true
	}
	return nil, false
}
