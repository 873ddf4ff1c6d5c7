// Package geometry 提供瓦片坐标下的几何工具：裁剪、环分类与不可达极点。
package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

// TileBound 返回扩展了 buffer 的瓦片矩形。
func TileBound(extent, buffer float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{-buffer, -buffer},
		Max: orb.Point{extent + buffer, extent + buffer},
	}
}

// ClipLines 将折线裁剪到 bound 内。保留各段内点的顺序，交点取整到瓦片整数坐标。
func ClipLines(lines []orb.LineString, bound orb.Bound) []orb.LineString {
	var out []orb.LineString
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		if len(line) == 1 {
			if bound.Contains(line[0]) {
				out = append(out, orb.LineString{line[0]})
			}
			continue
		}
		for _, part := range clip.LineString(bound, line) {
			if len(part) == 0 {
				continue
			}
			clipped := make(orb.LineString, len(part))
			for i, p := range part {
				clipped[i] = orb.Point{math.Round(p[0]), math.Round(p[1])}
			}
			out = append(out, clipped)
		}
	}
	return out
}

// OnBoundary 报告 p 是否落在 bound 的边上，用于判断折线是否在相邻瓦片中延续。
func OnBoundary(p orb.Point, bound orb.Bound) bool {
	return p[0] == bound.Min[0] || p[0] == bound.Max[0] || p[1] == bound.Min[1] || p[1] == bound.Max[1]
}
