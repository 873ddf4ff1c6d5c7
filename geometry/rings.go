package geometry

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ClassifyRings 将扁平的环列表按绕向分组为多边形：与第一个有效环同向的是外环，反向的是洞。
// 面积为 0 的环被丢弃。maxRings > 1 时每个多边形只保留外环和面积最大的洞。
func ClassifyRings(rings []orb.Ring, maxRings int) []orb.Polygon {
	if len(rings) <= 1 {
		if len(rings) == 1 && rings[0].Orientation() != 0 {
			return []orb.Polygon{{rings[0]}}
		}
		return nil
	}

	var (
		polygons []orb.Polygon
		current  orb.Polygon
		outer    orb.Orientation
	)
	for _, ring := range rings {
		o := ring.Orientation()
		if o == 0 {
			continue
		}
		if outer == 0 {
			outer = o
		}
		if o == outer {
			if current != nil {
				polygons = append(polygons, current)
			}
			current = orb.Polygon{ring}
		} else if current != nil {
			current = append(current, ring)
		}
	}
	if current != nil {
		polygons = append(polygons, current)
	}

	if maxRings > 1 {
		for i, poly := range polygons {
			if len(poly) <= maxRings {
				continue
			}
			holes := append([]orb.Ring(nil), poly[1:]...)
			sort.SliceStable(holes, func(a, b int) bool {
				return math.Abs(planar.Area(holes[a])) > math.Abs(planar.Area(holes[b]))
			})
			polygons[i] = append(orb.Polygon{poly[0]}, holes[:maxRings-1]...)
		}
	}
	return polygons
}
