package geometry

import (
	"container/heap"
	"math"

	"github.com/paulmach/orb"
)

// PoleOfInaccessibility 返回多边形内离边界最远的点（精度 precision，瓦片单位）。
// 第一个环为外环，其余为洞。
func PoleOfInaccessibility(poly orb.Polygon, precision float64) orb.Point {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return orb.Point{}
	}
	if precision <= 0 {
		precision = 1
	}
	b := poly[0].Bound()
	width := b.Max[0] - b.Min[0]
	height := b.Max[1] - b.Min[1]
	cellSize := math.Min(width, height)
	if cellSize == 0 {
		return b.Min
	}
	h := cellSize / 2

	queue := &cellQueue{}
	for x := b.Min[0]; x < b.Max[0]; x += cellSize {
		for y := b.Min[1]; y < b.Max[1]; y += cellSize {
			heap.Push(queue, newCell(x+h, y+h, h, poly))
		}
	}

	best := centroidCell(poly)
	if bbox := newCell(b.Min[0]+width/2, b.Min[1]+height/2, 0, poly); bbox.d > best.d {
		best = bbox
	}

	for queue.Len() > 0 {
		c := heap.Pop(queue).(cell)
		if c.d > best.d {
			best = c
		}
		if c.max-best.d <= precision {
			continue
		}
		h = c.h / 2
		heap.Push(queue, newCell(c.x-h, c.y-h, h, poly))
		heap.Push(queue, newCell(c.x+h, c.y-h, h, poly))
		heap.Push(queue, newCell(c.x-h, c.y+h, h, poly))
		heap.Push(queue, newCell(c.x+h, c.y+h, h, poly))
	}
	return orb.Point{best.x, best.y}
}

type cell struct {
	x, y float64
	h    float64 // 半边长
	d    float64 // 中心到多边形的有符号距离
	max  float64 // 格内可能的最大距离
}

func newCell(x, y, h float64, poly orb.Polygon) cell {
	d := pointToPolygonDist(x, y, poly)
	return cell{x: x, y: y, h: h, d: d, max: d + h*math.Sqrt2}
}

func centroidCell(poly orb.Polygon) cell {
	ring := poly[0]
	var area, x, y float64
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		f := a[0]*b[1] - b[0]*a[1]
		x += (a[0] + b[0]) * f
		y += (a[1] + b[1]) * f
		area += f * 3
	}
	if area == 0 {
		return newCell(ring[0][0], ring[0][1], 0, poly)
	}
	return newCell(x/area, y/area, 0, poly)
}

// pointToPolygonDist 在多边形内为正，外为负。
func pointToPolygonDist(x, y float64, poly orb.Polygon) float64 {
	inside := false
	minDistSq := math.Inf(1)
	for _, ring := range poly {
		for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
			a, b := ring[i], ring[j]
			if (a[1] > y) != (b[1] > y) && x < (b[0]-a[0])*(y-a[1])/(b[1]-a[1])+a[0] {
				inside = !inside
			}
			minDistSq = math.Min(minDistSq, segDistSq(x, y, a, b))
		}
	}
	if minDistSq == 0 {
		return 0
	}
	d := math.Sqrt(minDistSq)
	if !inside {
		return -d
	}
	return d
}

func segDistSq(px, py float64, a, b orb.Point) float64 {
	x, y := a[0], a[1]
	dx, dy := b[0]-x, b[1]-y
	if dx != 0 || dy != 0 {
		t := ((px-x)*dx + (py-y)*dy) / (dx*dx + dy*dy)
		if t > 1 {
			x, y = b[0], b[1]
		} else if t > 0 {
			x += dx * t
			y += dy * t
		}
	}
	dx, dy = px-x, py-y
	return dx*dx + dy*dy
}

// cellQueue 是按 max 排序的大顶堆。
type cellQueue []cell

func (q cellQueue) Len() int { return len(q) }
func (q cellQueue) Less(i, j int) bool { return q[i].max > q[j].max }
func (q cellQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *cellQueue) Push(x any) { *q = append(*q, x.(cell)) }
func (q *cellQueue) Pop() any {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}
