package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func square(x0, y0, size float64, ccw bool) orb.Ring {
	r := orb.Ring{{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0}}
	if !ccw {
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
	}
	return r
}

func TestClipLinesKeepsOrderAndSplits(t *testing.T) {
	bound := TileBound(100, 0)
	line := orb.LineString{{-50, 50}, {50, 50}, {150, 50}}
	got := ClipLines([]orb.LineString{line}, bound)
	if len(got) != 1 {
		t.Fatalf("expected 1 clipped line, got %d", len(got))
	}
	if got[0][0] != (orb.Point{0, 50}) || got[0][len(got[0])-1] != (orb.Point{100, 50}) {
		t.Fatalf("unexpected clipped endpoints: %v", got[0])
	}
	if !OnBoundary(got[0][0], bound) {
		t.Fatalf("clipped start should lie on boundary")
	}

	zigzag := orb.LineString{{10, 10}, {10, 200}, {20, 200}, {20, 10}}
	parts := ClipLines([]orb.LineString{zigzag}, bound)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0][0] != (orb.Point{10, 10}) {
		t.Fatalf("first part should start at original first vertex: %v", parts[0])
	}
}

func TestClipLinesDropsOutside(t *testing.T) {
	bound := TileBound(100, 10)
	got := ClipLines([]orb.LineString{{{200, 200}, {300, 300}}}, bound)
	if len(got) != 0 {
		t.Fatalf("expected no output, got %v", got)
	}
}

func TestClassifyRings(t *testing.T) {
	outer := square(0, 0, 100, true)
	hole := square(40, 40, 10, false)
	second := square(200, 200, 50, true)
	degenerate := orb.Ring{{5, 5}, {5, 5}, {5, 5}}

	polys := ClassifyRings([]orb.Ring{outer, hole, degenerate, second}, 0)
	if len(polys) != 2 {
		t.Fatalf("expected 2 polygons, got %d", len(polys))
	}
	if len(polys[0]) != 2 || len(polys[1]) != 1 {
		t.Fatalf("unexpected ring grouping: %d / %d", len(polys[0]), len(polys[1]))
	}
}

func TestClassifyRingsMaxRings(t *testing.T) {
	outer := square(0, 0, 100, true)
	small := square(10, 10, 5, false)
	big := square(40, 40, 20, false)
	polys := ClassifyRings([]orb.Ring{outer, small, big}, 2)
	if len(polys) != 1 || len(polys[0]) != 2 {
		t.Fatalf("expected outer plus one hole, got %v", polys)
	}
	if polys[0][1][0] != big[0] {
		t.Fatalf("largest hole should be kept")
	}
}

func TestPoleOfInaccessibility(t *testing.T) {
	poly := orb.Polygon{square(0, 0, 100, true)}
	p := PoleOfInaccessibility(poly, 2)
	if math.Abs(p[0]-50) > 2 || math.Abs(p[1]-50) > 2 {
		t.Fatalf("pole of square should be near center, got %v", p)
	}

	// L 形：极点应落在较宽的一臂内，而不是凹角处的质心附近。
	l := orb.Polygon{{{0, 0}, {100, 0}, {100, 30}, {30, 30}, {30, 100}, {0, 100}, {0, 0}}}
	p = PoleOfInaccessibility(l, 1)
	if pointToPolygonDist(p[0], p[1], l) < 14 {
		t.Fatalf("pole too close to boundary: %v", p)
	}
}

func TestPoleOfInaccessibilityDegenerate(t *testing.T) {
	line := orb.Polygon{{{10, 10}, {20, 10}, {10, 10}}}
	p := PoleOfInaccessibility(line, 2)
	if p != (orb.Point{10, 10}) {
		t.Fatalf("degenerate polygon should return bbox min, got %v", p)
	}
}
