package layout

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/ByLCY/symlayout/geometry"
	"github.com/ByLCY/symlayout/style"
)

// placedAnchor 是一个候选锚点及其所在折线（点锚点没有折线）。
type placedAnchor struct {
	anchor Anchor
	line   orb.LineString
}

// anchorParams 是生成锚点所需的图层与排版参数，长度单位为瓦片单位。
type anchorParams struct {
	placement   style.Placement
	spacing     float64
	maxAngle    float64 // 弧度
	labelLength float64 // 标签宽度（排版像素），取文字与图标中的较大者
	hasText     bool
	glyphSize   float64
	boxScale    float64
	overscaling float64
	extent      float64
	clipBuffer  float64
	precision   float64
}

// anchorPlacer 按几何变体分派锚点生成，每个要素一个实例。
type anchorPlacer struct {
	p       anchorParams
	anchors []placedAnchor
}

func placeAnchors(g Geometry, p anchorParams) []placedAnchor {
	if g == nil {
		return nil
	}
	ap := &anchorPlacer{p: p}
	g.accept(ap)
	out := ap.anchors[:0]
	for _, a := range ap.anchors {
		if a.anchor.X < 0 || a.anchor.X >= p.extent || a.anchor.Y < 0 || a.anchor.Y >= p.extent {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (ap *anchorPlacer) add(a Anchor, line orb.LineString) {
	ap.anchors = append(ap.anchors, placedAnchor{anchor: a, line: line})
}

func (ap *anchorPlacer) visitPoints(points PointGeometry) {
	for _, pt := range points {
		ap.add(Anchor{X: pt[0], Y: pt[1]}, nil)
	}
}

func (ap *anchorPlacer) visitLines(lines LineGeometry) {
	ap.placeLines([]orb.LineString(lines))
}

func (ap *anchorPlacer) visitPolygon(rings PolygonGeometry) {
	if ap.p.placement == style.PlacementPoint {
		for _, poly := range geometry.ClassifyRings([]orb.Ring(rings), 0) {
			poi := geometry.PoleOfInaccessibility(poly, ap.p.precision)
			ap.add(Anchor{X: poi[0], Y: poi[1]}, nil)
		}
		return
	}
	lines := make([]orb.LineString, 0, len(rings))
	for _, r := range rings {
		line := orb.LineString(r)
		if len(line) > 1 && line[0].Equal(line[len(line)-1]) {
			line = line[:len(line)-1]
		}
		lines = append(lines, line)
	}
	ap.placeLines(lines)
}

func (ap *anchorPlacer) placeLines(lines []orb.LineString) {
	p := ap.p
	switch {
	case p.placement == style.PlacementLine:
		bound := geometry.TileBound(p.extent, p.clipBuffer)
		for _, line := range geometry.ClipLines(lines, bound) {
			for _, a := range getAnchors(line, bound, p) {
				ap.add(a, line)
			}
		}
	case p.placement == style.PlacementLineCenter:
		for _, line := range lines {
			if len(line) < 2 {
				continue
			}
			if a, ok := getCenterAnchor(line, p); ok {
				ap.add(a, line)
			}
		}
	case p.placement.IsVertexFamily():
		for _, line := range lines {
			for _, i := range selectVertices(p.placement, len(line)) {
				ap.add(vertexAnchor(line, i), line)
			}
		}
	default:
		for _, line := range lines {
			if len(line) == 0 {
				continue
			}
			ap.add(Anchor{X: line[0][0], Y: line[0][1]}, nil)
		}
	}
}

// selectVertices 返回顶点族放置模式选中的顶点下标，按顶点顺序。
func selectVertices(mode style.Placement, n int) []int {
	if n == 0 {
		return nil
	}
	var idx []int
	switch mode {
	case style.PlacementVertex:
		for i := 0; i < n; i++ {
			idx = append(idx, i)
		}
	case style.PlacementFirstVertex:
		idx = []int{0}
	case style.PlacementLastVertex:
		idx = []int{n - 1}
	case style.PlacementFirstLastVertex:
		idx = []int{0}
		if n > 1 {
			idx = append(idx, n-1)
		}
	case style.PlacementExceptFirstVertex:
		for i := 1; i < n; i++ {
			idx = append(idx, i)
		}
	case style.PlacementExceptLastVertex:
		for i := 0; i < n-1; i++ {
			idx = append(idx, i)
		}
	case style.PlacementMiddleVertex:
		for i := 1; i < n-1; i++ {
			idx = append(idx, i)
		}
	}
	return idx
}

// vertexAnchor 在第 i 个顶点上建锚点，角度取相邻线段方向。
func vertexAnchor(line orb.LineString, i int) Anchor {
	a := Anchor{X: line[i][0], Y: line[i][1]}
	if len(line) < 2 {
		return a
	}
	seg := min(i, len(line)-2)
	from, to := line[seg], line[seg+1]
	a.Angle = math.Atan2(to[1]-from[1], to[0]-from[0])
	a.Segment = Some(seg)
	return a
}

func angleWindowSize(p anchorParams) float64 {
	if !p.hasText {
		return 0
	}
	return 3.0 / 5.0 * p.glyphSize * p.boxScale
}

func lineLength(line orb.LineString) float64 {
	total := 0.0
	for i := 0; i+1 < len(line); i++ {
		total += planar.Distance(line[i], line[i+1])
	}
	return total
}

// getAnchors 沿折线按间距生成锚点。bound 是裁剪矩形，起点落在其边上的折线
// 视为从相邻瓦片延续而来。
func getAnchors(line orb.LineString, bound orb.Bound, p anchorParams) []Anchor {
	if len(line) == 0 {
		return nil
	}
	windowSize := angleWindowSize(p)
	labelLength := p.labelLength * p.boxScale

	continued := geometry.OnBoundary(line[0], bound)

	spacing := p.spacing
	if spacing-labelLength < spacing/4 {
		spacing = labelLength + spacing/4
	}
	if spacing <= 0 {
		return nil
	}

	fixedExtraOffset := p.glyphSize * 2
	var offset float64
	if continued {
		offset = math.Mod(spacing/2*p.overscaling, spacing)
	} else {
		offset = math.Mod((p.labelLength/2+fixedExtraOffset)*p.boxScale*p.overscaling, spacing)
	}
	return resample(line, offset, spacing, windowSize, p.maxAngle, labelLength, continued, false, p.extent)
}

func resample(line orb.LineString, offset, spacing, windowSize, maxAngle, labelLength float64, continued, placeAtMiddle bool, extent float64) []Anchor {
	halfLabelLength := labelLength / 2
	total := lineLength(line)

	distance := 0.0
	marked := offset - spacing
	var anchors []Anchor
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		segmentDist := planar.Distance(a, b)
		angle := math.Atan2(b[1]-a[1], b[0]-a[0])

		for marked+spacing < distance+segmentDist {
			marked += spacing
			t := (marked - distance) / segmentDist
			x := a[0] + (b[0]-a[0])*t
			y := a[1] + (b[1]-a[1])*t
			if x >= 0 && x < extent && y >= 0 && y < extent &&
				marked-halfLabelLength >= 0 && marked+halfLabelLength <= total {
				anchor := Anchor{X: math.Round(x), Y: math.Round(y), Angle: angle, Segment: Some(i)}
				if windowSize == 0 || checkMaxAngle(line, anchor, labelLength, windowSize, maxAngle) {
					anchors = append(anchors, anchor)
				}
			}
		}
		distance += segmentDist
	}

	if !placeAtMiddle && len(anchors) == 0 && !continued {
		// 太短的线在中点放一个锚点。
		anchors = resample(line, distance/2, spacing, windowSize, maxAngle, labelLength, continued, true, extent)
	}
	return anchors
}

// getCenterAnchor 在折线长度的一半处放置锚点。
func getCenterAnchor(line orb.LineString, p anchorParams) (Anchor, bool) {
	windowSize := angleWindowSize(p)
	labelLength := p.labelLength * p.boxScale
	center := lineLength(line) / 2

	prev := 0.0
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		segmentDist := planar.Distance(a, b)
		if prev+segmentDist > center {
			t := (center - prev) / segmentDist
			anchor := Anchor{
				X:       math.Round(a[0] + (b[0]-a[0])*t),
				Y:       math.Round(a[1] + (b[1]-a[1])*t),
				Angle:   math.Atan2(b[1]-a[1], b[0]-a[0]),
				Segment: Some(i),
			}
			if windowSize == 0 || checkMaxAngle(line, anchor, labelLength, windowSize, p.maxAngle) {
				return anchor, true
			}
			return Anchor{}, false
		}
		prev += segmentDist
	}
	return Anchor{}, false
}

type corner struct {
	distance   float64
	angleDelta float64
}

// checkMaxAngle 检查标签覆盖范围内任意 windowSize 窗口的累计转角不超过 maxAngle。
func checkMaxAngle(line orb.LineString, anchor Anchor, labelLength, windowSize, maxAngle float64) bool {
	seg, ok := anchor.Segment.Get()
	if !ok {
		return true
	}
	p := anchor.Point()
	index := seg + 1
	anchorDistance := 0.0

	for anchorDistance > -labelLength/2 {
		index--
		if index < 0 {
			return false
		}
		anchorDistance -= planar.Distance(line[index], p)
		p = line[index]
	}
	anchorDistance += planar.Distance(line[index], line[index+1])
	index++

	var recent []corner
	recentAngleDelta := 0.0
	for anchorDistance < labelLength/2 {
		if index+1 >= len(line) {
			return false
		}
		prev, current, next := line[index-1], line[index], line[index+1]
		delta := math.Atan2(prev[1]-current[1], prev[0]-current[0]) - math.Atan2(current[1]-next[1], current[0]-next[0])
		delta = math.Abs(math.Mod(delta+3*math.Pi, 2*math.Pi) - math.Pi)

		recent = append(recent, corner{distance: anchorDistance, angleDelta: delta})
		recentAngleDelta += delta
		for len(recent) > 0 && anchorDistance-recent[0].distance > windowSize {
			recentAngleDelta -= recent[0].angleDelta
			recent = recent[1:]
		}
		if recentAngleDelta > maxAngle {
			return false
		}
		index++
		anchorDistance += planar.Distance(current, next)
	}
	return true
}

// textRegistry 记录本次构建中每段文字已放置的锚点，用于沿线去重。
type textRegistry map[string][]orb.Point

// tooClose 报告 text 在 repeatDistance 内是否已有锚点；不近时登记该锚点。
func (r textRegistry) tooClose(text string, repeatDistance float64, a Anchor) bool {
	pt := a.Point()
	for _, other := range r[text] {
		if planar.Distance(pt, other) < repeatDistance {
			return true
		}
	}
	r[text] = append(r[text], pt)
	return false
}
