package layout

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/ByLCY/symlayout/style"
)

// stubGlyphs 是等宽字形源：空格 6px，其余字符 12px。
type stubGlyphs struct{}

func (stubGlyphs) Glyph(_ string, r rune) (GlyphMetrics, bool) {
	if r == ' ' {
		return GlyphMetrics{Advance: 6}, true
	}
	return GlyphMetrics{Width: 10, Height: 18, Left: 1, Top: -4, Advance: 12}, true
}

// countingShaper 统计排版调用次数。
type countingShaper struct {
	inner TextShaper
	calls int
}

func (c *countingShaper) ShapeText(text Formatted, p ShapingParams) (*Shaping, bool) {
	c.calls++
	return c.inner.ShapeText(text, p)
}

func textLayer(id string, placement style.Placement, text string) *style.SymbolLayer {
	layer := style.NewSymbolLayer(id)
	layer.Layout.SymbolPlacement = placement
	layer.Layout.TextField = style.Constant(text)
	return layer
}

func buildBucket(t *testing.T, layer *style.SymbolLayer, features []Feature, opts BuildOptions) *Bucket {
	t.Helper()
	if opts.Shaper == nil {
		opts.Shaper = NewGlyphShaper(stubGlyphs{})
	}
	bucket, err := Build(context.Background(), layer, features, opts)
	if err != nil {
		t.Fatalf("布局失败: %v", err)
	}
	return bucket
}

func pointFeature(idx int, pts ...orb.Point) Feature {
	return Feature{Index: idx, Geometry: PointGeometry(pts)}
}

func lineFeature(idx int, pts ...orb.Point) Feature {
	return Feature{Index: idx, Geometry: LineGeometry{orb.LineString(pts)}}
}

func TestPointAnchorsInsideExtent(t *testing.T) {
	layer := textLayer("poi", style.PlacementPoint, "Cafe")
	f := pointFeature(0,
		orb.Point{100, 100},
		orb.Point{-5, 10},
		orb.Point{8192, 50},
		orb.Point{4000, 8191},
	)
	bucket := buildBucket(t, layer, []Feature{f}, BuildOptions{})
	if got := len(bucket.SymbolInstances); got != 2 {
		t.Fatalf("期望 2 个实例，实际 %d", got)
	}
	for _, inst := range bucket.SymbolInstances {
		if inst.AnchorX < 0 || inst.AnchorX >= DefaultExtent || inst.AnchorY < 0 || inst.AnchorY >= DefaultExtent {
			t.Fatalf("锚点越界: (%v, %v)", inst.AnchorX, inst.AnchorY)
		}
		if _, ok := inst.PlacedText.Center.Get(); !ok {
			t.Fatalf("居中文字未放置")
		}
		if inst.PlacedIcon.Valid {
			t.Fatalf("没有图标时不应有图标引用")
		}
		if inst.IconCollision.Valid {
			t.Fatalf("没有图标时不应有图标碰撞区间")
		}
	}
}

func TestClosePointsBothPlaced(t *testing.T) {
	layer := textLayer("poi", style.PlacementPoint, "Same")
	f := pointFeature(0, orb.Point{100, 100}, orb.Point{101, 100})
	bucket := buildBucket(t, layer, []Feature{f}, BuildOptions{})
	if got := len(bucket.SymbolInstances); got != 2 {
		t.Fatalf("点要素不做去重，期望 2 个实例，实际 %d", got)
	}
}

func TestLineDedupAcrossFeatures(t *testing.T) {
	layer := textLayer("roads", style.PlacementLine, "Main St")
	features := []Feature{
		lineFeature(0, orb.Point{100, 4000}, orb.Point{8000, 4000}),
		lineFeature(1, orb.Point{100, 4010}, orb.Point{8000, 4010}),
	}
	bucket := buildBucket(t, layer, features, BuildOptions{})
	if len(bucket.SymbolInstances) != 2 {
		t.Fatalf("期望 2 个实例，实际 %d", len(bucket.SymbolInstances))
	}
	minDistance := layer.Layout.SymbolSpacing * DefaultExtent / DefaultTileSize / 2
	for i, a := range bucket.SymbolInstances {
		if a.FeatureIndex != 0 {
			t.Fatalf("第二条线的锚点应全部被去重，实例 %d 来自要素 %d", i, a.FeatureIndex)
		}
		for _, b := range bucket.SymbolInstances[i+1:] {
			d := math.Hypot(a.AnchorX-b.AnchorX, a.AnchorY-b.AnchorY)
			if d < minDistance {
				t.Fatalf("同文字锚点距离 %v 小于 %v", d, minDistance)
			}
		}
	}
	for _, inst := range bucket.SymbolInstances {
		if !inst.UseRuntimeCollisionCircles || inst.CollisionCircleDiameter <= 0 {
			t.Fatalf("沿线文字应使用碰撞圆: %+v", inst)
		}
		rng, ok := inst.TextCollision.Get()
		if !ok || rng.Len() != 1 {
			t.Fatalf("沿线文字碰撞区间应为 1，实际 %+v", inst.TextCollision)
		}
		if bucket.CollisionBoxes[rng.Start].Kind != PrimitiveCircle {
			t.Fatalf("期望碰撞圆")
		}
	}
}

func TestShortLineFallsBackToMiddle(t *testing.T) {
	layer := textLayer("roads", style.PlacementLine, "A")
	bucket := buildBucket(t, layer, []Feature{lineFeature(0, orb.Point{1000, 1000}, orb.Point{1500, 1000})}, BuildOptions{})
	if len(bucket.SymbolInstances) != 1 {
		t.Fatalf("期望 1 个中点锚点，实际 %d", len(bucket.SymbolInstances))
	}
	inst := bucket.SymbolInstances[0]
	if inst.AnchorX != 1250 || inst.AnchorY != 1000 {
		t.Fatalf("中点锚点位置错误: (%v, %v)", inst.AnchorX, inst.AnchorY)
	}
	if len(bucket.LineVertices) != 2 {
		t.Fatalf("沿线锚点应写入折线顶点，实际 %d", len(bucket.LineVertices))
	}
	if bucket.LineVertices[0].TileUnitDistance != 250 || bucket.LineVertices[1].TileUnitDistance != 250 {
		t.Fatalf("顶点沿线距离错误: %+v", bucket.LineVertices)
	}
}

func TestContinuedLineWithClipBuffer(t *testing.T) {
	layer := textLayer("roads", style.PlacementLine, "A")
	for _, buffer := range []float64{0, 64} {
		opts := BuildOptions{ClipBuffer: buffer}
		// 从左侧瓦片延续而来的短线不做中点回退。
		continued := buildBucket(t, layer, []Feature{lineFeature(0, orb.Point{-2000, 1000}, orb.Point{150, 1000})}, opts)
		if n := len(continued.SymbolInstances); n != 0 {
			t.Fatalf("buffer=%v: 延续的短线不应放置标签，实际 %d 个，锚点 (%v, %v)",
				buffer, n, continued.SymbolInstances[0].AnchorX, continued.SymbolInstances[0].AnchorY)
		}
		inside := buildBucket(t, layer, []Feature{lineFeature(0, orb.Point{1000, 1000}, orb.Point{1500, 1000})}, opts)
		if n := len(inside.SymbolInstances); n != 1 {
			t.Fatalf("buffer=%v: 瓦片内的短线应回退到中点，实际 %d 个", buffer, n)
		}
	}
}

func TestLineCenterPlacement(t *testing.T) {
	layer := textLayer("roads", style.PlacementLineCenter, "A")
	features := []Feature{
		lineFeature(0, orb.Point{1000, 1000}, orb.Point{3000, 1000}),
		lineFeature(1, orb.Point{500, 500}),
	}
	bucket := buildBucket(t, layer, features, BuildOptions{})
	if len(bucket.SymbolInstances) != 1 {
		t.Fatalf("期望 1 个实例，实际 %d", len(bucket.SymbolInstances))
	}
	if got := bucket.SymbolInstances[0].AnchorX; got != 2000 {
		t.Fatalf("中心锚点 x = %v", got)
	}
}

func TestVertexPlacementModes(t *testing.T) {
	line := []orb.Point{{100, 100}, {200, 100}, {300, 150}, {400, 100}, {500, 100}}
	cases := []struct {
		mode  style.Placement
		count int
		first float64
	}{
		{style.PlacementVertex, 5, 100},
		{style.PlacementFirstVertex, 1, 100},
		{style.PlacementLastVertex, 1, 500},
		{style.PlacementFirstLastVertex, 2, 100},
		{style.PlacementExceptFirstVertex, 4, 200},
		{style.PlacementExceptLastVertex, 4, 100},
		{style.PlacementMiddleVertex, 3, 200},
	}
	for _, tc := range cases {
		layer := textLayer("v", tc.mode, "X")
		bucket := buildBucket(t, layer, []Feature{lineFeature(0, line...)}, BuildOptions{})
		if got := len(bucket.SymbolInstances); got != tc.count {
			t.Fatalf("%s: 期望 %d 个实例，实际 %d", tc.mode, tc.count, got)
		}
		if got := bucket.SymbolInstances[0].AnchorX; got != tc.first {
			t.Fatalf("%s: 第一个锚点 x = %v，期望 %v", tc.mode, got, tc.first)
		}
	}
}

func TestPointPlacementOnLineUsesFirstVertex(t *testing.T) {
	layer := textLayer("l", style.PlacementPoint, "X")
	bucket := buildBucket(t, layer, []Feature{lineFeature(0, orb.Point{700, 800}, orb.Point{900, 800})}, BuildOptions{})
	if len(bucket.SymbolInstances) != 1 || bucket.SymbolInstances[0].AnchorX != 700 {
		t.Fatalf("应在第一个顶点放置: %+v", bucket.SymbolInstances)
	}
}

func TestPolygonPointPlacement(t *testing.T) {
	layer := textLayer("area", style.PlacementPoint, "Park")
	ring := orb.Ring{{1000, 1000}, {3000, 1000}, {3000, 3000}, {1000, 3000}, {1000, 1000}}
	f := Feature{Geometry: PolygonGeometry{ring}}
	bucket := buildBucket(t, layer, []Feature{f}, BuildOptions{})
	if len(bucket.SymbolInstances) != 1 {
		t.Fatalf("多边形应只有 1 个实例，实际 %d", len(bucket.SymbolInstances))
	}
	inst := bucket.SymbolInstances[0]
	if math.Abs(inst.AnchorX-2000) > 10 || math.Abs(inst.AnchorY-2000) > 10 {
		t.Fatalf("不可达极点偏离中心: (%v, %v)", inst.AnchorX, inst.AnchorY)
	}
}

func TestSingleLineShapingReused(t *testing.T) {
	layer := textLayer("poi", style.PlacementPoint, "Cafe")
	layer.Layout.TextVariableAnchor = []string{"left", "right", "center", "top"}
	shaper := &countingShaper{inner: NewGlyphShaper(stubGlyphs{})}
	bucket := buildBucket(t, layer, []Feature{pointFeature(0, orb.Point{100, 100})}, BuildOptions{Shaper: shaper})

	if shaper.calls != 1 {
		t.Fatalf("单行文字只应排版一次，实际 %d 次", shaper.calls)
	}
	if len(bucket.Text.PlacedSymbols) != 1 {
		t.Fatalf("单行文字应只写入一组顶点，实际 %d", len(bucket.Text.PlacedSymbols))
	}
	p := bucket.SymbolInstances[0].PlacedText
	for _, o := range []Opt[int]{p.Left, p.Right, p.Center} {
		if idx, ok := o.Get(); !ok || idx != 0 {
			t.Fatalf("各对齐方式应共用同一 placed symbol: %+v", p)
		}
	}
	if p.Vertical.Valid {
		t.Fatalf("不允许竖排时不应有竖排引用")
	}
	if got := len(bucket.SymbolInstances[0].VariableAnchorOffsets); got != 4 {
		t.Fatalf("期望 4 个可变锚点偏移，实际 %d", got)
	}
}

func TestMultiLineShapingPerJustification(t *testing.T) {
	layer := textLayer("poi", style.PlacementPoint, "Alpha Beta Gamma")
	layer.Layout.TextMaxWidth = style.Constant(2.0)
	layer.Layout.TextVariableAnchor = []string{"left", "right", "center"}
	layer.Layout.TextJustify = style.Constant("auto")
	shaper := &countingShaper{inner: NewGlyphShaper(stubGlyphs{})}
	bucket := buildBucket(t, layer, []Feature{pointFeature(0, orb.Point{100, 100})}, BuildOptions{Shaper: shaper})

	if shaper.calls != 3 {
		t.Fatalf("多行文字每种对齐排版一次，期望 3 次，实际 %d", shaper.calls)
	}
	if len(bucket.Text.PlacedSymbols) != 3 {
		t.Fatalf("期望 3 组顶点，实际 %d", len(bucket.Text.PlacedSymbols))
	}
	p := bucket.SymbolInstances[0].PlacedText
	if p.Left.Value == p.Right.Value || p.Right.Value == p.Center.Value {
		t.Fatalf("多行文字各对齐方式应有独立顶点: %+v", p)
	}
}

func TestExplicitJustifySharedByVariableAnchors(t *testing.T) {
	layer := textLayer("poi", style.PlacementPoint, "Alpha Beta Gamma")
	layer.Layout.TextMaxWidth = style.Constant(2.0)
	layer.Layout.TextVariableAnchor = []string{"left", "right", "center"}
	layer.Layout.TextJustify = style.Constant("left")
	shaper := &countingShaper{inner: NewGlyphShaper(stubGlyphs{})}
	bucket := buildBucket(t, layer, []Feature{pointFeature(0, orb.Point{100, 100})}, BuildOptions{Shaper: shaper})

	if shaper.calls != 1 {
		t.Fatalf("显式对齐只应排版一次，实际 %d 次", shaper.calls)
	}
	if len(bucket.Text.PlacedSymbols) != 1 {
		t.Fatalf("期望 1 组顶点，实际 %d", len(bucket.Text.PlacedSymbols))
	}
	p := bucket.SymbolInstances[0].PlacedText
	for _, o := range []Opt[int]{p.Left, p.Right, p.Center} {
		if idx, ok := o.Get(); !ok || idx != 0 {
			t.Fatalf("各锚点应共用左对齐的排版: %+v", p)
		}
	}
	if got := len(bucket.SymbolInstances[0].VariableAnchorOffsets); got != 3 {
		t.Fatalf("期望 3 个可变锚点偏移，实际 %d", got)
	}
}

func TestIconTextFit(t *testing.T) {
	layer := textLayer("shield", style.PlacementPoint, "A1")
	layer.Layout.IconImage = style.Constant("shield")
	layer.Layout.IconTextFit = style.FitBoth
	layer.Layout.IconTextFitPadding = [4]float64{2, 4, 2, 4}
	images := ImageMap{"shield": {Name: "shield", Width: 20, Height: 20, PixelRatio: 1}}
	bucket := buildBucket(t, layer, []Feature{pointFeature(0, orb.Point{100, 100})}, BuildOptions{Images: images})

	inst := bucket.SymbolInstances[0]
	if !inst.HasIconTextFit {
		t.Fatalf("应标记 icon-text-fit")
	}
	if inst.IconVertexCount != 4 {
		t.Fatalf("图标应有 4 个顶点，实际 %d", inst.IconVertexCount)
	}
	icon, ok := inst.PlacedIcon.Get()
	if !ok {
		t.Fatalf("缺少图标引用")
	}
	if got, ok := bucket.Text.PlacedSymbols[0].AssociatedIcon.Get(); !ok || got != icon {
		t.Fatalf("文字应关联图标 %d，实际 %+v", icon, bucket.Text.PlacedSymbols[0].AssociatedIcon)
	}
	rng, _ := inst.IconCollision.Get()
	box := bucket.CollisionBoxes[rng.Start]
	// 文字宽 24px、字号 16：拉伸后宽度 16 + 4 + 4 = 24 像素，即 384 瓦片单位，外加两侧 padding。
	width := box.X2 - box.X1
	padding := layer.Layout.IconPadding * DefaultExtent / DefaultTileSize
	if math.Abs(width-(384+2*padding)) > 1e-6 {
		t.Fatalf("拉伸后的图标碰撞盒宽度 %v", width)
	}
}

func TestSizePackingOverflowWarnsOnce(t *testing.T) {
	layer := textLayer("poi", style.PlacementPoint, "Big")
	layer.Layout.TextSize = style.FromExpression(style.Get{Key: "size", Fallback: style.Literal{Value: 16.0}})
	features := []Feature{
		{Index: 0, Geometry: PointGeometry{{100, 100}}, Props: map[string]any{"size": 300.0}},
		{Index: 1, Geometry: PointGeometry{{900, 100}}, Props: map[string]any{"size": 400.0}},
	}
	bucket := buildBucket(t, layer, features, BuildOptions{})
	if bucket.TextSizeData.Kind != style.KindSource {
		t.Fatalf("期望 source 尺寸，实际 %v", bucket.TextSizeData.Kind)
	}
	if len(bucket.Warnings) != 1 {
		t.Fatalf("同一原因只警告一次，实际 %v", bucket.Warnings)
	}
	for _, v := range bucket.Text.Vertices {
		if v.SizeLo != MaxPackedSize {
			t.Fatalf("超限尺寸应截断到 %d，实际 %d", MaxPackedSize, v.SizeLo)
		}
	}
}

func TestMixedSDFIconsWarn(t *testing.T) {
	layer := style.NewSymbolLayer("icons")
	images := ImageMap{
		"a": {Name: "a", Width: 10, Height: 10, PixelRatio: 1, SDF: true},
		"b": {Name: "b", Width: 10, Height: 10, PixelRatio: 1},
	}
	features := []Feature{
		{Index: 0, Geometry: PointGeometry{{100, 100}}, Icon: Some("a")},
		{Index: 1, Geometry: PointGeometry{{200, 100}}, Icon: Some("b")},
		{Index: 2, Geometry: PointGeometry{{300, 100}}, Icon: Some("b")},
	}
	bucket := buildBucket(t, layer, features, BuildOptions{Images: images})
	if len(bucket.SymbolInstances) != 3 {
		t.Fatalf("期望 3 个图标实例，实际 %d", len(bucket.SymbolInstances))
	}
	if sdf, ok := bucket.SDFIcons.Get(); !ok || !sdf {
		t.Fatalf("SDF 标记应取第一个图标")
	}
	if len(bucket.Warnings) != 1 || !strings.Contains(bucket.Warnings[0], "SDF") {
		t.Fatalf("期望一条 SDF 混用警告，实际 %v", bucket.Warnings)
	}
	for _, inst := range bucket.SymbolInstances {
		if inst.Key != 0 || inst.TextCollision.Valid {
			t.Fatalf("纯图标实例不应有文字数据: %+v", inst)
		}
	}
}

func TestSortKeyRanges(t *testing.T) {
	layer := textLayer("poi", style.PlacementPoint, "K")
	features := []Feature{
		{Index: 0, Geometry: PointGeometry{{100, 100}, {200, 100}}, SortKey: Some(1.0)},
		{Index: 1, Geometry: PointGeometry{{300, 100}}, SortKey: Some(1.0)},
		{Index: 2, Geometry: PointGeometry{{400, 100}}, SortKey: Some(5.0)},
		{Index: 3, Geometry: PointGeometry{{500, 100}}},
	}
	bucket := buildBucket(t, layer, features, BuildOptions{})
	want := []SortKeyRange{{SortKey: 1, Start: 0, End: 3}, {SortKey: 5, Start: 3, End: 4}}
	if len(bucket.SortKeyRanges) != len(want) {
		t.Fatalf("排序区间 %+v", bucket.SortKeyRanges)
	}
	for i, r := range want {
		if bucket.SortKeyRanges[i] != r {
			t.Fatalf("排序区间 %d = %+v，期望 %+v", i, bucket.SortKeyRanges[i], r)
		}
	}
}

func TestSkipsFeaturesWithoutContent(t *testing.T) {
	layer := style.NewSymbolLayer("empty")
	layer.Layout.TextField = style.FromExpression(style.Template{Text: "{name}"})
	features := []Feature{
		{Index: 0, Geometry: PointGeometry{{100, 100}}},
		{Index: 1, Geometry: PointGeometry{{200, 100}}, Props: map[string]any{"name": "Hi"}},
	}
	bucket := buildBucket(t, layer, features, BuildOptions{})
	if len(bucket.SymbolInstances) != 1 || bucket.SymbolInstances[0].FeatureIndex != 1 {
		t.Fatalf("没有内容的要素应被跳过: %+v", bucket.SymbolInstances)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	layer := textLayer("roads", style.PlacementLine, "Ring Rd")
	features := []Feature{
		lineFeature(0, orb.Point{0, 100}, orb.Point{4000, 300}, orb.Point{8191, 200}),
		pointFeature(1, orb.Point{10, 10}),
	}
	opts := BuildOptions{Debug: DebugOptions{CollisionBoxes: true}}
	first, err := json.Marshal(buildBucket(t, layer, features, opts))
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	second, err := json.Marshal(buildBucket(t, layer, features, opts))
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("相同输入的两次构建结果不同")
	}
}

func TestBuildErrors(t *testing.T) {
	layer := textLayer("poi", style.PlacementPoint, "X")
	if _, err := Build(context.Background(), layer, nil, BuildOptions{}); err == nil {
		t.Fatalf("缺少 Shaper 时应报错")
	}
	if _, err := Build(context.Background(), nil, nil, BuildOptions{Shaper: NewGlyphShaper(stubGlyphs{})}); err == nil {
		t.Fatalf("图层为空时应报错")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, layer, []Feature{pointFeature(0, orb.Point{1, 1})}, BuildOptions{Shaper: NewGlyphShaper(stubGlyphs{})})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
}

func TestDebugVertices(t *testing.T) {
	layer := textLayer("poi", style.PlacementPoint, "D")
	f := pointFeature(0, orb.Point{100, 100})
	plain := buildBucket(t, layer, []Feature{f}, BuildOptions{})
	if len(plain.DebugVertices) != 0 {
		t.Fatalf("未开启调试时不应生成调试顶点")
	}
	debug := buildBucket(t, layer, []Feature{f}, BuildOptions{Debug: DebugOptions{CollisionBoxes: true}})
	if got := len(debug.DebugVertices); got != 4*len(debug.CollisionBoxes) {
		t.Fatalf("每个碰撞图元 4 个调试顶点，实际 %d", got)
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	layer := textLayer("poi", style.PlacementPoint, "Msg")
	bucket := buildBucket(t, layer, []Feature{pointFeature(3, orb.Point{100, 100})}, BuildOptions{})
	data, err := EncodeMsgpack(bucket)
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	decoded, err := DecodeMsgpack(data)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if len(decoded.SymbolInstances) != 1 {
		t.Fatalf("实例数 %d", len(decoded.SymbolInstances))
	}
	got, want := decoded.SymbolInstances[0], bucket.SymbolInstances[0]
	if got.PlacedIcon.Valid || !got.TextCollision.Valid || got.TextCollision != want.TextCollision {
		t.Fatalf("可缺省字段编码错误: %+v", got)
	}
	if got.Key != want.Key || got.FeatureIndex != 3 {
		t.Fatalf("字段丢失: %+v", got)
	}
}

func TestOptJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Opt[int] `json:"a"`
		B Opt[int] `json:"b"`
	}{A: Some(3)})
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	if string(data) != `{"a":3,"b":null}` {
		t.Fatalf("编码结果 %s", data)
	}
	var back struct {
		A Opt[int] `json:"a"`
		B Opt[int] `json:"b"`
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if v, ok := back.A.Get(); !ok || v != 3 || back.B.Valid {
		t.Fatalf("解码结果 %+v", back)
	}
}
