package layout

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
)

// collisionStore 是只追加的碰撞图元存储。
type collisionStore interface {
	addPrimitive(p CollisionPrimitive) int
}

// collisionContext 是构建碰撞图元时要素与锚点的公共信息。
type collisionContext struct {
	anchor           Anchor
	projected        Point3
	featureIndex     int
	sourceLayerIndex int
}

// paddedBounds 把排版外框按 scale 缩放并施加碰撞内边距与图层 padding。
func paddedBounds(b Bounds, scale, padding float64) r2.Rect {
	x1, y1, x2, y2 := b.Left, b.Top, b.Right, b.Bottom
	if cp := b.Padding; cp != nil {
		x1 += cp.Left
		y1 += cp.Top
		x2 -= cp.Right
		y2 -= cp.Bottom
	}
	return r2.Rect{
		X: r1.Interval{Lo: x1*scale - padding, Hi: x2*scale + padding},
		Y: r1.Interval{Lo: y1*scale - padding, Hi: y2*scale + padding},
	}
}

// evaluateBoxCollisionFeature 生成一个碰撞盒并返回其下标。rotate 非零时，
// 四个角绕 pivot 旋转后取轴对齐外包框。
func evaluateBoxCollisionFeature(store collisionStore, ctx collisionContext, b Bounds, scale, padding float64, rotate s1.Angle, pivot r2.Point) int {
	rect := paddedBounds(b, scale, padding)
	if rotate != 0 {
		sin, cos := math.Sincos(rotate.Radians())
		corners := rect.Vertices()
		rotated := make([]r2.Point, len(corners))
		for i, c := range corners {
			d := c.Sub(pivot)
			rotated[i] = pivot.Add(r2.Point{X: cos*d.X - sin*d.Y, Y: sin*d.X + cos*d.Y})
		}
		rect = r2.RectFromPoints(rotated...)
	}
	return store.addPrimitive(CollisionPrimitive{
		Kind:             PrimitiveBox,
		AnchorX:          ctx.anchor.X,
		AnchorY:          ctx.anchor.Y,
		Projected:        ctx.projected,
		X1:               rect.X.Lo,
		Y1:               rect.Y.Lo,
		X2:               rect.X.Hi,
		Y2:               rect.Y.Hi,
		Padding:          padding,
		FeatureIndex:     ctx.featureIndex,
		SourceLayerIndex: ctx.sourceLayerIndex,
	})
}

// evaluateCircleCollisionFeature 计算沿线标签的碰撞圆直径：施加内边距后的高度，
// 下限为 MinCollisionCircleDiameter；高度不为正时没有碰撞圆。
func evaluateCircleCollisionFeature(b Bounds) Opt[float64] {
	top, bottom := b.Top, b.Bottom
	if cp := b.Padding; cp != nil {
		top += cp.Top
		bottom -= cp.Bottom
	}
	height := bottom - top
	if height <= 0 {
		return None[float64]()
	}
	return Some(math.Max(MinCollisionCircleDiameter, height))
}

// addCollisionFeature 为一个形状生成碰撞图元：沿线时是碰撞圆，否则是碰撞盒，
// 碰撞盒绕 pivot（瓦片单位，相对锚点）旋转。返回图元的下标区间与碰撞圆直径。
func addCollisionFeature(store collisionStore, ctx collisionContext, b Bounds, scale, padding float64, alongLine bool, rotate s1.Angle, pivot r2.Point) (Opt[IndexRange], Opt[float64]) {
	if alongLine {
		diameter := evaluateCircleCollisionFeature(b)
		d, ok := diameter.Get()
		if !ok {
			return None[IndexRange](), diameter
		}
		idx := store.addPrimitive(CollisionPrimitive{
			Kind:             PrimitiveCircle,
			AnchorX:          ctx.anchor.X,
			AnchorY:          ctx.anchor.Y,
			Projected:        ctx.projected,
			X1:               -d / 2 * scale,
			Y1:               -d / 2 * scale,
			X2:               d / 2 * scale,
			Y2:               d / 2 * scale,
			Padding:          padding,
			Diameter:         d,
			FeatureIndex:     ctx.featureIndex,
			SourceLayerIndex: ctx.sourceLayerIndex,
		})
		return Some(IndexRange{Start: idx, End: idx + 1}), diameter
	}
	idx := evaluateBoxCollisionFeature(store, ctx, b, scale, padding, rotate, pivot)
	return Some(IndexRange{Start: idx, End: idx + 1}), None[float64]()
}
