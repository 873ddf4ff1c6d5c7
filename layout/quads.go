package layout

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
)

// quad 是一个字形或图标的四个角（相对锚点，像素）与纹理矩形。
type quad struct {
	tl, tr, bl, br r2.Point
	tex            Rect
	writingMode    WritingMode
	glyphOffset    [2]float64
	sectionIndex   int
	sdf            bool
}

func rotatePoint(p r2.Point, sin, cos float64) r2.Point {
	return r2.Point{X: cos*p.X - sin*p.Y, Y: sin*p.X + cos*p.Y}
}

func rotateAround(p, center r2.Point, sin, cos float64) r2.Point {
	return center.Add(rotatePoint(p.Sub(center), sin, cos))
}

func (q *quad) rotate(angle s1.Angle) {
	if angle == 0 {
		return
	}
	sin, cos := math.Sincos(angle.Radians())
	q.tl = rotatePoint(q.tl, sin, cos)
	q.tr = rotatePoint(q.tr, sin, cos)
	q.bl = rotatePoint(q.bl, sin, cos)
	q.br = rotatePoint(q.br, sin, cos)
}

// getIconQuads 为图标生成一个四边形。
func getIconQuads(icon PositionedIcon, rotate s1.Angle, sdf bool) []quad {
	q := quad{
		tl:  r2.Point{X: icon.Left, Y: icon.Top},
		tr:  r2.Point{X: icon.Right, Y: icon.Top},
		bl:  r2.Point{X: icon.Left, Y: icon.Bottom},
		br:  r2.Point{X: icon.Right, Y: icon.Bottom},
		tex: Rect{W: icon.Image.Width, H: icon.Image.Height},
		sdf: sdf,
	}
	q.rotate(rotate)
	return []quad{q}
}

// getGlyphQuads 为排版结果中的每个字形生成四边形。沿线时字形偏移留给运行时按折线计算。
func getGlyphQuads(shaping *Shaping, textOffset [2]float64, alongLine, allowVertical bool, rotate s1.Angle, images ImageMap) []quad {
	const rectBuffer = glyphPBFBorder + 1

	var quads []quad
	for _, line := range shaping.Lines {
		for _, g := range line.Glyphs {
			if g.Rect.W == 0 || g.Rect.H == 0 {
				continue
			}
			sdf := true
			pixelRatio := 1.0
			lineOffset := 0.0
			if g.ImageName != "" {
				if img, ok := images[g.ImageName]; ok {
					sdf = img.SDF
					if img.PixelRatio > 0 {
						pixelRatio = img.PixelRatio
					}
				}
			}
			rotateVertical := (alongLine || allowVertical) && g.Vertical
			halfAdvance := g.Metrics.Advance * g.Scale / 2

			if allowVertical && shaping.Verticalizable {
				scaledGlyphOffset := (g.Scale - 1) * OneEm
				imageOffset := (OneEm - g.Metrics.Width*g.Scale) / 2
				if g.ImageName != "" {
					lineOffset = line.LineOffset/2 + imageOffset
				} else {
					lineOffset = line.LineOffset/2 - scaledGlyphOffset
				}
			}

			var glyphOffset, builtIn, verticalized [2]float64
			if alongLine {
				glyphOffset = [2]float64{g.X + halfAdvance, g.Y}
			} else {
				builtIn = [2]float64{g.X + halfAdvance + textOffset[0], g.Y + textOffset[1] - lineOffset}
			}
			if rotateVertical {
				verticalized, builtIn = builtIn, [2]float64{}
			}

			x1 := (g.Metrics.Left-rectBuffer)*g.Scale - halfAdvance + builtIn[0]
			y1 := (-g.Metrics.Top-rectBuffer)*g.Scale + builtIn[1]
			x2 := x1 + g.Rect.W*g.Scale/pixelRatio
			y2 := y1 + g.Rect.H*g.Scale/pixelRatio

			q := quad{
				tl:           r2.Point{X: x1, Y: y1},
				tr:           r2.Point{X: x2, Y: y1},
				bl:           r2.Point{X: x1, Y: y2},
				br:           r2.Point{X: x2, Y: y2},
				tex:          g.Rect,
				writingMode:  shaping.WritingMode,
				glyphOffset:  glyphOffset,
				sectionIndex: g.SectionIndex,
				sdf:          sdf,
			}

			if rotateVertical {
				center := r2.Point{X: -halfAdvance, Y: halfAdvance - shapingDefaultOffset}
				sin, cos := math.Sincos(-math.Pi / 2)
				xCorrection := OneEm/2 - halfAdvance
				yCorrection := 0.0
				if g.ImageName != "" {
					yCorrection = xCorrection
				}
				shift := r2.Point{X: 5 - shapingDefaultOffset - xCorrection + verticalized[0], Y: -yCorrection + verticalized[1]}
				q.tl = rotateAround(q.tl, center, sin, cos).Add(shift)
				q.tr = rotateAround(q.tr, center, sin, cos).Add(shift)
				q.bl = rotateAround(q.bl, center, sin, cos).Add(shift)
				q.br = rotateAround(q.br, center, sin, cos).Add(shift)
			}
			q.rotate(rotate)
			quads = append(quads, q)
		}
	}
	return quads
}
