package canvasrenderer

import (
	"fmt"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ByLCY/symlayout/fonts"
	"github.com/ByLCY/symlayout/layout"
)

type glyphKey struct {
	stack string
	r     rune
}

type glyphEntry struct {
	metrics layout.GlyphMetrics
	ok      bool
}

// Glyph 实现 layout.GlyphSource：在 OneEm 字号下测量字形外框与步进。
// 字体栈按逗号拆分，依次尝试，都没有该字形时返回 false。
func (r *Renderer) Glyph(fontStack string, ch rune) (layout.GlyphMetrics, bool) {
	key := glyphKey{stack: fontStack, r: ch}
	r.glyphMu.Lock()
	defer r.glyphMu.Unlock()
	if e, ok := r.glyphs[key]; ok {
		return e.metrics, e.ok
	}

	var entry glyphEntry
	for _, name := range splitStack(fontStack) {
		face, err := r.metricsFace(name)
		if err != nil {
			layout.Logger().Debug("字体加载失败", "font", name, "error", err)
			continue
		}
		bounds, advance, ok := face.GlyphBounds(ch)
		if !ok {
			continue
		}
		entry = glyphEntry{metrics: glyphMetrics(bounds, advance), ok: true}
		break
	}
	r.glyphs[key] = entry
	return entry.metrics, entry.ok
}

// TextShaper 返回以本渲染器字体度量为后端的排版器。
func (r *Renderer) TextShaper() layout.TextShaper {
	return layout.NewGlyphShaper(r)
}

// glyphMetrics 把 26.6 定点外框换算成字形度量。Top 相对于 OneEm 的上沿，
// 与 SDF 字形图集的约定一致。
func glyphMetrics(b fixed.Rectangle26_6, advance fixed.Int26_6) layout.GlyphMetrics {
	minX, minY := fixedToFloat(b.Min.X), fixedToFloat(b.Min.Y)
	maxX, maxY := fixedToFloat(b.Max.X), fixedToFloat(b.Max.Y)
	return layout.GlyphMetrics{
		Width:   maxX - minX,
		Height:  maxY - minY,
		Left:    minX,
		Top:     -minY - layout.OneEm,
		Advance: fixedToFloat(advance),
	}
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

// metricsFace 返回 OneEm 字号、无 hinting 的字体面；调用方持有 glyphMu。
func (r *Renderer) metricsFace(name string) (font.Face, error) {
	if face, ok := r.faces[name]; ok {
		return face, nil
	}
	data, err := r.fontBytes(name)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("解析字体 %s 失败: %w", name, err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: layout.OneEm, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("创建字体面 %s 失败: %w", name, err)
	}
	r.faces[name] = face
	return face, nil
}

// fontBytes 依次查找注入的字体、builtin:/embed: 内置字体，最后按名称关键字选择内置字体。
func (r *Renderer) fontBytes(name string) ([]byte, error) {
	if blob, ok := r.fontBlobs[name]; ok {
		return blob, nil
	}
	if fonts.IsBuiltin(name) {
		return fonts.Load(name)
	}
	return fonts.Load(fonts.ForStack(name))
}

func splitStack(stack string) []string {
	var names []string
	for _, n := range strings.Split(stack, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		names = append(names, fonts.Default)
	}
	return names
}
