package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"

	"github.com/ByLCY/symlayout/fonts"
	"github.com/ByLCY/symlayout/layout"
	"github.com/ByLCY/symlayout/renderer"
	"github.com/ByLCY/symlayout/style"
)

const (
	strokeWidth   = 0.2
	anchorRadius  = 0.6
	defaultSize   = 200.0
	labelFontSize = 4.0
)

// 输出格式。
const (
	FormatPDF = "pdf"
	FormatSVG = "svg"
)

var (
	boxColor    = canvas.Hex("#d62728")
	circleColor = canvas.Hex("#1f77b4")
	lineColor   = canvas.Hex("#9a9a9a")
	tileColor   = canvas.Hex("#333333")
	anchorColor = canvas.Black
)

// Renderer 用 github.com/tdewolff/canvas 绘制布局结果的碰撞调试图，
// 同时以字体度量实现 layout.GlyphSource。
type Renderer struct {
	format  string
	size    float64
	margin  float64
	labels  bool
	baseDir string

	// injected resources
	fontBlobs map[string][]byte // by font stack name

	glyphMu sync.Mutex
	faces   map[string]font.Face
	glyphs  map[glyphKey]glyphEntry

	labelMu     sync.Mutex
	labelFamily *canvas.FontFamily
}

var (
	_ renderer.Renderer  = (*Renderer)(nil)
	_ layout.GlyphSource = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // 按字体栈中的名称注入字体
	Format  string              // pdf（默认）或 svg
	Size    float64             // 瓦片边长（mm），默认 200
	Margin  float64             // 瓦片外的留白比例，默认 0.1
	Labels  bool                // 在锚点旁标注要素下标
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// SheetFonts 把样式表声明的字体转换为注入资源：内置字体直接取字节，其余按路径读取。
func SheetFonts(sheet *style.Sheet) map[string]Resource {
	out := map[string]Resource{}
	if sheet == nil {
		return out
	}
	for name, f := range sheet.Fonts {
		if f.Source == "" {
			continue
		}
		if fonts.IsBuiltin(f.Source) {
			data, err := fonts.Load(f.Source)
			if err != nil {
				layout.Logger().Warn("内置字体不存在", "font", name, "src", f.Source)
				continue
			}
			out[name] = Resource{Bytes: data}
			continue
		}
		out[name] = Resource{Path: f.Source}
	}
	return out
}

// NewRenderer creates a PDF renderer rooted at baseDir for resolving font paths.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		format:    opts.Format,
		size:      opts.Size,
		margin:    opts.Margin,
		labels:    opts.Labels,
		baseDir:   opts.BaseDir,
		fontBlobs: map[string][]byte{},
		faces:     map[string]font.Face{},
		glyphs:    map[glyphKey]glyphEntry{},
	}
	if r.format == "" {
		r.format = FormatPDF
	}
	if r.size <= 0 {
		r.size = defaultSize
	}
	if r.margin <= 0 {
		r.margin = 0.1
	}
	for name, res := range opts.Fonts {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			r.fontBlobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			path := res.Path
			if !filepath.IsAbs(path) && r.baseDir != "" {
				path = filepath.Join(r.baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				layout.Logger().Warn("读取字体失败，改用内置字体", "font", name, "error", err)
				continue
			}
			r.fontBlobs[name] = data
		}
	}
	return r
}

// Render 把桶绘制为一页：瓦片边框、沿线折线、碰撞盒、碰撞圆与锚点。
func (r *Renderer) Render(bucket *layout.Bucket) ([]byte, error) {
	if bucket == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if bucket.Extent <= 0 {
		return nil, fmt.Errorf("瓦片范围无效: %d", bucket.Extent)
	}
	page := r.size * (1 + 2*r.margin)
	c := canvas.New(page, page)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 与瓦片坐标一致，左上角为原点

	v := viewport{offset: r.size * r.margin, scale: r.size / float64(bucket.Extent)}
	r.drawTile(ctx, v)
	r.drawLines(ctx, v, bucket)
	r.drawPrimitives(ctx, v, bucket.CollisionBoxes)
	if err := r.drawAnchors(ctx, v, bucket.SymbolInstances); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch r.format {
	case FormatPDF:
		writer := pdf.New(&buf, page, page, nil)
		writer.SetInfo("symbol layout "+bucket.LayerID, tileTitle(bucket), bucket.LayerID, "", "symlayout")
		c.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("写入 PDF 失败: %w", err)
		}
	case FormatSVG:
		writer := svg.New(&buf, page, page, nil)
		c.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("写入 SVG 失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", r.format)
	}
	return buf.Bytes(), nil
}

// viewport 把瓦片单位映射到页面毫米。
type viewport struct {
	offset float64
	scale  float64
}

func (v viewport) x(x float64) float64 { return v.offset + x*v.scale }
func (v viewport) y(y float64) float64 { return v.offset + y*v.scale }

func tileTitle(b *layout.Bucket) string {
	return fmt.Sprintf("%d/%d/%d @ z%g", b.Tile.Z, b.Tile.X, b.Tile.Y, b.Zoom)
}

func (r *Renderer) drawTile(ctx *canvas.Context, v viewport) {
	ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
	ctx.SetStrokeColor(tileColor)
	ctx.SetStrokeWidth(strokeWidth)
	ctx.DrawPath(v.offset, v.offset, canvas.Rectangle(r.size, r.size))
}

// drawLines 绘制沿线放置的锚点所在折线。
func (r *Renderer) drawLines(ctx *canvas.Context, v viewport, b *layout.Bucket) {
	ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
	ctx.SetStrokeColor(lineColor)
	ctx.SetStrokeWidth(strokeWidth)
	seen := map[int]bool{}
	for _, ps := range b.Text.PlacedSymbols {
		if ps.LineLength < 2 || seen[ps.LineStart] {
			continue
		}
		seen[ps.LineStart] = true
		verts := b.LineVertices[ps.LineStart : ps.LineStart+ps.LineLength]
		p := &canvas.Path{}
		p.MoveTo(0, 0)
		for _, vert := range verts[1:] {
			p.LineTo(v.x(vert.X)-v.x(verts[0].X), v.y(vert.Y)-v.y(verts[0].Y))
		}
		ctx.DrawPath(v.x(verts[0].X), v.y(verts[0].Y), p)
	}
}

// drawPrimitives 绘制碰撞盒（红）与碰撞圆（蓝）。
func (r *Renderer) drawPrimitives(ctx *canvas.Context, v viewport, prims []layout.CollisionPrimitive) {
	ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
	ctx.SetStrokeWidth(strokeWidth)
	for _, p := range prims {
		switch p.Kind {
		case layout.PrimitiveBox:
			ctx.SetStrokeColor(boxColor)
			ctx.DrawPath(v.x(p.AnchorX+p.X1), v.y(p.AnchorY+p.Y1), canvas.Rectangle((p.X2-p.X1)*v.scale, (p.Y2-p.Y1)*v.scale))
		case layout.PrimitiveCircle:
			ctx.SetStrokeColor(circleColor)
			ctx.DrawPath(v.x(p.AnchorX), v.y(p.AnchorY), canvas.Circle((p.X2-p.X1)/2*v.scale))
		}
	}
}

func (r *Renderer) drawAnchors(ctx *canvas.Context, v viewport, instances []layout.SymbolInstance) error {
	ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
	ctx.SetFillColor(anchorColor)
	for _, inst := range instances {
		ctx.DrawPath(v.x(inst.AnchorX), v.y(inst.AnchorY), canvas.Circle(anchorRadius))
	}
	if !r.labels || len(instances) == 0 {
		return nil
	}
	family, err := r.ensureLabelFamily()
	if err != nil {
		return err
	}
	face := family.Face(labelFontSize, anchorColor, canvas.FontRegular, canvas.FontNormal)
	for _, inst := range instances {
		line := canvas.NewTextLine(face, strconv.Itoa(inst.FeatureIndex), canvas.Left)
		ctx.DrawText(v.x(inst.AnchorX)+2*anchorRadius, v.y(inst.AnchorY)-anchorRadius, line)
	}
	return nil
}

func (r *Renderer) ensureLabelFamily() (*canvas.FontFamily, error) {
	r.labelMu.Lock()
	defer r.labelMu.Unlock()
	if r.labelFamily != nil {
		return r.labelFamily, nil
	}
	data, err := fonts.Load(fonts.Default)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("symlayout-labels")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载标注字体失败: %w", err)
	}
	r.labelFamily = family
	return family, nil
}
